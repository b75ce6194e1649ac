package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/repository"
)

// Placement decides whether a block of a given type may be placed at a
// given order on a page.
type Placement struct {
	Metadata repository.MetadataRepository
	Users    repository.UserDirectory
	Pages    repository.PageRepository
}

// Validate checks, in order: the type is registered, the user may use it,
// the order is free on the page and the type's per-page cap is not reached.
// It reads only; callers write the page snapshot they validated against.
func (p *Placement) Validate(ctx context.Context, user model.User, page *model.Page, blockType string, blockOrder int) (model.BlockMetadata, error) {
	md, err := p.Metadata.GetByType(ctx, blockType)
	if errors.Is(err, repository.ErrNotFound) {
		return model.BlockMetadata{}, ErrUnknownBlockType
	}
	if err != nil {
		return model.BlockMetadata{}, err
	}
	if md.Pro && !user.IsPro {
		return md, ErrProRequired
	}
	if page.HasOrder(blockOrder) {
		return md, ErrDuplicateOrder
	}
	if md.Limited() && page.CountType(blockType) >= md.BlockLimit {
		return md, ErrLimitExceeded
	}
	return md, nil
}

// Check loads the user and page and runs Validate against them.
func (p *Placement) Check(ctx context.Context, userID uint64, pageID primitive.ObjectID, blockType string, blockOrder int) error {
	user, err := loadUser(ctx, p.Users, userID)
	if err != nil {
		return err
	}
	set, i, err := loadPage(ctx, p.Pages, userID, pageID)
	if err != nil {
		return err
	}
	_, err = p.Validate(ctx, user, &set.Pages[i], blockType, blockOrder)
	return err
}
