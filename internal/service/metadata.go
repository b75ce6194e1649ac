package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/page-builder/internal/blocktype"
	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/queue"
	"github.com/iliyamo/page-builder/internal/repository"
)

// Metadata manages the content block registry.
type Metadata struct {
	repo   repository.MetadataRepository
	notify notifier
}

func (s *Metadata) List(ctx context.Context) ([]model.BlockMetadata, error) {
	return s.repo.List(ctx)
}

// Create registers a block type.  A zero limit is stored as Unlimited and
// Global always follows the storage of the block kind.
func (s *Metadata) Create(ctx context.Context, m model.BlockMetadata) (*model.BlockMetadata, error) {
	m.ID = primitive.NilObjectID
	m.BlockType = strings.TrimSpace(m.BlockType)
	if m.BlockType == "" {
		return nil, Invalid("blockType is required")
	}
	if m.Global && !storedGlobally(m.BlockType) {
		return nil, globalMismatch(m.BlockType)
	}
	m.Global = storedGlobally(m.BlockType)
	if m.BlockLimit == 0 || m.BlockLimit < model.Unlimited {
		m.BlockLimit = model.Unlimited
	}
	if err := s.repo.Create(ctx, &m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrMetadataExists
		}
		return nil, err
	}
	s.emit(ctx, m.BlockType)
	return &m, nil
}

// MetadataPatch lists the editable registry fields; nil fields are kept.
type MetadataPatch struct {
	BlockType  *string `json:"blockType"`
	Title      *string `json:"title"`
	Subtitle   *string `json:"subtitle"`
	Global     *bool   `json:"global"`
	Pro        *bool   `json:"pro"`
	Icon       *string `json:"icon"`
	Section    *string `json:"section"`
	BlockLimit *int    `json:"blockLimit"`
}

func (s *Metadata) Update(ctx context.Context, id primitive.ObjectID, p MetadataPatch) (*model.BlockMetadata, error) {
	m, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMetadataNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.BlockType != nil {
		bt := strings.TrimSpace(*p.BlockType)
		if bt == "" {
			return nil, Invalid("blockType cannot be empty")
		}
		m.BlockType = bt
	}
	setString(&m.Title, p.Title)
	setString(&m.Subtitle, p.Subtitle)
	setString(&m.Icon, p.Icon)
	setString(&m.Section, p.Section)
	if p.Global != nil && *p.Global != storedGlobally(m.BlockType) {
		return nil, globalMismatch(m.BlockType)
	}
	m.Global = storedGlobally(m.BlockType)
	if p.Pro != nil {
		m.Pro = *p.Pro
	}
	if p.BlockLimit != nil {
		m.BlockLimit = *p.BlockLimit
		if m.BlockLimit == 0 || m.BlockLimit < model.Unlimited {
			m.BlockLimit = model.Unlimited
		}
	}
	if err := s.repo.Update(ctx, m); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrMetadataExists
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrMetadataNotFound
		}
		return nil, err
	}
	s.emit(ctx, m.BlockType)
	return &m, nil
}

// storedGlobally reports whether blockType keeps its data in globals.
// Types outside the kind registry are inline.
func storedGlobally(blockType string) bool {
	k, ok := blocktype.Lookup(blockType)
	return ok && k.IsGlobal()
}

func globalMismatch(blockType string) error {
	return Invalid("global does not match the storage of block type " + blockType)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (s *Metadata) Delete(ctx context.Context, id primitive.ObjectID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrMetadataNotFound
	}
	if err != nil {
		return err
	}
	s.emit(ctx, "")
	return nil
}

func (s *Metadata) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.emit(ctx, "")
	return n, nil
}

func (s *Metadata) emit(ctx context.Context, blockType string) {
	ev := queue.NewEvent(queue.MetadataModified, 0)
	ev.BlockType = blockType
	s.notify.emit(ctx, ev)
}
