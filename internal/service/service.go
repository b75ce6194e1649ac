// Package service implements the page builder: block placement rules,
// global data resolution, block and page operations, and the block
// metadata registry.  Every write is a versioned replace of one per-user
// document, so a stale read can never be persisted.
package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/queue"
	"github.com/iliyamo/page-builder/internal/repository"
)

// EventPublisher delivers activity events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Deps are the collaborators shared by all services.
type Deps struct {
	Pages    repository.PageRepository
	Globals  repository.GlobalRepository
	Metadata repository.MetadataRepository
	Users    repository.UserDirectory
	Events   EventPublisher
	Log      *zap.Logger
}

// Service bundles the page builder components wired to one set of stores.
type Service struct {
	Placement *Placement
	Resolver  *Resolver
	Blocks    *Blocks
	Pages     *Pages
	Globals   *Globals
	Metadata  *Metadata
}

// New wires all components.  Events and Log may be nil.
func New(d Deps) *Service {
	if d.Pages == nil || d.Globals == nil || d.Metadata == nil || d.Users == nil {
		panic("nil repository passed to service.New")
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = queue.Nop{}
	}
	n := notifier{pub: d.Events, log: d.Log}
	placement := &Placement{Metadata: d.Metadata, Users: d.Users, Pages: d.Pages}
	resolver := &Resolver{Globals: d.Globals, Pages: d.Pages, Log: d.Log}
	return &Service{
		Placement: placement,
		Resolver:  resolver,
		Blocks: &Blocks{
			pages:     d.Pages,
			globals:   d.Globals,
			placement: placement,
			resolver:  resolver,
			notify:    n,
			log:       d.Log,
		},
		Pages:    &Pages{pages: d.Pages, resolver: resolver, notify: n},
		Globals:  &Globals{globals: d.Globals, notify: n},
		Metadata: &Metadata{repo: d.Metadata, notify: n},
	}
}

type notifier struct {
	pub EventPublisher
	log *zap.Logger
}

// emit publishes ev; delivery failures never fail the calling operation.
func (n notifier) emit(ctx context.Context, ev queue.Event) {
	if err := n.pub.Publish(ctx, ev); err != nil {
		n.log.Warn("activity event not delivered",
			zap.String("event", ev.Type),
			zap.Uint64("user_id", ev.UserID),
			zap.Error(err))
	}
}

func blockEvent(typ string, userID uint64, pageID primitive.ObjectID, b model.ContentBlock) queue.Event {
	ev := queue.NewEvent(typ, userID)
	ev.PageID = pageID.Hex()
	ev.BlockID = b.ID.Hex()
	ev.BlockType = b.BlockType
	return ev
}

// loadPage fetches the user's pages and locates pageID.
func loadPage(ctx context.Context, repo repository.PageRepository, userID uint64, pageID primitive.ObjectID) (*model.PageSet, int, error) {
	set, err := repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, -1, ErrPageNotFound
	}
	if err != nil {
		return nil, -1, err
	}
	i := set.Find(pageID)
	if i < 0 {
		return nil, -1, ErrPageNotFound
	}
	return set, i, nil
}

func loadUser(ctx context.Context, users repository.UserDirectory, userID uint64) (model.User, error) {
	u, err := users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// storeErr translates repository write failures.
func storeErr(err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return ErrWriteConflict
	}
	return err
}
