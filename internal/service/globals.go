package service

import (
	"context"
	"errors"

	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/queue"
	"github.com/iliyamo/page-builder/internal/repository"
)

// Globals exposes the user's global entries directly.
type Globals struct {
	globals repository.GlobalRepository
	notify  notifier
}

// Get returns the user's globals; a user without any gets an empty set.
func (s *Globals) Get(ctx context.Context, userID uint64) (*model.GlobalSet, error) {
	set, err := s.globals.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.GlobalSet{UserID: userID, Globals: []model.GlobalEntry{}}, nil
	}
	return set, err
}

// Delete drops every global entry of the user.  Pages still referencing
// them resolve to empty data afterwards.
func (s *Globals) Delete(ctx context.Context, userID uint64) error {
	err := s.globals.Delete(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrGlobalNotFound
	}
	if err != nil {
		return err
	}
	s.notify.emit(ctx, queue.NewEvent(queue.GlobalsDeleted, userID))
	return nil
}
