package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/page-builder/internal/model"
)

// PageRepo persists PageSets in the pages collection.
type PageRepo struct{ Coll *mongo.Collection }

func NewPageRepo(db *mongo.Database) *PageRepo {
	return &PageRepo{Coll: db.Collection(PagesCollection)}
}

// Get loads the user's pages.
func (r *PageRepo) Get(ctx context.Context, userID uint64) (*model.PageSet, error) {
	var s model.PageSet
	if err := findByUser(ctx, r.Coll, userID, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save inserts or version-checked replaces the user's pages.
func (r *PageRepo) Save(ctx context.Context, set *model.PageSet) error {
	next := *set
	next.Version = set.Version + 1
	if set.Version == 0 {
		id, err := insertVersioned(ctx, r.Coll, next)
		if err != nil {
			return err
		}
		set.ID = id
	} else if err := replaceVersioned(ctx, r.Coll, set.UserID, set.Version, next); err != nil {
		return err
	}
	set.Version = next.Version
	return nil
}
