package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/page-builder/internal/model"
)

// GlobalRepo persists GlobalSets in the globals collection.
type GlobalRepo struct{ Coll *mongo.Collection }

func NewGlobalRepo(db *mongo.Database) *GlobalRepo {
	return &GlobalRepo{Coll: db.Collection(GlobalsCollection)}
}

// Get loads the user's globals.
func (r *GlobalRepo) Get(ctx context.Context, userID uint64) (*model.GlobalSet, error) {
	var s model.GlobalSet
	if err := findByUser(ctx, r.Coll, userID, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save inserts or version-checked replaces the user's globals.
func (r *GlobalRepo) Save(ctx context.Context, set *model.GlobalSet) error {
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

// Delete removes the user's globals document.
func (r *GlobalRepo) Delete(ctx context.Context, userID uint64) error {
	res, err := r.Coll.DeleteOne(ctx, bson.M{"userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindEntry projects the single entry with the given id.
func (r *GlobalRepo) FindEntry(ctx context.Context, userID uint64, id primitive.ObjectID) (*model.GlobalEntry, error) {
	return r.findOne(ctx, userID, bson.M{"_id": id})
}

// FindByType projects the first entry of blockType.
func (r *GlobalRepo) FindByType(ctx context.Context, userID uint64, blockType string) (*model.GlobalEntry, error) {
	return r.findOne(ctx, userID, bson.M{"blockType": blockType})
}

func (r *GlobalRepo) findOne(ctx context.Context, userID uint64, match bson.M) (*model.GlobalEntry, error) {
	opts := options.FindOne().SetProjection(bson.M{
		"_id":     0,
		"globals": bson.M{"$elemMatch": match},
	})
	var doc struct {
		Globals []model.GlobalEntry `bson:"globals"`
	}
	err := r.Coll.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(doc.Globals) == 0 {
		return nil, ErrNotFound
	}
	return &doc.Globals[0], nil
}
