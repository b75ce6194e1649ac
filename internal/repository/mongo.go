package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	PagesCollection    = "pages"
	GlobalsCollection  = "globals"
	MetadataCollection = "content_block_metadata"
)

// EnsureIndexes creates the unique indexes the repositories rely on.  It is
// idempotent and safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	wanted := []struct {
		coll string
		key  string
	}{
		{PagesCollection, "userId"},
		{GlobalsCollection, "userId"},
		{MetadataCollection, "blockType"},
	}
	for _, s := range wanted {
		_, err := db.Collection(s.coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: s.key, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("index %s.%s: %w", s.coll, s.key, err)
		}
	}
	return nil
}

// findByUser decodes the per-user document into out.
func findByUser(ctx context.Context, coll *mongo.Collection, userID uint64, out any) error {
	err := coll.FindOne(ctx, bson.M{"userId": userID}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// insertVersioned inserts the first version of a per-user document.  A
// duplicate userId means a concurrent writer created it first.
func insertVersioned(ctx context.Context, coll *mongo.Collection, doc any) (primitive.ObjectID, error) {
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, ErrVersionConflict
		}
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// replaceVersioned swaps the stored document only if it still carries the
// expected version.
func replaceVersioned(ctx context.Context, coll *mongo.Collection, userID uint64, expected int64, doc any) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"userId": userID, "version": expected}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}
