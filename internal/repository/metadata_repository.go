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

// MetadataRepo persists the content block registry.
type MetadataRepo struct{ Coll *mongo.Collection }

func NewMetadataRepo(db *mongo.Database) *MetadataRepo {
	return &MetadataRepo{Coll: db.Collection(MetadataCollection)}
}

// List returns every registry entry ordered by section then blockType.
func (r *MetadataRepo) List(ctx context.Context) ([]model.BlockMetadata, error) {
	opts := options.Find().SetSort(bson.D{{Key: "section", Value: 1}, {Key: "blockType", Value: 1}})
	cur, err := r.Coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	items := []model.BlockMetadata{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MetadataRepo) GetByType(ctx context.Context, blockType string) (model.BlockMetadata, error) {
	return r.findOne(ctx, bson.M{"blockType": blockType})
}

func (r *MetadataRepo) GetByID(ctx context.Context, id primitive.ObjectID) (model.BlockMetadata, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MetadataRepo) findOne(ctx context.Context, filter bson.M) (model.BlockMetadata, error) {
	var m model.BlockMetadata
	err := r.Coll.FindOne(ctx, filter).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.BlockMetadata{}, ErrNotFound
	}
	return m, err
}

// Create inserts m and sets its ID.
func (r *MetadataRepo) Create(ctx context.Context, m *model.BlockMetadata) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if _, err := r.Coll.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Update replaces the entry identified by m.ID.
func (r *MetadataRepo) Update(ctx context.Context, m model.BlockMetadata) error {
	res, err := r.Coll.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MetadataRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MetadataRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.Coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
