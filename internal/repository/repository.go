package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/page-builder/internal/model"
)

// PageRepository stores one PageSet per user.
//
// Save writes the whole document.  A set with Version 0 is inserted; any
// other set replaces the stored document only when the stored version
// still equals set.Version.  On success set.Version is advanced to the
// persisted value; on a lost race ErrVersionConflict is returned and the
// store is unchanged.
type PageRepository interface {
	Get(ctx context.Context, userID uint64) (*model.PageSet, error)
	Save(ctx context.Context, set *model.PageSet) error
}

// GlobalRepository stores one GlobalSet per user.  Save follows the same
// versioning rules as PageRepository.Save.  FindEntry and FindByType fetch
// a single entry without loading the rest of the document.
type GlobalRepository interface {
	Get(ctx context.Context, userID uint64) (*model.GlobalSet, error)
	Save(ctx context.Context, set *model.GlobalSet) error
	Delete(ctx context.Context, userID uint64) error
	FindEntry(ctx context.Context, userID uint64, id primitive.ObjectID) (*model.GlobalEntry, error)
	FindByType(ctx context.Context, userID uint64, blockType string) (*model.GlobalEntry, error)
}

// MetadataRepository stores the content block registry.  BlockType is
// unique; Create and Update return ErrDuplicate on a clash.
type MetadataRepository interface {
	List(ctx context.Context) ([]model.BlockMetadata, error)
	GetByType(ctx context.Context, blockType string) (model.BlockMetadata, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (model.BlockMetadata, error)
	Create(ctx context.Context, m *model.BlockMetadata) error
	Update(ctx context.Context, m model.BlockMetadata) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteAll(ctx context.Context) (int64, error)
}

// UserDirectory resolves account records.
type UserDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
}
