package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/page-builder/internal/model"
)

// NewMemoryPageRepository constructs an in-memory PageRepository.
func NewMemoryPageRepository() *MemoryPageRepository {
	return &MemoryPageRepository{byUser: make(map[uint64]*model.PageSet)}
}

// MemoryPageRepository keeps PageSets in a map with the same versioning
// rules as the Mongo implementation.
type MemoryPageRepository struct {
	mu     sync.RWMutex
	byUser map[uint64]*model.PageSet
}

func (m *MemoryPageRepository) Get(_ context.Context, userID uint64) (*model.PageSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryPageRepository) Save(_ context.Context, set *model.PageSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byUser[set.UserID]
	switch {
	case set.Version == 0 && ok:
		return ErrVersionConflict
	case set.Version != 0 && (!ok || cur.Version != set.Version):
		return ErrVersionConflict
	}
	if set.ID.IsZero() {
		set.ID = primitive.NewObjectID()
	}
	set.Version++
	m.byUser[set.UserID] = set.Clone()
	return nil
}

// NewMemoryGlobalRepository constructs an in-memory GlobalRepository.
func NewMemoryGlobalRepository() *MemoryGlobalRepository {
	return &MemoryGlobalRepository{byUser: make(map[uint64]*model.GlobalSet)}
}

type MemoryGlobalRepository struct {
	mu     sync.RWMutex
	byUser map[uint64]*model.GlobalSet
}

func (m *MemoryGlobalRepository) Get(_ context.Context, userID uint64) (*model.GlobalSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryGlobalRepository) Save(_ context.Context, set *model.GlobalSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byUser[set.UserID]
	switch {
	case set.Version == 0 && ok:
		return ErrVersionConflict
	case set.Version != 0 && (!ok || cur.Version != set.Version):
		return ErrVersionConflict
	}
	if set.ID.IsZero() {
		set.ID = primitive.NewObjectID()
	}
	set.Version++
	m.byUser[set.UserID] = set.Clone()
	return nil
}

func (m *MemoryGlobalRepository) Delete(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUser[userID]; !ok {
		return ErrNotFound
	}
	delete(m.byUser, userID)
	return nil
}

func (m *MemoryGlobalRepository) FindEntry(_ context.Context, userID uint64, id primitive.ObjectID) (*model.GlobalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	i := s.FindByID(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	e := s.Globals[i].Clone()
	return &e, nil
}

func (m *MemoryGlobalRepository) FindByType(_ context.Context, userID uint64, blockType string) (*model.GlobalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	i := s.FindByType(blockType)
	if i < 0 {
		return nil, ErrNotFound
	}
	e := s.Globals[i].Clone()
	return &e, nil
}

// NewMemoryMetadataRepository constructs an in-memory MetadataRepository
// preloaded with items.
func NewMemoryMetadataRepository(items ...model.BlockMetadata) *MemoryMetadataRepository {
	m := &MemoryMetadataRepository{byID: make(map[primitive.ObjectID]model.BlockMetadata)}
	for _, it := range items {
		it := it
		_ = m.Create(context.Background(), &it)
	}
	return m
}

type MemoryMetadataRepository struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]model.BlockMetadata
}

func (m *MemoryMetadataRepository) List(_ context.Context) ([]model.BlockMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]model.BlockMetadata, 0, len(m.byID))
	for _, it := range m.byID {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Section != items[j].Section {
			return items[i].Section < items[j].Section
		}
		return items[i].BlockType < items[j].BlockType
	})
	return items, nil
}

func (m *MemoryMetadataRepository) GetByType(_ context.Context, blockType string) (model.BlockMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, it := range m.byID {
		if it.BlockType == blockType {
			return it, nil
		}
	}
	return model.BlockMetadata{}, ErrNotFound
}

func (m *MemoryMetadataRepository) GetByID(_ context.Context, id primitive.ObjectID) (model.BlockMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.byID[id]
	if !ok {
		return model.BlockMetadata{}, ErrNotFound
	}
	return it, nil
}

func (m *MemoryMetadataRepository) Create(_ context.Context, md *model.BlockMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.typeTaken(md.BlockType, primitive.NilObjectID) {
		return ErrDuplicate
	}
	if md.ID.IsZero() {
		md.ID = primitive.NewObjectID()
	}
	m.byID[md.ID] = *md
	return nil
}

func (m *MemoryMetadataRepository) Update(_ context.Context, md model.BlockMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[md.ID]; !ok {
		return ErrNotFound
	}
	if m.typeTaken(md.BlockType, md.ID) {
		return ErrDuplicate
	}
	m.byID[md.ID] = md
	return nil
}

func (m *MemoryMetadataRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *MemoryMetadataRepository) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.byID))
	m.byID = make(map[primitive.ObjectID]model.BlockMetadata)
	return n, nil
}

func (m *MemoryMetadataRepository) typeTaken(blockType string, except primitive.ObjectID) bool {
	for id, it := range m.byID {
		if id != except && it.BlockType == blockType {
			return true
		}
	}
	return false
}

// NewMemoryUserDirectory constructs an in-memory UserDirectory.
func NewMemoryUserDirectory(users ...model.User) *MemoryUserDirectory {
	d := &MemoryUserDirectory{byID: make(map[uint64]model.User)}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

type MemoryUserDirectory struct {
	mu   sync.RWMutex
	byID map[uint64]model.User
}

// Put adds or replaces a user.
func (d *MemoryUserDirectory) Put(u model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	d.byID[u.ID] = u
}

func (d *MemoryUserDirectory) GetByID(_ context.Context, id uint64) (model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (d *MemoryUserDirectory) GetByEmail(_ context.Context, email string) (model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range d.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}
