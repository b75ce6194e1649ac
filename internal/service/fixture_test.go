package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/queue"
	"github.com/iliyamo/page-builder/internal/repository"
	"github.com/iliyamo/page-builder/internal/service"
)

const (
	freeUser uint64 = 1
	proUser  uint64 = 2
)

func seedMetadata() []model.BlockMetadata {
	row := func(bt string, limit int, pro, global bool) model.BlockMetadata {
		return model.BlockMetadata{BlockType: bt, Title: bt, BlockLimit: limit, Pro: pro, Global: global}
	}
	return []model.BlockMetadata{
		row("link", model.Unlimited, false, false),
		row("bio", 1, false, true),
		row("social", 1, false, true),
		row("video", 5, false, false),
		row("carousel", 5, true, false),
		row("image", model.Unlimited, false, false),
		row("audio", 5, false, false),
		row("heading", model.Unlimited, false, false),
		row("text", model.Unlimited, false, false),
		row("linkToPage", model.Unlimited, true, false),
		row("appLink", 5, true, false),
		row("clipboard", model.Unlimited, true, false),
		row("contactCard", 1, true, true),
		row("logo", 1, true, true),
		row("emailSubscribe", 1, true, false),
		row("contactForm", 1, true, false),
	}
}

type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// flakyPages fails the next n saves with err.  before, when set, runs once
// ahead of the next save.
type flakyPages struct {
	repository.PageRepository
	n      int
	err    error
	before func()
}

func (f *flakyPages) Save(ctx context.Context, set *model.PageSet) error {
	if hook := f.before; hook != nil {
		f.before = nil
		hook()
	}
	if f.n > 0 {
		f.n--
		return f.err
	}
	return f.PageRepository.Save(ctx, set)
}

type fixture struct {
	ctx     context.Context
	svc     *service.Service
	pages   *repository.MemoryPageRepository
	flaky   *flakyPages
	globals *repository.MemoryGlobalRepository
	meta    *repository.MemoryMetadataRepository
	events  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		pages:   repository.NewMemoryPageRepository(),
		globals: repository.NewMemoryGlobalRepository(),
		meta:    repository.NewMemoryMetadataRepository(seedMetadata()...),
		events:  &recorder{},
	}
	f.flaky = &flakyPages{PageRepository: f.pages}
	f.svc = service.New(service.Deps{
		Pages:    f.flaky,
		Globals:  f.globals,
		Metadata: f.meta,
		Users: repository.NewMemoryUserDirectory(
			model.User{ID: freeUser, Email: "free@example.com", IsActive: true},
			model.User{ID: proUser, Email: "pro@example.com", IsActive: true, IsPro: true},
		),
		Events: f.events,
	})
	return f
}

func (f *fixture) newPage(t *testing.T, userID uint64, title string) primitive.ObjectID {
	t.Helper()
	p, err := f.svc.Pages.Create(f.ctx, userID, title)
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) storedPage(t *testing.T, userID uint64, pageID primitive.ObjectID) model.Page {
	t.Helper()
	set, err := f.pages.Get(f.ctx, userID)
	require.NoError(t, err)
	i := set.Find(pageID)
	require.GreaterOrEqual(t, i, 0)
	return set.Pages[i]
}

func (f *fixture) pageVersion(t *testing.T, userID uint64) int64 {
	t.Helper()
	set, err := f.pages.Get(f.ctx, userID)
	require.NoError(t, err)
	return set.Version
}
