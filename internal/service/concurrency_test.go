package service_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/page-builder/internal/blocktype"
	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/repository"
	"github.com/iliyamo/page-builder/internal/service"
)

func (f *fixture) socialOn(t *testing.T, userID uint64, pageID primitive.ObjectID) []model.SocialAccount {
	t.Helper()
	got, err := f.svc.Pages.Get(f.ctx, userID, pageID)
	require.NoError(t, err)
	for _, b := range got.ContentBlocks {
		if b.BlockType == blocktype.Social {
			accounts, ok := b.Data.([]model.SocialAccount)
			require.True(t, ok)
			return accounts
		}
	}
	t.Fatalf("no social block on page %s", pageID.Hex())
	return nil
}

func TestRollbackKeepsAccountAnotherPageCommitted(t *testing.T) {
	f := newFixture(t)
	one := f.newPage(t, freeUser, "one")
	two := f.newPage(t, freeUser, "two")

	// the second request lands between the first one's globals write and
	// its page write, reusing the account the first one just added
	var other error
	f.flaky.before = func() {
		_, other = f.createSocial(t, freeUser, two, 1, account("tiktok", "https://tt/b"))
	}
	_, err := f.createSocial(t, freeUser, one, 1, account("tiktok", "https://tt/a"))
	require.ErrorIs(t, err, service.ErrWriteConflict)
	require.NoError(t, other)

	accounts := f.socialOn(t, freeUser, two)
	require.Len(t, accounts, 1)
	assert.Equal(t, "tiktok", accounts[0].Platform)
	assert.Equal(t, "https://tt/b", accounts[0].AccountURL)
	assert.Empty(t, f.storedPage(t, freeUser, one).ContentBlocks)
}

func TestRollbackKeepsConcurrentURLChange(t *testing.T) {
	f := newFixture(t)
	pageID := f.newPage(t, freeUser, "P")
	_, err := f.svc.Blocks.UpsertSocial(f.ctx, freeUser, []model.SocialAccount{account("instagram", "https://ig/old")})
	require.NoError(t, err)

	f.flaky.n, f.flaky.err = 1, repository.ErrVersionConflict
	f.flaky.before = func() {
		_, err := f.svc.Blocks.UpsertSocial(f.ctx, freeUser, []model.SocialAccount{account("instagram", "https://ig/other")})
		require.NoError(t, err)
	}
	_, err = f.createSocial(t, freeUser, pageID, 1, account("instagram", "https://ig/mine"))
	require.ErrorIs(t, err, service.ErrWriteConflict)

	entry, err := f.globals.FindByType(f.ctx, freeUser, blocktype.Social)
	require.NoError(t, err)
	require.Len(t, entry.Accounts, 1)
	assert.Equal(t, "https://ig/other", entry.Accounts[0].AccountURL)
}

func TestRollbackKeepsSingletonInsertedElsewhere(t *testing.T) {
	f := newFixture(t)
	one := f.newPage(t, freeUser, "one")
	two := f.newPage(t, freeUser, "two")

	var other error
	f.flaky.before = func() {
		entry, err := f.globals.FindByType(f.ctx, freeUser, blocktype.Bio)
		require.NoError(t, err)
		_, other = f.svc.Blocks.InsertGlobal(f.ctx, service.InsertGlobalInput{
			UserID: freeUser, PageID: two, BlockType: blocktype.Bio, BlockOrder: 1, EntryID: entry.ID,
		})
	}
	_, err := f.create(t, freeUser, one, "bio", 1, model.Payload{"bioText": "shared"})
	require.ErrorIs(t, err, service.ErrWriteConflict)
	require.NoError(t, other)

	got, err := f.svc.Pages.Get(f.ctx, freeUser, two)
	require.NoError(t, err)
	require.Len(t, got.ContentBlocks, 1)
	assert.Equal(t, model.Payload{"bioText": "shared"}, got.ContentBlocks[0].Data)
}

func TestEnsureRestoresRemovedAccount(t *testing.T) {
	f := newFixture(t)
	pageID := f.newPage(t, freeUser, "P")
	_, err := f.svc.Blocks.UpsertSocial(f.ctx, freeUser, []model.SocialAccount{
		account("instagram", "https://ig"),
		account("twitter", "https://x"),
	})
	require.NoError(t, err)
	snap, err := f.globals.FindByType(f.ctx, freeUser, blocktype.Social)
	require.NoError(t, err)
	b, err := f.svc.Blocks.LinkSocial(f.ctx, freeUser, pageID, 1, []string{"instagram", "twitter"})
	require.NoError(t, err)

	set, err := f.globals.Get(f.ctx, freeUser)
	require.NoError(t, err)
	i := set.FindByType(blocktype.Social)
	set.Globals[i].Accounts = set.Globals[i].Accounts[:1]
	require.NoError(t, f.globals.Save(f.ctx, set))
	require.Len(t, f.socialOn(t, freeUser, pageID), 1)

	require.NoError(t, f.svc.Resolver.Ensure(f.ctx, freeUser, b.Data, *snap))
	accounts := f.socialOn(t, freeUser, pageID)
	require.Len(t, accounts, 2)
	assert.Equal(t, "twitter", accounts[1].Platform)

	// nothing missing, nothing written
	before, err := f.globals.Get(f.ctx, freeUser)
	require.NoError(t, err)
	require.NoError(t, f.svc.Resolver.Ensure(f.ctx, freeUser, b.Data, *snap))
	after, err := f.globals.Get(f.ctx, freeUser)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestConcurrentCreatesAtSameOrder(t *testing.T) {
	f := newFixture(t)
	pageID := f.newPage(t, freeUser, "P")

	heading := kind(t, "heading")
	const n = 50
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Blocks.Create(f.ctx, heading, service.CreateInput{
				UserID: freeUser, PageID: pageID, BlockType: "heading", BlockOrder: 1,
				Data: model.Payload{"heading": "h"},
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t,
			errors.Is(err, service.ErrDuplicateOrder) || errors.Is(err, service.ErrWriteConflict),
			"unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, f.storedPage(t, freeUser, pageID).ContentBlocks, 1)
}

func TestConcurrentSingletonCreatesLeaveOneEntry(t *testing.T) {
	f := newFixture(t)
	const n = 20
	pages := make([]primitive.ObjectID, n)
	for i := range pages {
		pages[i] = f.newPage(t, freeUser, "P")
	}

	bio := kind(t, "bio")
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Blocks.Create(f.ctx, bio, service.CreateInput{
				UserID: freeUser, PageID: pages[i], BlockType: "bio", BlockOrder: 1,
				Data: model.Payload{"bioText": "b"},
			})
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "two creates succeeded")
			winner = i
			continue
		}
		assert.True(t,
			errors.Is(err, service.ErrAlreadyInGlobals) || errors.Is(err, service.ErrWriteConflict),
			"unexpected error %v", err)
	}
	require.GreaterOrEqual(t, winner, 0)

	set, err := f.globals.Get(f.ctx, freeUser)
	require.NoError(t, err)
	require.Len(t, set.Globals, 1)
	got, err := f.svc.Pages.Get(f.ctx, freeUser, pages[winner])
	require.NoError(t, err)
	require.Len(t, got.ContentBlocks, 1)
	assert.Equal(t, model.Payload{"bioText": "b"}, got.ContentBlocks[0].Data)
}
