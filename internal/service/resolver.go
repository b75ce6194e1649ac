package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/page-builder/internal/blocktype"
	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/repository"
)

// rollbackAttempts bounds retries of a compensating write that lost a race.
const rollbackAttempts = 3

// Resolver moves global block data between pages and the user's globals.
// On write it stores the data in globals and hands back the reference to
// place on the page; on read it expands references into literal data.
// Pages is consulted when undoing a write, so data another page has come
// to reference is never removed.
type Resolver struct {
	Globals repository.GlobalRepository
	Pages   repository.PageRepository
	Log     *zap.Logger
}

// Attachment is the outcome of a global write.  Data is what the page
// stores; Entry is the full updated global entry.
type Attachment struct {
	Data  model.BlockData
	Entry model.GlobalEntry
	undo  undo
}

// undo records what an attach changed so it can be reverted.
type undo struct {
	userID  uint64
	entryID primitive.ObjectID
	created bool
	added   []primitive.ObjectID
	urls    map[primitive.ObjectID]urlChange
}

// urlChange is an accountUrl overwritten by an attach.
type urlChange struct {
	previous string
	written  string
}

func (r *Resolver) load(ctx context.Context, userID uint64) (*model.GlobalSet, error) {
	set, err := r.Globals.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.GlobalSet{UserID: userID, Globals: []model.GlobalEntry{}}, nil
	}
	return set, err
}

// Attach writes the block's data to globals according to the kind's storage.
func (r *Resolver) Attach(ctx context.Context, userID uint64, kind blocktype.Kind, data model.Payload, accounts []model.SocialAccount) (*Attachment, error) {
	switch kind.Storage {
	case blocktype.GlobalSingleton:
		return r.AttachSingleton(ctx, userID, kind.Name, data)
	case blocktype.GlobalList:
		return r.AttachSocial(ctx, userID, accounts)
	default:
		return nil, ErrNotGlobalType
	}
}

// AttachSingleton creates the user's only entry of blockType.  An existing
// entry is never overwritten here; edits go through EditSingleton.
func (r *Resolver) AttachSingleton(ctx context.Context, userID uint64, blockType string, data model.Payload) (*Attachment, error) {
	set, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if set.FindByType(blockType) >= 0 {
		return nil, ErrAlreadyInGlobals
	}
	if data == nil {
		data = model.Payload{}
	}
	entry := model.GlobalEntry{
		ID:        primitive.NewObjectID(),
		BlockType: blockType,
		Data:      model.ClonePayload(data),
	}
	set.Globals = append(set.Globals, entry)
	if err := r.Globals.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	return &Attachment{
		Data:  model.GlobalRef(entry.ID),
		Entry: entry.Clone(),
		undo:  undo{userID: userID, entryID: entry.ID, created: true},
	}, nil
}

// AttachSocial upserts accounts into the user's social entry, matching by
// platform: a known platform gets its accountUrl overwritten, an unknown one
// is appended with a fresh id.  The returned Data references the accounts
// in the order they were given.
func (r *Resolver) AttachSocial(ctx context.Context, userID uint64, accounts []model.SocialAccount) (*Attachment, error) {
	if len(accounts) == 0 {
		return nil, Invalid("social data must contain at least one account")
	}
	for _, a := range accounts {
		if strings.TrimSpace(a.Platform) == "" {
			return nil, Invalid("social account platform is required")
		}
	}
	set, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	u := undo{userID: userID, urls: map[primitive.ObjectID]urlChange{}}
	i := set.FindByType(blocktype.Social)
	if i < 0 {
		set.Globals = append(set.Globals, model.GlobalEntry{
			ID:        primitive.NewObjectID(),
			BlockType: blocktype.Social,
			Accounts:  []model.SocialAccount{},
		})
		i = len(set.Globals) - 1
		u.created = true
	}
	entry := &set.Globals[i]
	u.entryID = entry.ID

	ids := make([]primitive.ObjectID, 0, len(accounts))
	seen := map[primitive.ObjectID]bool{}
	for _, a := range accounts {
		j := entry.FindPlatform(a.Platform)
		if j >= 0 {
			cur := &entry.Accounts[j]
			ch, recorded := u.urls[cur.ID]
			if !recorded {
				ch.previous = cur.AccountURL
			}
			ch.written = a.AccountURL
			if !u.created && !contains(u.added, cur.ID) {
				u.urls[cur.ID] = ch
			}
			cur.AccountURL = a.AccountURL
			if a.Icon != "" {
				cur.Icon = a.Icon
			}
		} else {
			a.ID = primitive.NewObjectID()
			entry.Accounts = append(entry.Accounts, a)
			j = len(entry.Accounts) - 1
			u.added = append(u.added, a.ID)
		}
		id := entry.Accounts[j].ID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if err := r.Globals.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	return &Attachment{Data: model.GlobalRefs(ids), Entry: entry.Clone(), undo: u}, nil
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Rollback reverts the global write recorded in a.  It re-reads globals so
// unrelated changes made since the attach survive: an entry or account that
// some page references by now is kept, and an accountUrl is restored only
// while it still holds the value this attach wrote.
func (r *Resolver) Rollback(ctx context.Context, a *Attachment) error {
	if a == nil {
		return nil
	}
	u := a.undo
	var err error
	for attempt := 0; attempt < rollbackAttempts; attempt++ {
		var (
			set  *model.GlobalSet
			refs map[primitive.ObjectID]bool
		)
		set, err = r.Globals.Get(ctx, u.userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if refs, err = r.referenced(ctx, u.userID); err != nil {
			return err
		}
		i := set.FindByID(u.entryID)
		if i < 0 {
			return nil
		}
		removed, changed := revert(set, i, u, refs)
		if !changed {
			return nil
		}
		err = r.Globals.Save(ctx, set)
		if err == nil {
			return r.reinstate(ctx, u.userID, removed)
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return err
}

// revert applies u to the entry at i and reports what it took out.
func revert(set *model.GlobalSet, i int, u undo, refs map[primitive.ObjectID]bool) (model.GlobalEntry, bool) {
	e := &set.Globals[i]
	removed := model.GlobalEntry{ID: e.ID, BlockType: e.BlockType}
	if e.BlockType != blocktype.Social {
		if !u.created || refs[e.ID] {
			return removed, false
		}
		removed = e.Clone()
		set.Globals = append(set.Globals[:i], set.Globals[i+1:]...)
		return removed, true
	}

	changed := false
	kept := make([]model.SocialAccount, 0, len(e.Accounts))
	for _, acc := range e.Accounts {
		if contains(u.added, acc.ID) && !refs[acc.ID] {
			removed.Accounts = append(removed.Accounts, acc)
			changed = true
			continue
		}
		if ch, ok := u.urls[acc.ID]; ok && acc.AccountURL == ch.written && ch.previous != ch.written {
			acc.AccountURL = ch.previous
			changed = true
		}
		kept = append(kept, acc)
	}
	e.Accounts = kept
	if u.created && len(kept) == 0 {
		set.Globals = append(set.Globals[:i], set.Globals[i+1:]...)
		changed = true
	}
	return removed, changed
}

// reinstate puts back whatever part of removed a page started referencing
// while the rollback was being written.
func (r *Resolver) reinstate(ctx context.Context, userID uint64, removed model.GlobalEntry) error {
	refs, err := r.referenced(ctx, userID)
	if err != nil {
		return err
	}
	if removed.BlockType != blocktype.Social {
		if !refs[removed.ID] {
			return nil
		}
		return r.Ensure(ctx, userID, model.GlobalRef(removed.ID), removed)
	}
	var ids []primitive.ObjectID
	for _, acc := range removed.Accounts {
		if refs[acc.ID] {
			ids = append(ids, acc.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return r.Ensure(ctx, userID, model.GlobalRefs(ids), removed)
}

// referenced collects every global id the user's pages point at.
func (r *Resolver) referenced(ctx context.Context, userID uint64) (map[primitive.ObjectID]bool, error) {
	refs := map[primitive.ObjectID]bool{}
	if r.Pages == nil {
		return refs, nil
	}
	set, err := r.Pages.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return refs, nil
	}
	if err != nil {
		return nil, err
	}
	for _, p := range set.Pages {
		for _, b := range p.ContentBlocks {
			switch b.Data.Storage {
			case model.StorageGlobalRef:
				refs[b.Data.Ref] = true
			case model.StorageGlobalRefs:
				for _, id := range b.Data.Refs {
					refs[id] = true
				}
			}
		}
	}
	return refs, nil
}

// Ensure makes sure every reference in data exists in globals after a page
// write committed it, restoring missing pieces from snap.  A singleton is
// not restored when the user already has another entry of its type, and an
// account is not restored over another account of the same platform.
func (r *Resolver) Ensure(ctx context.Context, userID uint64, data model.BlockData, snap model.GlobalEntry) error {
	if !data.IsGlobal() {
		return nil
	}
	var err error
	for attempt := 0; attempt < rollbackAttempts; attempt++ {
		var set *model.GlobalSet
		if set, err = r.load(ctx, userID); err != nil {
			return err
		}
		if !restore(set, data, snap) {
			return nil
		}
		err = r.Globals.Save(ctx, set)
		if err == nil {
			r.Log.Warn("restored global data removed by a concurrent rollback",
				zap.Uint64("user_id", userID), zap.String("block_type", snap.BlockType))
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return err
}

func restore(set *model.GlobalSet, data model.BlockData, snap model.GlobalEntry) bool {
	switch data.Storage {
	case model.StorageGlobalRef:
		if data.Ref != snap.ID || set.FindByID(snap.ID) >= 0 || set.FindByType(snap.BlockType) >= 0 {
			return false
		}
		set.Globals = append(set.Globals, snap.Clone())
		return true
	case model.StorageGlobalRefs:
		i := set.FindByType(blocktype.Social)
		var missing []model.SocialAccount
		for _, id := range data.Refs {
			if i >= 0 && hasAccount(set.Globals[i].Accounts, id) {
				continue
			}
			for _, acc := range snap.Accounts {
				if acc.ID == id {
					missing = append(missing, acc)
				}
			}
		}
		if len(missing) == 0 {
			return false
		}
		if i < 0 {
			set.Globals = append(set.Globals, model.GlobalEntry{
				ID:        snap.ID,
				BlockType: blocktype.Social,
				Accounts:  []model.SocialAccount{},
			})
			i = len(set.Globals) - 1
		}
		e := &set.Globals[i]
		changed := false
		for _, acc := range missing {
			if e.FindPlatform(acc.Platform) >= 0 {
				continue
			}
			e.Accounts = append(e.Accounts, acc)
			changed = true
		}
		return changed
	default:
		return false
	}
}

func hasAccount(accounts []model.SocialAccount, id primitive.ObjectID) bool {
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

// EditSingleton overwrites the data of the user's entry of blockType.
// Every page referencing the entry sees the change on its next read.
func (r *Resolver) EditSingleton(ctx context.Context, userID uint64, blockType string, data model.Payload) (*model.GlobalEntry, error) {
	set, err := r.Globals.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGlobalNotFound
	}
	if err != nil {
		return nil, err
	}
	i := set.FindByType(blockType)
	if i < 0 {
		return nil, ErrGlobalNotFound
	}
	if data == nil {
		data = model.Payload{}
	}
	set.Globals[i].Data = model.ClonePayload(data)
	if err := r.Globals.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	e := set.Globals[i].Clone()
	return &e, nil
}

// ReplaceSocial sets the user's social accounts to exactly accounts.
// Platforms already present keep their ids so page references stay valid.
func (r *Resolver) ReplaceSocial(ctx context.Context, userID uint64, accounts []model.SocialAccount) (*model.GlobalEntry, error) {
	for _, a := range accounts {
		if strings.TrimSpace(a.Platform) == "" {
			return nil, Invalid("social account platform is required")
		}
	}
	set, err := r.Globals.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGlobalNotFound
	}
	if err != nil {
		return nil, err
	}
	i := set.FindByType(blocktype.Social)
	if i < 0 {
		return nil, ErrGlobalNotFound
	}
	entry := &set.Globals[i]
	next := make([]model.SocialAccount, 0, len(accounts))
	for _, a := range accounts {
		if j := entry.FindPlatform(a.Platform); j >= 0 {
			a.ID = entry.Accounts[j].ID
		} else {
			a.ID = primitive.NewObjectID()
		}
		dup := false
		for k := range next {
			if next[k].Platform == a.Platform {
				next[k] = a
				dup = true
			}
		}
		if !dup {
			next = append(next, a)
		}
	}
	entry.Accounts = next
	if err := r.Globals.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	e := entry.Clone()
	return &e, nil
}

// Resolve expands stored block data into literal data.  A reference that
// no longer resolves yields empty data instead of an error so one broken
// block cannot break the page around it.  Social accounts are returned in
// the order they are stored in globals.
func (r *Resolver) Resolve(ctx context.Context, userID uint64, data model.BlockData) any {
	switch data.Storage {
	case model.StorageGlobalRef:
		entry, err := r.Globals.FindEntry(ctx, userID, data.Ref)
		if err != nil {
			r.logMiss(userID, data, err)
			return model.Payload{}
		}
		if entry.Data == nil {
			return model.Payload{}
		}
		return entry.Data
	case model.StorageGlobalRefs:
		out := []model.SocialAccount{}
		entry, err := r.Globals.FindByType(ctx, userID, blocktype.Social)
		if err != nil {
			r.logMiss(userID, data, err)
			return out
		}
		want := make(map[primitive.ObjectID]bool, len(data.Refs))
		for _, id := range data.Refs {
			want[id] = true
		}
		for _, acc := range entry.Accounts {
			if want[acc.ID] {
				out = append(out, acc)
			}
		}
		return out
	default:
		if data.Inline == nil {
			return model.Payload{}
		}
		return data.Inline
	}
}

func (r *Resolver) logMiss(userID uint64, data model.BlockData, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		r.Log.Debug("global reference not resolved",
			zap.Uint64("user_id", userID), zap.String("storage", string(data.Storage)))
		return
	}
	r.Log.Warn("global lookup failed", zap.Uint64("user_id", userID), zap.Error(err))
}
