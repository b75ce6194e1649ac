package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/page-builder/internal/blocktype"
	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/queue"
	"github.com/iliyamo/page-builder/internal/repository"
)

// Blocks is the block service shared by every block kind.  The kind passed
// to each operation selects inline or global storage.
type Blocks struct {
	pages     repository.PageRepository
	globals   repository.GlobalRepository
	placement *Placement
	resolver  *Resolver
	notify    notifier
	log       *zap.Logger
}

// CreateInput is the payload of a block create request.  Data carries the
// object payload; Accounts carries social accounts for list kinds.
type CreateInput struct {
	UserID     uint64
	PageID     primitive.ObjectID
	BlockType  string
	BlockOrder int
	Data       model.Payload
	Accounts   []model.SocialAccount
}

// Created is the result of a create.  Global is set for global kinds.
type Created struct {
	Block  model.ContentBlock `json:"block"`
	Global *model.GlobalEntry `json:"global,omitempty"`
}

// Create places a new block on a page.  For global kinds the data is
// written to globals first; if the page write then fails the global write
// is reverted before the error is returned.
func (s *Blocks) Create(ctx context.Context, kind blocktype.Kind, in CreateInput) (*Created, error) {
	if in.BlockType != kind.Name {
		return nil, ErrBlockTypeMismatch
	}
	user, err := loadUser(ctx, s.placement.Users, in.UserID)
	if err != nil {
		return nil, err
	}
	set, pi, err := loadPage(ctx, s.pages, in.UserID, in.PageID)
	if err != nil {
		return nil, err
	}
	page := &set.Pages[pi]
	if _, err := s.placement.Validate(ctx, user, page, kind.Name, in.BlockOrder); err != nil {
		return nil, err
	}

	out := &Created{}
	var att *Attachment
	data := model.InlineData(model.ClonePayload(in.Data))
	if kind.IsGlobal() {
		att, err = s.resolver.Attach(ctx, in.UserID, kind, in.Data, in.Accounts)
		if err != nil {
			return nil, err
		}
		data = att.Data
		entry := att.Entry
		out.Global = &entry
	}

	block := model.ContentBlock{
		ID:         primitive.NewObjectID(),
		BlockType:  kind.Name,
		BlockOrder: in.BlockOrder,
		Data:       data,
	}
	page.ContentBlocks = append(page.ContentBlocks, block)
	if err := s.pages.Save(ctx, set); err != nil {
		if att != nil {
			if rerr := s.resolver.Rollback(ctx, att); rerr != nil {
				s.log.Error("global rollback failed",
					zap.Uint64("user_id", in.UserID),
					zap.String("block_type", kind.Name),
					zap.Error(rerr))
			}
		}
		return nil, storeErr(err)
	}
	if att != nil {
		s.ensure(ctx, in.UserID, block, att.Entry)
	}

	out.Block = block
	s.notify.emit(ctx, blockEvent(queue.BlockCreated, in.UserID, in.PageID, block))
	return out, nil
}

// UpdateInput is the payload of a block edit request.
type UpdateInput struct {
	UserID    uint64
	PageID    primitive.ObjectID
	BlockID   primitive.ObjectID
	BlockType string
	Data      model.Payload
	Accounts  []model.SocialAccount
}

// Update overwrites a block's data.  Inline blocks are changed in place on
// the page; blocks backed by globals change the shared entry, leaving the
// page's reference untouched.
func (s *Blocks) Update(ctx context.Context, kind blocktype.Kind, in UpdateInput) (any, error) {
	if in.BlockType != "" && in.BlockType != kind.Name {
		return nil, ErrBlockTypeMismatch
	}
	set, pi, err := loadPage(ctx, s.pages, in.UserID, in.PageID)
	if err != nil {
		return nil, err
	}
	page := &set.Pages[pi]
	bi := page.FindBlock(in.BlockID)
	if bi < 0 {
		return nil, ErrBlockNotFound
	}
	block := &page.ContentBlocks[bi]
	if block.BlockType != kind.Name {
		return nil, ErrBlockTypeMismatch
	}
	if block.Data.IsGlobal() {
		return s.UpdateGlobal(ctx, kind, in.UserID, in.Data, in.Accounts)
	}

	if in.Data == nil {
		in.Data = model.Payload{}
	}
	block.Data = model.InlineData(model.ClonePayload(in.Data))
	if err := s.pages.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	s.notify.emit(ctx, blockEvent(queue.BlockUpdated, in.UserID, in.PageID, *block))
	return block.Data.Inline, nil
}

// UpdateGlobal edits the user's global entry of a global kind without
// touching any page.
func (s *Blocks) UpdateGlobal(ctx context.Context, kind blocktype.Kind, userID uint64, data model.Payload, accounts []model.SocialAccount) (*model.GlobalEntry, error) {
	var (
		entry *model.GlobalEntry
		err   error
	)
	switch kind.Storage {
	case blocktype.GlobalSingleton:
		entry, err = s.resolver.EditSingleton(ctx, userID, kind.Name, data)
	case blocktype.GlobalList:
		entry, err = s.resolver.ReplaceSocial(ctx, userID, accounts)
	default:
		return nil, ErrNotGlobalType
	}
	if err != nil {
		return nil, err
	}
	ev := queue.NewEvent(queue.GlobalUpdated, userID)
	ev.BlockType = kind.Name
	s.notify.emit(ctx, ev)
	return entry, nil
}

// Delete removes a block from a page.  A backing global entry is kept so
// other pages and later inserts can still use it.
func (s *Blocks) Delete(ctx context.Context, kind blocktype.Kind, userID uint64, pageID, blockID primitive.ObjectID) error {
	set, pi, err := loadPage(ctx, s.pages, userID, pageID)
	if err != nil {
		return err
	}
	page := &set.Pages[pi]
	bi := page.FindBlock(blockID)
	if bi < 0 {
		return ErrBlockNotFound
	}
	block := page.ContentBlocks[bi]
	if block.BlockType != kind.Name {
		return ErrBlockTypeMismatch
	}
	page.ContentBlocks = append(page.ContentBlocks[:bi], page.ContentBlocks[bi+1:]...)
	if err := s.pages.Save(ctx, set); err != nil {
		return storeErr(err)
	}
	s.notify.emit(ctx, blockEvent(queue.BlockDeleted, userID, pageID, block))
	return nil
}

// OrderItem assigns a new order to one block.
type OrderItem struct {
	ID         primitive.ObjectID `json:"_id"`
	BlockOrder int                `json:"blockOrder"`
}

// Reorder applies new orders to a page's blocks in a single write.  The
// list must have one item per stored block, and the resulting orders must
// stay unique.
func (s *Blocks) Reorder(ctx context.Context, userID uint64, pageID primitive.ObjectID, items []OrderItem) ([]model.ContentBlock, error) {
	set, pi, err := loadPage(ctx, s.pages, userID, pageID)
	if err != nil {
		return nil, err
	}
	page := &set.Pages[pi]
	if len(items) != len(page.ContentBlocks) {
		return nil, ErrCountMismatch
	}
	orders := make(map[primitive.ObjectID]int, len(items))
	for _, it := range items {
		orders[it.ID] = it.BlockOrder
	}
	used := make(map[int]bool, len(page.ContentBlocks))
	for i := range page.ContentBlocks {
		b := &page.ContentBlocks[i]
		if o, ok := orders[b.ID]; ok {
			b.BlockOrder = o
		}
		if used[b.BlockOrder] {
			return nil, ErrDuplicateOrder
		}
		used[b.BlockOrder] = true
	}
	if err := s.pages.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	ev := queue.NewEvent(queue.BlocksReordered, userID)
	ev.PageID = pageID.Hex()
	s.notify.emit(ctx, ev)
	return page.ContentBlocks, nil
}

// InsertGlobalInput places an existing global entry on a page.
type InsertGlobalInput struct {
	UserID     uint64
	PageID     primitive.ObjectID
	BlockType  string
	BlockOrder int
	EntryID    primitive.ObjectID
}

// InsertGlobal places a reference to an existing singleton global entry on
// another page, subject to the usual placement rules.
func (s *Blocks) InsertGlobal(ctx context.Context, in InsertGlobalInput) (*model.ContentBlock, error) {
	kind, ok := blocktype.Lookup(in.BlockType)
	if !ok || kind.Storage != blocktype.GlobalSingleton {
		return nil, ErrNotGlobalType
	}
	user, err := loadUser(ctx, s.placement.Users, in.UserID)
	if err != nil {
		return nil, err
	}
	set, pi, err := loadPage(ctx, s.pages, in.UserID, in.PageID)
	if err != nil {
		return nil, err
	}
	page := &set.Pages[pi]
	if _, err := s.placement.Validate(ctx, user, page, kind.Name, in.BlockOrder); err != nil {
		return nil, err
	}
	entry, err := s.globals.FindEntry(ctx, in.UserID, in.EntryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGlobalNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.BlockType != kind.Name {
		return nil, ErrBlockTypeMismatch
	}

	block := model.ContentBlock{
		ID:         primitive.NewObjectID(),
		BlockType:  kind.Name,
		BlockOrder: in.BlockOrder,
		Data:       model.GlobalRef(entry.ID),
	}
	page.ContentBlocks = append(page.ContentBlocks, block)
	if err := s.pages.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	s.ensure(ctx, in.UserID, block, *entry)
	s.notify.emit(ctx, blockEvent(queue.BlockCreated, in.UserID, in.PageID, block))
	return &block, nil
}

// UpsertSocial merges accounts into the user's social entry without placing
// anything on a page.
func (s *Blocks) UpsertSocial(ctx context.Context, userID uint64, accounts []model.SocialAccount) (*model.GlobalEntry, error) {
	user, err := loadUser(ctx, s.placement.Users, userID)
	if err != nil {
		return nil, err
	}
	md, err := s.placement.Metadata.GetByType(ctx, blocktype.Social)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownBlockType
	}
	if err != nil {
		return nil, err
	}
	if md.Pro && !user.IsPro {
		return nil, ErrProRequired
	}
	att, err := s.resolver.AttachSocial(ctx, userID, accounts)
	if err != nil {
		return nil, err
	}
	ev := queue.NewEvent(queue.GlobalUpdated, userID)
	ev.BlockType = blocktype.Social
	s.notify.emit(ctx, ev)
	return &att.Entry, nil
}

// LinkSocial shows the named platforms from the user's social entry on a
// page.  An existing social block on the page has its references replaced;
// otherwise a new block is placed at blockOrder.
func (s *Blocks) LinkSocial(ctx context.Context, userID uint64, pageID primitive.ObjectID, blockOrder int, platforms []string) (*model.ContentBlock, error) {
	if len(platforms) == 0 {
		return nil, Invalid("at least one platform is required")
	}
	entry, err := s.globals.FindByType(ctx, userID, blocktype.Social)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGlobalNotFound
	}
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(platforms))
	for _, p := range platforms {
		j := entry.FindPlatform(p)
		if j < 0 {
			return nil, ErrGlobalNotFound
		}
		if !contains(ids, entry.Accounts[j].ID) {
			ids = append(ids, entry.Accounts[j].ID)
		}
	}

	set, pi, err := loadPage(ctx, s.pages, userID, pageID)
	if err != nil {
		return nil, err
	}
	page := &set.Pages[pi]
	var block *model.ContentBlock
	for i := range page.ContentBlocks {
		if page.ContentBlocks[i].BlockType == blocktype.Social {
			block = &page.ContentBlocks[i]
			break
		}
	}
	if block != nil {
		block.Data = model.GlobalRefs(ids)
	} else {
		user, err := loadUser(ctx, s.placement.Users, userID)
		if err != nil {
			return nil, err
		}
		if _, err := s.placement.Validate(ctx, user, page, blocktype.Social, blockOrder); err != nil {
			return nil, err
		}
		page.ContentBlocks = append(page.ContentBlocks, model.ContentBlock{
			ID:         primitive.NewObjectID(),
			BlockType:  blocktype.Social,
			BlockOrder: blockOrder,
			Data:       model.GlobalRefs(ids),
		})
		block = &page.ContentBlocks[len(page.ContentBlocks)-1]
	}
	if err := s.pages.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	out := *block
	s.ensure(ctx, userID, out, *entry)
	s.notify.emit(ctx, blockEvent(queue.SocialLinked, userID, pageID, out))
	return &out, nil
}

// ensure runs after a page write that references globals.  The page is
// already committed, so a failure is logged rather than returned.
func (s *Blocks) ensure(ctx context.Context, userID uint64, block model.ContentBlock, snap model.GlobalEntry) {
	if err := s.resolver.Ensure(ctx, userID, block.Data, snap); err != nil {
		s.log.Error("global data check failed",
			zap.Uint64("user_id", userID),
			zap.String("block_type", block.BlockType),
			zap.Error(err))
	}
}
