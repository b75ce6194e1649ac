package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/queue"
	"github.com/iliyamo/page-builder/internal/repository"
)

// Pages manages page records and assembles pages for reading.
type Pages struct {
	pages    repository.PageRepository
	resolver *Resolver
	notify   notifier
}

// Create appends a new empty page to the user's pages.
func (s *Pages) Create(ctx context.Context, userID uint64, title string) (*model.Page, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, Invalid("title is required")
	}
	set, err := s.pages.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		set = &model.PageSet{UserID: userID, Pages: []model.Page{}}
	} else if err != nil {
		return nil, err
	}
	page := model.NewPage(title)
	set.Pages = append(set.Pages, page)
	if err := s.pages.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	ev := queue.NewEvent(queue.PageCreated, userID)
	ev.PageID = page.ID.Hex()
	s.notify.emit(ctx, ev)
	return &page, nil
}

// List returns the user's pages as stored, without resolving globals.
func (s *Pages) List(ctx context.Context, userID uint64) ([]model.Page, error) {
	set, err := s.pages.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.Page{}, nil
	}
	if err != nil {
		return nil, err
	}
	return set.Pages, nil
}

// Get returns the page with every global-backed block expanded to literal
// data.  Blocks are resolved one at a time in page order.
func (s *Pages) Get(ctx context.Context, userID uint64, pageID primitive.ObjectID) (*model.ComposedPage, error) {
	set, i, err := loadPage(ctx, s.pages, userID, pageID)
	if err != nil {
		return nil, err
	}
	return s.compose(ctx, userID, set.Pages[i]), nil
}

// GetPublic is Get restricted to visible pages.
func (s *Pages) GetPublic(ctx context.Context, userID uint64, pageID primitive.ObjectID) (*model.ComposedPage, error) {
	set, i, err := loadPage(ctx, s.pages, userID, pageID)
	if err != nil {
		return nil, err
	}
	if !set.Pages[i].Visibility {
		return nil, ErrPageNotFound
	}
	return s.compose(ctx, userID, set.Pages[i]), nil
}

func (s *Pages) compose(ctx context.Context, userID uint64, p model.Page) *model.ComposedPage {
	out := &model.ComposedPage{
		ID:            p.ID,
		Title:         p.Title,
		PageStyles:    p.PageStyles,
		Visibility:    p.Visibility,
		Thumbnail:     p.Thumbnail,
		ContentBlocks: make([]model.ComposedBlock, 0, len(p.ContentBlocks)),
	}
	for _, b := range p.ContentBlocks {
		out.ContentBlocks = append(out.ContentBlocks, model.ComposedBlock{
			ID:         b.ID,
			BlockType:  b.BlockType,
			BlockOrder: b.BlockOrder,
			Data:       s.resolver.Resolve(ctx, userID, b.Data),
		})
	}
	return out
}

// PageUpdate lists the editable page fields; nil fields are left as is.
type PageUpdate struct {
	Title      *string       `json:"title"`
	Visibility *bool         `json:"visibility"`
	Thumbnail  *string       `json:"thumbnail"`
	PageStyles model.Payload `json:"pageStyles"`
}

// Update changes page settings.
func (s *Pages) Update(ctx context.Context, userID uint64, pageID primitive.ObjectID, u PageUpdate) (*model.Page, error) {
	set, i, err := loadPage(ctx, s.pages, userID, pageID)
	if errors.Is(err, ErrPageNotFound) {
		return nil, ErrPageUpdateFailed
	}
	if err != nil {
		return nil, err
	}
	p := &set.Pages[i]
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		if t == "" {
			return nil, Invalid("title cannot be empty")
		}
		p.Title = t
	}
	if u.Visibility != nil {
		p.Visibility = *u.Visibility
	}
	if u.Thumbnail != nil {
		t := *u.Thumbnail
		p.Thumbnail = &t
	}
	if u.PageStyles != nil {
		p.PageStyles = model.ClonePayload(u.PageStyles)
	}
	if err := s.pages.Save(ctx, set); err != nil {
		return nil, storeErr(err)
	}
	ev := queue.NewEvent(queue.PageUpdated, userID)
	ev.PageID = pageID.Hex()
	s.notify.emit(ctx, ev)
	out := p.Clone()
	return &out, nil
}

// Delete removes a page and its blocks.  Global entries are kept.
func (s *Pages) Delete(ctx context.Context, userID uint64, pageID primitive.ObjectID) error {
	set, i, err := loadPage(ctx, s.pages, userID, pageID)
	if err != nil {
		return err
	}
	set.Pages = append(set.Pages[:i], set.Pages[i+1:]...)
	if err := s.pages.Save(ctx, set); err != nil {
		return storeErr(err)
	}
	ev := queue.NewEvent(queue.PageDeleted, userID)
	ev.PageID = pageID.Hex()
	s.notify.emit(ctx, ev)
	return nil
}
