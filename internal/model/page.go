package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// PageSet is the per-user document holding every page of that user.
// Version is bumped on each successful write and guards concurrent
// modifications of the whole document.
type PageSet struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID  uint64             `bson:"userId" json:"userId"`
	Version int64              `bson:"version" json:"-"`
	Pages   []Page             `bson:"pages" json:"pages"`
}

// Page is a single page with its ordered content blocks.
type Page struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	Title         string             `bson:"title" json:"title"`
	PageStyles    Payload            `bson:"pageStyles" json:"pageStyles"`
	Visibility    bool               `bson:"visibility" json:"visibility"`
	Thumbnail     *string            `bson:"thumbnail" json:"thumbnail"`
	ContentBlocks []ContentBlock     `bson:"contentBlocks" json:"contentBlocks"`
}

// ContentBlock is one placed block.  BlockOrder is unique within its page.
type ContentBlock struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	BlockType  string             `bson:"blockType" json:"blockType"`
	BlockOrder int                `bson:"blockOrder" json:"blockOrder"`
	Data       BlockData          `bson:"data" json:"data"`
}

// NewPage returns an empty visible page.
func NewPage(title string) Page {
	return Page{
		ID:            primitive.NewObjectID(),
		Title:         title,
		PageStyles:    Payload{},
		Visibility:    true,
		ContentBlocks: []ContentBlock{},
	}
}

// Find returns the index of the page with the given id, or -1.
func (s *PageSet) Find(id primitive.ObjectID) int {
	for i := range s.Pages {
		if s.Pages[i].ID == id {
			return i
		}
	}
	return -1
}

// FindBlock returns the index of the block with the given id, or -1.
func (p *Page) FindBlock(id primitive.ObjectID) int {
	for i := range p.ContentBlocks {
		if p.ContentBlocks[i].ID == id {
			return i
		}
	}
	return -1
}

// HasOrder reports whether any block already uses order.
func (p *Page) HasOrder(order int) bool {
	for _, b := range p.ContentBlocks {
		if b.BlockOrder == order {
			return true
		}
	}
	return false
}

// CountType counts blocks of the given type.
func (p *Page) CountType(blockType string) int {
	n := 0
	for _, b := range p.ContentBlocks {
		if b.BlockType == blockType {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of s.
func (s *PageSet) Clone() *PageSet {
	out := &PageSet{ID: s.ID, UserID: s.UserID, Version: s.Version}
	out.Pages = make([]Page, len(s.Pages))
	for i, p := range s.Pages {
		out.Pages[i] = p.Clone()
	}
	return out
}

// Clone returns a deep copy of p.
func (p Page) Clone() Page {
	out := p
	out.PageStyles = ClonePayload(p.PageStyles)
	if p.Thumbnail != nil {
		t := *p.Thumbnail
		out.Thumbnail = &t
	}
	out.ContentBlocks = make([]ContentBlock, len(p.ContentBlocks))
	for i, b := range p.ContentBlocks {
		b.Data = b.Data.Clone()
		out.ContentBlocks[i] = b
	}
	return out
}

// ComposedPage is a page whose blocks carry literal, renderable data.
type ComposedPage struct {
	ID            primitive.ObjectID `json:"_id"`
	Title         string             `json:"title"`
	PageStyles    Payload            `json:"pageStyles"`
	Visibility    bool               `json:"visibility"`
	Thumbnail     *string            `json:"thumbnail"`
	ContentBlocks []ComposedBlock    `json:"contentBlocks"`
}

// ComposedBlock carries either the inline payload, the resolved global
// payload or the resolved social accounts in Data.
type ComposedBlock struct {
	ID         primitive.ObjectID `json:"_id"`
	BlockType  string             `json:"blockType"`
	BlockOrder int                `json:"blockOrder"`
	Data       any                `json:"data"`
}
