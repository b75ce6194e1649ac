package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// Unlimited is the BlockLimit value that disables the per-page cap.
const Unlimited = -1

// BlockMetadata is one entry of the content block registry.  It is read on
// every block write to decide pro gating and the per-page occurrence cap.
//
// Fields:
//  BlockType  – unique block type name (e.g. "heading", "bio").
//  Global     – whether the block's data lives in the user's globals.
//  Pro        – whether only pro users may place the block.
//  BlockLimit – maximum occurrences per page, Unlimited for no cap.
type BlockMetadata struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	BlockType  string             `bson:"blockType" json:"blockType"`
	Title      string             `bson:"title" json:"title"`
	Subtitle   string             `bson:"subtitle" json:"subtitle"`
	Global     bool               `bson:"global" json:"global"`
	Pro        bool               `bson:"pro" json:"pro"`
	Icon       string             `bson:"icon" json:"icon"`
	Section    string             `bson:"section" json:"section"`
	BlockLimit int                `bson:"blockLimit" json:"blockLimit"`
}

// Limited reports whether the metadata caps occurrences per page.
func (m BlockMetadata) Limited() bool { return m.BlockLimit > 0 }
