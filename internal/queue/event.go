// Package queue defines the activity events emitted after page and block
// mutations, and the RabbitMQ publisher and consumer that carry them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// ActivityQueue is the durable queue activity events are routed to.
const ActivityQueue = "page.activity"

// Event types.
const (
	BlockCreated     = "block.created"
	BlockUpdated     = "block.updated"
	BlockDeleted     = "block.deleted"
	BlocksReordered  = "blocks.reordered"
	GlobalUpdated    = "global.updated"
	GlobalsDeleted   = "globals.deleted"
	PageCreated      = "page.created"
	PageUpdated      = "page.updated"
	PageDeleted      = "page.deleted"
	SocialLinked     = "social.linked"
	MetadataModified = "metadata.modified"
)

// Event is published whenever a user's pages or globals change.  It carries
// enough context for downstream consumers to log, notify or invalidate
// derived data without querying the document store.
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id"`
	PageID     string `json:"page_id,omitempty"`
	BlockID    string `json:"block_id,omitempty"`
	BlockType  string `json:"block_type,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh id and the current UTC time.
func NewEvent(typ string, userID uint64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
