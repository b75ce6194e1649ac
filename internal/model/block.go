package model

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payload is the free-form data object of a block or global entry.
type Payload = bson.M

// Storage tags where a content block's data lives.
type Storage string

const (
	// StorageInline keeps the payload on the page itself.
	StorageInline Storage = "inline"
	// StorageGlobalRef points at one entry of the user's globals.
	StorageGlobalRef Storage = "globalRef"
	// StorageGlobalRefs points at social accounts inside the user's social entry.
	StorageGlobalRefs Storage = "globalRefs"
)

// BlockData is the tagged value stored in ContentBlock.Data.  Exactly one of
// Inline, Ref or Refs is meaningful, selected by Storage.
type BlockData struct {
	Storage Storage              `bson:"storage"`
	Inline  Payload              `bson:"inline,omitempty"`
	Ref     primitive.ObjectID   `bson:"ref,omitempty"`
	Refs    []primitive.ObjectID `bson:"refs,omitempty"`
}

// InlineData wraps a payload stored on the page.
func InlineData(p Payload) BlockData {
	if p == nil {
		p = Payload{}
	}
	return BlockData{Storage: StorageInline, Inline: p}
}

// GlobalRef wraps a reference to a global entry.
func GlobalRef(id primitive.ObjectID) BlockData {
	return BlockData{Storage: StorageGlobalRef, Ref: id}
}

// GlobalRefs wraps references to social accounts.
func GlobalRefs(ids []primitive.ObjectID) BlockData {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return BlockData{Storage: StorageGlobalRefs, Refs: out}
}

// IsGlobal reports whether the data must be resolved against globals.
func (d BlockData) IsGlobal() bool {
	return d.Storage == StorageGlobalRef || d.Storage == StorageGlobalRefs
}

type refItem struct {
	ID string `json:"id"`
}

// MarshalJSON renders the stored form: the payload for inline data, the
// entry id for a single reference and a list of {id} for social references.
func (d BlockData) MarshalJSON() ([]byte, error) {
	switch d.Storage {
	case StorageGlobalRef:
		return json.Marshal(d.Ref.Hex())
	case StorageGlobalRefs:
		items := make([]refItem, 0, len(d.Refs))
		for _, id := range d.Refs {
			items = append(items, refItem{ID: id.Hex()})
		}
		return json.Marshal(items)
	default:
		if d.Inline == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(d.Inline)
	}
}

// Clone returns a deep copy of d.
func (d BlockData) Clone() BlockData {
	out := BlockData{Storage: d.Storage, Ref: d.Ref}
	if d.Inline != nil {
		out.Inline = ClonePayload(d.Inline)
	}
	if d.Refs != nil {
		out.Refs = make([]primitive.ObjectID, len(d.Refs))
		copy(out.Refs, d.Refs)
	}
	return out
}

// ClonePayload deep-copies nested maps and slices of a payload.
func ClonePayload(p Payload) Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return ClonePayload(t)
	case map[string]any:
		return map[string]any(ClonePayload(t))
	case primitive.A:
		out := make(primitive.A, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
