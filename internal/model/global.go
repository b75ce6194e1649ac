package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// GlobalSet is the per-user document holding data shared by all pages.
type GlobalSet struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID  uint64             `bson:"userId" json:"userId"`
	Version int64              `bson:"version" json:"-"`
	Globals []GlobalEntry      `bson:"globals" json:"globals"`
}

// GlobalEntry holds the data of one global block type.  Singleton types
// (bio, logo, contactCard) use Data; the social type keeps one account per
// platform in Accounts.
type GlobalEntry struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	BlockType string             `bson:"blockType" json:"blockType"`
	Data      Payload            `bson:"data,omitempty" json:"data,omitempty"`
	Accounts  []SocialAccount    `bson:"accounts,omitempty" json:"accounts,omitempty"`
}

// SocialAccount is one platform link of the social entry.
type SocialAccount struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	AccountURL string             `bson:"accountUrl" json:"accountUrl"`
	Platform   string             `bson:"platform" json:"platform"`
	Icon       string             `bson:"icon" json:"icon"`
}

// FindByID returns the index of the entry with the given id, or -1.
func (s *GlobalSet) FindByID(id primitive.ObjectID) int {
	for i := range s.Globals {
		if s.Globals[i].ID == id {
			return i
		}
	}
	return -1
}

// FindByType returns the index of the first entry of blockType, or -1.
func (s *GlobalSet) FindByType(blockType string) int {
	for i := range s.Globals {
		if s.Globals[i].BlockType == blockType {
			return i
		}
	}
	return -1
}

// FindPlatform returns the index of the account for platform, or -1.
func (e *GlobalEntry) FindPlatform(platform string) int {
	for i := range e.Accounts {
		if e.Accounts[i].Platform == platform {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of s.
func (s *GlobalSet) Clone() *GlobalSet {
	out := &GlobalSet{ID: s.ID, UserID: s.UserID, Version: s.Version}
	out.Globals = make([]GlobalEntry, len(s.Globals))
	for i, e := range s.Globals {
		out.Globals[i] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of e.
func (e GlobalEntry) Clone() GlobalEntry {
	out := e
	out.Data = ClonePayload(e.Data)
	if e.Accounts != nil {
		out.Accounts = make([]SocialAccount, len(e.Accounts))
		copy(out.Accounts, e.Accounts)
	}
	return out
}
