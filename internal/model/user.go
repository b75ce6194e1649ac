package model

import "time"

// User represents an account record as stored in the `users` table.
// Page and global documents reference users by ID.  Only the fields the
// page builder needs are loaded; profile data stays in the account
// service that owns the table.
//
// Fields:
//  ID        – primary key identifier of the user.
//  Email     – unique email address, also carried in the access token.
//  IsPro     – whether the user may place pro-only block types.
//  Role      – account role; RoleAdmin may manage the block registry.
//  IsActive  – whether the account is active.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type User struct {
	ID        uint64    // users.id
	Email     string    // users.email
	IsPro     bool      // users.is_pro
	Role      string    // users.role
	IsActive  bool      // users.is_active
	CreatedAt time.Time // users.created_at
	UpdatedAt time.Time // users.updated_at
}

// Account roles stored in users.role.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)
