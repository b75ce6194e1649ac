// Package repository defines the storage contracts for pages, globals,
// block metadata and users, with MongoDB, MySQL and in-memory
// implementations.
//
// The sentinel values below let higher layers distinguish failure
// scenarios without inspecting driver errors.  ErrNotFound means the
// requested document or sub-document does not exist.  ErrVersionConflict
// means another writer modified the document since it was read and
// nothing was written.  ErrDuplicate signals a unique key violation.
package repository

import "errors"

var ErrNotFound = errors.New("not found")

var ErrVersionConflict = errors.New("version conflict")

var ErrDuplicate = errors.New("duplicate key")
