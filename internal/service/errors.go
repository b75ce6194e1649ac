package service

import (
	"errors"
	"net/http"
)

// Kind classifies domain errors for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindForbidden
	KindNotFound
	KindConflict
)

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain failure with a stable code and a client-facing message.
// Two errors match under errors.Is when their codes are equal, so callers
// can compare against the sentinels below even for errors built with a
// custom message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrUnknownBlockType  = &Error{KindInvalid, "unknown_block_type", "Content block metadata not found"}
	ErrBlockTypeMismatch = &Error{KindInvalid, "block_type_mismatch", "Block type not recognized"}
	ErrNotGlobalType     = &Error{KindInvalid, "not_global_type", "Block type is not a global block"}
	ErrCountMismatch     = &Error{KindInvalid, "count_mismatch", "Page data not matched"}
	ErrInvalidInput      = &Error{KindInvalid, "invalid_input", "Invalid request"}

	ErrProRequired = &Error{KindForbidden, "pro_required", "Not allowed, user must be pro"}
	ErrForbidden   = &Error{KindForbidden, "forbidden", "Not allowed to access another user's data"}
	ErrRoleDenied  = &Error{KindForbidden, "role_denied", "Not allowed for this account role"}

	ErrPageNotFound     = &Error{KindNotFound, "page_not_found", "Page not found, wrong pageId"}
	ErrPageUpdateFailed = &Error{KindNotFound, "page_update_failed", "Page updation failed"}
	ErrBlockNotFound    = &Error{KindNotFound, "block_not_found", "Block not found"}
	ErrGlobalNotFound   = &Error{KindNotFound, "global_not_found", "Data not found in globals"}
	ErrUserNotFound     = &Error{KindNotFound, "user_not_found", "User not found"}
	ErrMetadataNotFound = &Error{KindNotFound, "metadata_not_found", "Content block not found"}

	ErrDuplicateOrder   = &Error{KindConflict, "duplicate_order", "Block order cannot be duplicated"}
	ErrLimitExceeded    = &Error{KindConflict, "limit_exceeded", "Block limit exceeded"}
	ErrAlreadyInGlobals = &Error{KindConflict, "already_in_globals", "Block already exists in globals, try to insert"}
	ErrMetadataExists   = &Error{KindConflict, "metadata_exists", "Content block metadata already exists"}
	ErrWriteConflict    = &Error{KindConflict, "write_conflict", "Document was modified concurrently, retry the request"}
)

// Invalid builds an ErrInvalidInput with a specific message.
func Invalid(msg string) *Error {
	return &Error{Kind: KindInvalid, Code: ErrInvalidInput.Code, Message: msg}
}

// StatusOf returns the HTTP status for err; non-domain errors map to 500.
func StatusOf(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind.HTTPStatus()
	}
	return http.StatusInternalServerError
}
