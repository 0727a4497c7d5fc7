package services

import (
	"errors"
	"fmt"
	"strings"

	"taskshare/backend/internal/store"
)

var (
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound mirrors the store sentinel so handlers only need one.
	ErrNotFound = store.ErrNotFound

	// ErrConflict surfaces a stale-version update.
	ErrConflict = store.ErrVersionConflict
)

// ValidationError lists the offending fields. Never retried; the caller
// fixes the request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, "; "))
}

// UnknownRecipientError is returned when none of the share targets resolve
// to an active user. When at least one resolves, sharing proceeds and the
// unresolved emails come back as a warning list instead.
type UnknownRecipientError struct {
	Emails []string
}

func (e *UnknownRecipientError) Error() string {
	return fmt.Sprintf("no active users found for: %s", strings.Join(e.Emails, ", "))
}
