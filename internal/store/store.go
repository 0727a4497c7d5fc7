// Package store persists task records. The service layer depends on the
// TaskStore interface and receives an implementation at construction time,
// so tests can run against the in-memory store and deployments pick GORM
// with postgres or sqlite.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"

	"taskshare/backend/internal/models"
)

var (
	ErrNotFound = errors.New("task not found")

	// ErrVersionConflict is returned when an update supplies a stale
	// version; the caller re-reads and retries or surfaces a 409.
	ErrVersionConflict = errors.New("task version conflict")
)

// StorageError wraps backend failures (connectivity, constraint violation)
// so callers can distinguish them from the domain taxonomy.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

type TaskStore interface {
	// Insert persists a new task. The ID must already be assigned.
	Insert(ctx context.Context, task *models.Task) error

	// FindByID returns the task with its share entries, or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)

	// FindVisibleTo returns every task the user owns or appears in the
	// share list of.
	FindVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.Task, error)

	// Update writes the task's mutable fields and replaces its share
	// entries, guarded by the version the caller read. On success the
	// task's Version is incremented in place. Returns ErrVersionConflict
	// on a stale version, ErrNotFound if the task is gone.
	Update(ctx context.Context, task *models.Task) error

	// Delete removes the task and its share entries. Idempotency is the
	// caller's concern: deleting a missing task returns ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error
}
