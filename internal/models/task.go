package models

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Weight orders priorities for sorting: high > medium > low.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type Permission string

const (
	PermissionNone Permission = "none"
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// ShareEntry is one collaborator grant on a task. The owner never appears
// here; re-sharing the same user overwrites the grant in place.
type ShareEntry struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID     uuid.UUID  `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID     uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Permission Permission `json:"permission" gorm:"not null;default:'view'"`
	GrantedAt  time.Time  `json:"granted_at"`
}

type Task struct {
	ID          uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID     uuid.UUID    `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title       string       `json:"title" gorm:"not null"`
	Description string       `json:"description"`
	Status      Status       `json:"status" gorm:"not null;default:'pending'"`
	Priority    Priority     `json:"priority" gorm:"not null;default:'medium'"`
	DueDate     *time.Time   `json:"due_date"`
	Version     int64        `json:"version" gorm:"not null;default:1"`
	Shares      []ShareEntry `json:"shares" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Completed is derived from Status; it is not stored separately.
func (t *Task) Completed() bool {
	return t.Status == StatusCompleted
}

// MarshalJSON adds the derived completed flag so clients keep their boolean
// field without the model carrying a second source of truth.
func (t Task) MarshalJSON() ([]byte, error) {
	type alias Task
	return json.Marshal(struct {
		alias
		Completed bool `json:"completed"`
	}{alias(t), t.Status == StatusCompleted})
}

// ShareFor returns the grant for the given user, if any. First match wins;
// the store keeps entries unique per user.
func (t *Task) ShareFor(userID uuid.UUID) (ShareEntry, bool) {
	for _, e := range t.Shares {
		if e.UserID == userID {
			return e, true
		}
	}
	return ShareEntry{}, false
}

// Clone returns a deep copy, used for pre-mutation snapshots handed to the
// notifier.
func (t *Task) Clone() *Task {
	dup := *t
	dup.Shares = make([]ShareEntry, len(t.Shares))
	copy(dup.Shares, t.Shares)
	if t.DueDate != nil {
		due := *t.DueDate
		dup.DueDate = &due
	}
	return &dup
}
