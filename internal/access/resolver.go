// Package access resolves what a user may do with a task. Resolution is a
// pure function of the task record and the requesting identity; every read,
// update and delete path consults it before touching the store.
package access

import (
	"github.com/gofrs/uuid"

	"taskshare/backend/internal/models"
)

type Decision struct {
	CanAccess  bool              `json:"can_access"`
	Permission models.Permission `json:"permission"`
}

// Resolve computes the caller's effective permission on a task. The owner
// always holds edit; collaborators hold whatever their grant says; everyone
// else is denied.
func Resolve(task *models.Task, userID uuid.UUID) Decision {
	if task.OwnerID == userID {
		return Decision{CanAccess: true, Permission: models.PermissionEdit}
	}

	if entry, ok := task.ShareFor(userID); ok {
		return Decision{CanAccess: true, Permission: entry.Permission}
	}

	return Decision{CanAccess: false, Permission: models.PermissionNone}
}

// CanEdit reports whether the caller may mutate the task's editable fields.
func CanEdit(task *models.Task, userID uuid.UUID) bool {
	d := Resolve(task, userID)
	return d.CanAccess && d.Permission == models.PermissionEdit
}

// InterestedParties returns the owner plus every collaborator: the audience
// for change notifications and the visibility set for listings.
func InterestedParties(task *models.Task) []uuid.UUID {
	parties := make([]uuid.UUID, 0, len(task.Shares)+1)
	parties = append(parties, task.OwnerID)
	for _, e := range task.Shares {
		if e.UserID == task.OwnerID {
			continue
		}
		parties = append(parties, e.UserID)
	}
	return parties
}

// IsInterested reports whether userID belongs to the task's audience.
func IsInterested(task *models.Task, userID uuid.UUID) bool {
	if task.OwnerID == userID {
		return true
	}
	_, ok := task.ShareFor(userID)
	return ok
}
