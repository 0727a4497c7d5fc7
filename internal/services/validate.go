package services

import (
	"strings"
	"time"

	"taskshare/backend/internal/models"
)

const (
	titleMinLen       = 3
	titleMaxLen       = 200
	descriptionMaxLen = 1000
)

func validateTitle(title string, fields *[]string) {
	trimmed := strings.TrimSpace(title)
	if len(trimmed) < titleMinLen || len(trimmed) > titleMaxLen {
		*fields = append(*fields, "title: must be between 3 and 200 characters")
	}
}

func validateDescription(description string, fields *[]string) {
	if len(description) > descriptionMaxLen {
		*fields = append(*fields, "description: cannot exceed 1000 characters")
	}
}

// Due dates must not be in the past at create/update time. This is a
// validation-time check only; tasks naturally become overdue afterwards.
func validateDueDate(due *time.Time, now time.Time, fields *[]string) {
	if due != nil && due.Before(now) {
		*fields = append(*fields, "due_date: cannot be in the past")
	}
}

func validateStatus(status models.Status, fields *[]string) {
	if !status.Valid() {
		*fields = append(*fields, "status: must be one of pending, in_progress, completed")
	}
}

func validatePriority(priority models.Priority, fields *[]string) {
	if !priority.Valid() {
		*fields = append(*fields, "priority: must be one of low, medium, high")
	}
}
