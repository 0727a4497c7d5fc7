// Package query applies the listing filters and sort orders to a viewer's
// visible task set.
package query

import (
	"sort"
	"strings"
	"time"

	"taskshare/backend/internal/models"
)

type DueBucket string

const (
	DueAny     DueBucket = ""
	DueToday   DueBucket = "today"
	DueOverdue DueBucket = "overdue"
)

// Filters is zero-value friendly: empty fields match everything.
type Filters struct {
	Status   models.Status
	Priority models.Priority
	Search   string
	Due      DueBucket
}

type Sort string

const (
	SortCreatedDesc  Sort = "created_desc"
	SortCreatedAsc   Sort = "created_asc"
	SortDueAsc       Sort = "due_asc"
	SortPriorityDesc Sort = "priority_desc"
)

func (s Sort) Valid() bool {
	switch s {
	case SortCreatedDesc, SortCreatedAsc, SortDueAsc, SortPriorityDesc:
		return true
	}
	return false
}

// Apply filters, sorts and paginates tasks. A limit of 0 means no limit.
// The input slice is not modified.
func Apply(tasks []models.Task, f Filters, s Sort, offset, limit int) []models.Task {
	now := time.Now()

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if Matches(&t, f, now) {
			out = append(out, t)
		}
	}

	sortTasks(out, s)

	if offset >= len(out) {
		return []models.Task{}
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Matches reports whether a task passes every set filter.
func Matches(t *models.Task, f Filters, now time.Time) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		title := strings.ToLower(t.Title)
		desc := strings.ToLower(t.Description)
		if !strings.Contains(title, needle) && !strings.Contains(desc, needle) {
			return false
		}
	}
	switch f.Due {
	case DueToday:
		if t.DueDate == nil {
			return false
		}
		y1, m1, d1 := t.DueDate.Local().Date()
		y2, m2, d2 := now.Date()
		if y1 != y2 || m1 != m2 || d1 != d2 {
			return false
		}
	case DueOverdue:
		// Completed tasks are never overdue.
		if t.DueDate == nil || !t.DueDate.Before(now) || t.Status == models.StatusCompleted {
			return false
		}
	}
	return true
}

func sortTasks(tasks []models.Task, s Sort) {
	switch s {
	case SortCreatedAsc:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		})
	case SortDueAsc:
		// Tasks without a due date sort last.
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueDate, tasks[j].DueDate
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		})
	case SortPriorityDesc:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority.Weight() > tasks[j].Priority.Weight()
		})
	default:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		})
	}
}
