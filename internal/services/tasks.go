package services

import (
	"context"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"taskshare/backend/internal/access"
	"taskshare/backend/internal/models"
	"taskshare/backend/internal/notify"
	"taskshare/backend/internal/query"
	"taskshare/backend/internal/store"
)

// ListCache holds per-user visible task lists. Implementations must treat
// misses and backend failures alike: the service falls through to the store.
type ListCache interface {
	GetVisible(ctx context.Context, userID uuid.UUID) ([]models.Task, bool)
	SetVisible(ctx context.Context, userID uuid.UUID, tasks []models.Task)
	Invalidate(ctx context.Context, userIDs ...uuid.UUID)
}

// ReminderQueue schedules a due-date reminder. Nil-safe at the call sites so
// deployments without redis skip reminders.
type ReminderQueue interface {
	ScheduleReminder(taskID uuid.UUID, at time.Time) error
}

type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.Status
	Priority    models.Priority
	DueDate     *time.Time
}

// UpdateTaskInput carries only the fields the caller wants to change.
// Version is the version the caller last read; a mismatch aborts with
// ErrConflict.
type UpdateTaskInput struct {
	Version      int64
	Title        *string
	Description  *string
	Status       *models.Status
	Priority     *models.Priority
	DueDate      *time.Time
	ClearDueDate bool
}

type TaskService struct {
	store     store.TaskStore
	notifier  *notify.Notifier
	cache     ListCache
	reminders ReminderQueue
	now       func() time.Time
}

func NewTaskService(taskStore store.TaskStore, notifier *notify.Notifier) *TaskService {
	return &TaskService{
		store:    taskStore,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithListCache enables cached visible-list reads with invalidation per
// interested party on every mutation.
func (s *TaskService) WithListCache(cache ListCache) *TaskService {
	s.cache = cache
	return s
}

// WithReminders enables due-date reminder scheduling.
func (s *TaskService) WithReminders(queue ReminderQueue) *TaskService {
	s.reminders = queue
	return s
}

func (s *TaskService) Create(ctx context.Context, ownerID uuid.UUID, in CreateTaskInput) (*models.Task, error) {
	if in.Status == "" {
		in.Status = models.StatusPending
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}

	var fields []string
	validateTitle(in.Title, &fields)
	validateDescription(in.Description, &fields)
	validateStatus(in.Status, &fields)
	validatePriority(in.Priority, &fields)
	validateDueDate(in.DueDate, s.now(), &fields)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	task := &models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		Version:     1,
	}

	if err := s.store.Insert(ctx, task); err != nil {
		return nil, err
	}

	s.invalidateFor(ctx, task)
	s.scheduleReminder(task)
	s.notifier.Notify(notify.EventTaskCreated, task, ownerID)
	return task, nil
}

// Get returns the task and the requester's effective permission.
func (s *TaskService) Get(ctx context.Context, requesterID, taskID uuid.UUID) (*models.Task, models.Permission, error) {
	task, err := s.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, models.PermissionNone, err
	}

	d := access.Resolve(task, requesterID)
	if !d.CanAccess {
		return nil, models.PermissionNone, ErrPermissionDenied
	}
	return task, d.Permission, nil
}

func (s *TaskService) Update(ctx context.Context, requesterID, taskID uuid.UUID, in UpdateTaskInput) (*models.Task, error) {
	task, err := s.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !access.CanEdit(task, requesterID) {
		return nil, ErrPermissionDenied
	}

	// Title is owner-only; collaborators with edit touch the work fields,
	// never the task's identity or its share list.
	if in.Title != nil && requesterID != task.OwnerID {
		return nil, ErrPermissionDenied
	}

	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.ClearDueDate {
		task.DueDate = nil
	} else if in.DueDate != nil {
		task.DueDate = in.DueDate
	}

	var fields []string
	validateTitle(task.Title, &fields)
	validateDescription(task.Description, &fields)
	validateStatus(task.Status, &fields)
	validatePriority(task.Priority, &fields)
	if in.DueDate != nil {
		validateDueDate(task.DueDate, s.now(), &fields)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	task.Version = in.Version
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}

	s.invalidateFor(ctx, task)
	if in.DueDate != nil {
		s.scheduleReminder(task)
	}
	s.notifier.Notify(notify.EventTaskUpdated, task, requesterID)
	return task, nil
}

// Delete removes the task for the owner and every collaborator. Owner only.
func (s *TaskService) Delete(ctx context.Context, requesterID, taskID uuid.UUID) error {
	task, err := s.store.FindByID(ctx, taskID)
	if err != nil {
		return err
	}

	if task.OwnerID != requesterID {
		return ErrPermissionDenied
	}

	snapshot := task.Clone()
	if err := s.store.Delete(ctx, taskID); err != nil {
		return err
	}

	s.invalidateFor(ctx, snapshot)
	s.notifier.Notify(notify.EventTaskDeleted, snapshot, requesterID)
	return nil
}

// List returns the requester's visible tasks with filters, sort and
// pagination applied.
func (s *TaskService) List(ctx context.Context, requesterID uuid.UUID, f query.Filters, sort query.Sort, offset, limit int) ([]models.Task, error) {
	if s.cache != nil {
		if tasks, ok := s.cache.GetVisible(ctx, requesterID); ok {
			return query.Apply(tasks, f, sort, offset, limit), nil
		}
	}

	tasks, err := s.store.FindVisibleTo(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetVisible(ctx, requesterID, tasks)
	}
	return query.Apply(tasks, f, sort, offset, limit), nil
}

func (s *TaskService) invalidateFor(ctx context.Context, task *models.Task) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, access.InterestedParties(task)...)
}

func (s *TaskService) scheduleReminder(task *models.Task) {
	if s.reminders == nil || task.DueDate == nil || task.Status == models.StatusCompleted {
		return
	}
	// Best-effort like notifications; a lost reminder is not an error.
	_ = s.reminders.ScheduleReminder(task.ID, *task.DueDate)
}
