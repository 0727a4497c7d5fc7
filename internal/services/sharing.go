package services

import (
	"context"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"taskshare/backend/internal/access"
	"taskshare/backend/internal/models"
	"taskshare/backend/internal/notify"
	"taskshare/backend/internal/store"
)

// UserDirectory resolves share targets. Only active users are eligible
// recipients; deactivated accounts silently fall out of the pool.
type UserDirectory interface {
	FindActiveByEmails(ctx context.Context, emails []string) ([]models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ShareResult reports a (possibly partial) share. Unknown lists the emails
// that did not resolve to an active user; they are a warning, not a failure.
type ShareResult struct {
	Task    *models.Task `json:"task"`
	Shared  []uuid.UUID  `json:"shared_with"`
	Unknown []string     `json:"unknown_recipients,omitempty"`
}

type SharingService struct {
	store    store.TaskStore
	users    UserDirectory
	notifier *notify.Notifier
	cache    ListCache
	now      func() time.Time
}

func NewSharingService(taskStore store.TaskStore, users UserDirectory, notifier *notify.Notifier) *SharingService {
	return &SharingService{
		store:    taskStore,
		users:    users,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *SharingService) WithListCache(cache ListCache) *SharingService {
	s.cache = cache
	return s
}

// Share grants view or edit to the users behind the given emails. Owner
// only. Valid targets are applied even when some emails are unknown; the
// grant is an upsert per user, so repeating a share is idempotent.
func (s *SharingService) Share(ctx context.Context, requesterID, taskID uuid.UUID, emails []string, permission models.Permission) (*ShareResult, error) {
	if !permission.Valid() {
		return nil, &ValidationError{Fields: []string{"permission: must be view or edit"}}
	}
	if len(emails) == 0 {
		return nil, &ValidationError{Fields: []string{"emails: at least one recipient is required"}}
	}

	task, err := s.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != requesterID {
		return nil, ErrPermissionDenied
	}

	normalized := make([]string, 0, len(emails))
	for _, email := range emails {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(email)))
	}

	users, err := s.users.FindActiveByEmails(ctx, normalized)
	if err != nil {
		return nil, err
	}

	found := make(map[string]models.User, len(users))
	for _, u := range users {
		found[strings.ToLower(u.Email)] = u
	}

	var unknown []string
	for _, email := range normalized {
		if _, ok := found[email]; !ok {
			unknown = append(unknown, email)
		}
	}

	result := &ShareResult{Unknown: unknown}
	now := s.now()
	for _, u := range users {
		if u.ID == task.OwnerID {
			// The owner already holds edit and never enters the share list.
			continue
		}
		upsertShare(task, u.ID, permission, now)
		result.Shared = append(result.Shared, u.ID)
	}

	if len(result.Shared) == 0 {
		if len(unknown) > 0 {
			return nil, &UnknownRecipientError{Emails: unknown}
		}
		// Every target was the owner; nothing to change.
		result.Task = task
		return result, nil
	}

	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}

	result.Task = task
	s.invalidate(ctx, task)
	s.notifier.Notify(notify.EventTaskShared, task, requesterID)
	return result, nil
}

// Unshare revokes a collaborator's grant. Owner only; removing an absent
// grant is a no-op, not an error.
func (s *SharingService) Unshare(ctx context.Context, requesterID, taskID, targetID uuid.UUID) (*models.Task, error) {
	task, err := s.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != requesterID {
		return nil, ErrPermissionDenied
	}

	snapshot := task.Clone()

	kept := task.Shares[:0]
	removed := false
	for _, e := range task.Shares {
		if e.UserID == targetID {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return task, nil
	}
	task.Shares = kept

	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}

	// The revoked user still gets this one last event so their client drops
	// the task from view.
	s.invalidate(ctx, snapshot)
	s.notifier.Notify(notify.EventTaskUpdated, snapshot, requesterID)
	return task, nil
}

func upsertShare(task *models.Task, userID uuid.UUID, permission models.Permission, now time.Time) {
	for i := range task.Shares {
		if task.Shares[i].UserID == userID {
			task.Shares[i].Permission = permission
			task.Shares[i].GrantedAt = now
			return
		}
	}
	task.Shares = append(task.Shares, models.ShareEntry{
		ID:         uuid.Must(uuid.NewV4()),
		TaskID:     task.ID,
		UserID:     userID,
		Permission: permission,
		GrantedAt:  now,
	})
}

func (s *SharingService) invalidate(ctx context.Context, task *models.Task) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, access.InterestedParties(task)...)
}
