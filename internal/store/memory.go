package store

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"

	"taskshare/backend/internal/models"
)

// MemoryStore is the test double for TaskStore. It honors the same version
// check as the GORM store so conflict paths can be exercised without a
// database.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*models.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (s *MemoryStore) Insert(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return task.Clone(), nil
}

func (s *MemoryStore) FindVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := []models.Task{}
	for _, task := range s.tasks {
		if task.OwnerID == userID {
			visible = append(visible, *task.Clone())
			continue
		}
		if _, ok := task.ShareFor(userID); ok {
			visible = append(visible, *task.Clone())
		}
	}
	return visible, nil
}

func (s *MemoryStore) Update(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[task.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != task.Version {
		return ErrVersionConflict
	}

	stored := task.Clone()
	stored.Version++
	s.tasks[task.ID] = stored
	task.Version = stored.Version
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}
