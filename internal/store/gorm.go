package store

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"taskshare/backend/internal/models"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return storageErr("insert", err)
	}
	return nil
}

func (s *GormStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Preload("Shares").First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("find", err)
	}
	return &task, nil
}

func (s *GormStore) FindVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Task{}).
		Distinct("tasks.id").
		Joins("LEFT JOIN share_entries ON share_entries.task_id = tasks.id").
		Where("tasks.owner_id = ? OR share_entries.user_id = ?", userID, userID).
		Pluck("tasks.id", &ids).Error
	if err != nil {
		return nil, storageErr("list", err)
	}
	if len(ids) == 0 {
		return []models.Task{}, nil
	}

	var tasks []models.Task
	err = s.db.WithContext(ctx).Preload("Shares").
		Where("id IN ?", ids).
		Find(&tasks).Error
	if err != nil {
		return nil, storageErr("list", err)
	}
	return tasks, nil
}

func (s *GormStore) Update(ctx context.Context, task *models.Task) error {
	expected := task.Version

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND version = ?", task.ID, expected).
			Updates(map[string]interface{}{
				"title":       task.Title,
				"description": task.Description,
				"status":      task.Status,
				"priority":    task.Priority,
				"due_date":    task.DueDate,
				"version":     expected + 1,
				"updated_at":  time.Now(),
			})
		if res.Error != nil {
			return storageErr("update", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Count(&count).Error; err != nil {
				return storageErr("update", err)
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrVersionConflict
		}

		if err := tx.Where("task_id = ?", task.ID).Delete(&models.ShareEntry{}).Error; err != nil {
			return storageErr("update shares", err)
		}
		if len(task.Shares) > 0 {
			if err := tx.Create(&task.Shares).Error; err != nil {
				return storageErr("update shares", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	task.Version = expected + 1
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.ShareEntry{}).Error; err != nil {
			return storageErr("delete shares", err)
		}
		res := tx.Delete(&models.Task{}, "id = ?", id)
		if res.Error != nil {
			return storageErr("delete", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Migrate creates the task tables. User tables are handled by the identity
// service that owns them.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Task{}, &models.ShareEntry{})
}
