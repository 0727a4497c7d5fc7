package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid"

	"taskshare/backend/internal/models"
)

const defaultListTTL = 5 * time.Minute

// TaskListCache stores each user's full visible task set under one key.
// Mutations invalidate every interested party's key, so the next poll
// repopulates from the store.
type TaskListCache struct {
	redis   *RedisCache
	breaker *breaker
	ttl     time.Duration
}

func NewTaskListCache(redisCache *RedisCache, ttl time.Duration) *TaskListCache {
	if ttl <= 0 {
		ttl = defaultListTTL
	}
	return &TaskListCache{
		redis:   redisCache,
		breaker: newBreaker(5, 30*time.Second),
		ttl:     ttl,
	}
}

func visibleKey(userID uuid.UUID) string {
	return fmt.Sprintf("tasks:visible:%s", userID)
}

func (c *TaskListCache) GetVisible(ctx context.Context, userID uuid.UUID) ([]models.Task, bool) {
	var tasks []models.Task
	err := c.breaker.execute(func() error {
		return c.redis.Get(ctx, visibleKey(userID), &tasks)
	})
	if err != nil {
		return nil, false
	}
	return tasks, true
}

func (c *TaskListCache) SetVisible(ctx context.Context, userID uuid.UUID, tasks []models.Task) {
	err := c.breaker.execute(func() error {
		return c.redis.Set(ctx, visibleKey(userID), tasks, c.ttl)
	})
	if err != nil && err != errBreakerOpen {
		log.Printf("cache: failed to store visible list for %s: %v", userID, err)
	}
}

func (c *TaskListCache) Invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = visibleKey(id)
	}
	err := c.breaker.execute(func() error {
		return c.redis.Delete(ctx, keys...)
	})
	if err != nil && err != errBreakerOpen {
		log.Printf("cache: failed to invalidate %d keys: %v", len(keys), err)
	}
}
