package cache

import (
	"errors"
	"sync"
	"time"
)

// breaker stops hammering redis while it is down. After maxFailures
// consecutive errors the cache is skipped entirely until the cooldown
// elapses, then probed again.
type breaker struct {
	mu          sync.Mutex
	failures    int
	openedAt    time.Time
	maxFailures int
	cooldown    time.Duration
}

var errBreakerOpen = errors.New("cache breaker open")

func newBreaker(maxFailures int, cooldown time.Duration) *breaker {
	return &breaker{maxFailures: maxFailures, cooldown: cooldown}
}

func (b *breaker) execute(fn func() error) error {
	b.mu.Lock()
	if b.failures >= b.maxFailures && time.Since(b.openedAt) < b.cooldown {
		b.mu.Unlock()
		return errBreakerOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		b.failures++
		if b.failures >= b.maxFailures {
			b.openedAt = time.Now()
		}
		return err
	}
	b.failures = 0
	return err
}
