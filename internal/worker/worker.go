// Package worker drains the redis-backed reminder queue. Reminders are
// scheduled when a task gains a due date and fire as push events through
// the notifier; like all notifications they are best-effort.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ReminderQueueKey is a sorted set scored by ProcessAt. Reminders are
	// future-dated by construction, so a plain list would make the worker
	// pop and requeue the same jobs until their due time.
	ReminderQueueKey = "task_reminders"
	deadQueueKey     = "task_reminders_dead"

	defaultMaxTries     = 3
	defaultPollInterval = time.Second
)

type Job struct {
	ID        string    `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	Attempts  int       `json:"attempts"`
	MaxTries  int       `json:"max_tries"`
	CreatedAt time.Time `json:"created_at"`
	ProcessAt time.Time `json:"process_at"`
}

// Handler fires one due reminder. A non-nil error triggers a retry with
// backoff until MaxTries, then the job lands in the dead queue.
type Handler func(ctx context.Context, job *Job) error

// Queue schedules reminder jobs. It implements services.ReminderQueue.
type Queue struct {
	client   *redis.Client
	maxTries int
}

func NewQueue(client *redis.Client, maxTries int) *Queue {
	if maxTries <= 0 {
		maxTries = defaultMaxTries
	}
	return &Queue{client: client, maxTries: maxTries}
}

func (q *Queue) ScheduleReminder(taskID uuid.UUID, at time.Time) error {
	job := &Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		TaskID:    taskID,
		MaxTries:  q.maxTries,
		CreatedAt: time.Now(),
		ProcessAt: at,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder job: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return q.client.ZAdd(ctx, ReminderQueueKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: data,
	}).Err()
}

func (q *Queue) Size() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return q.client.ZCard(ctx, ReminderQueueKey).Result()
}

type Worker struct {
	client   *redis.Client
	handler  Handler
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewWorker(client *redis.Client, handler Handler) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		client:   client,
		handler:  handler,
		interval: defaultPollInterval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// WithPollInterval sets how long the worker sleeps when no reminder is due.
func (w *Worker) WithPollInterval(d time.Duration) *Worker {
	if d > 0 {
		w.interval = d
	}
	return w
}

func (w *Worker) Start(concurrency int) {
	log.Printf("Starting reminder worker with %d goroutines", concurrency)
	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

func (w *Worker) Stop() {
	log.Println("Stopping reminder worker...")
	w.cancel()
	w.wg.Wait()
	log.Println("Reminder worker stopped")
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		processed, err := w.processNext()
		if err != nil {
			log.Printf("Error processing reminder: %v", err)
			w.sleep(time.Second)
			continue
		}
		if !processed {
			w.sleep(w.interval)
		}
	}
}

// processNext claims and runs at most one due reminder. It reports whether
// a queue entry was claimed; not-yet-due jobs stay in the set untouched.
func (w *Worker) processNext() (bool, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	entries, err := w.client.ZRangeByScore(w.ctx, ReminderQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: 1,
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read reminder queue: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	raw := entries[0]
	removed, err := w.client.ZRem(w.ctx, ReminderQueueKey, raw).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	if removed == 0 {
		// Another worker claimed it first.
		return true, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return true, fmt.Errorf("failed to unmarshal reminder: %w", err)
	}
	return true, w.execute(&job)
}

func (w *Worker) execute(job *Job) error {
	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	err := w.handler(ctx, job)
	if err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			log.Printf("Reminder %s failed (attempt %d/%d), retrying: %v",
				job.ID, job.Attempts, job.MaxTries, err)
			job.ProcessAt = time.Now().Add(time.Duration(1<<job.Attempts) * time.Minute)
			return w.reschedule(job)
		}
		log.Printf("Reminder %s failed permanently after %d attempts: %v",
			job.ID, job.Attempts, err)
		return w.moveToDeadQueue(job, err)
	}
	return nil
}

func (w *Worker) reschedule(job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder: %w", err)
	}
	return w.client.ZAdd(w.ctx, ReminderQueueKey, redis.Z{
		Score:  float64(job.ProcessAt.Unix()),
		Member: data,
	}).Err()
}

func (w *Worker) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-w.ctx.Done():
	case <-timer.C:
	}
}

func (w *Worker) moveToDeadQueue(job *Job, jobErr error) error {
	dead := map[string]interface{}{
		"job":       job,
		"error":     jobErr.Error(),
		"failed_at": time.Now(),
	}
	data, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("failed to marshal dead reminder: %w", err)
	}
	return w.client.RPush(w.ctx, deadQueueKey, data).Err()
}
