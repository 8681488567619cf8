// Package queue carries automation jobs from the workflow service to the
// automation agent.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"leadflow/internal/models"
)

var ErrEmpty = errors.New("automation queue is empty")

type AutomationQueue interface {
	Enqueue(ctx context.Context, job models.AutomationJob) error
	// Dequeue returns the oldest job or ErrEmpty.
	Dequeue(ctx context.Context) (models.AutomationJob, error)
	Len(ctx context.Context) (int64, error)
}

// RedisQueue stores jobs as JSON in a Redis list (LPUSH / RPOP, FIFO).
// Each job id is also kept in a set so a redelivered event does not enqueue twice.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

var _ AutomationQueue = (*RedisQueue)(nil)

func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	if key == "" {
		key = "leadflow:automation"
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) seenKey() string { return q.key + ":seen" }

func (q *RedisQueue) Enqueue(ctx context.Context, job models.AutomationJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}

	added, err := q.client.SAdd(ctx, q.seenKey(), job.ID).Result()
	if err != nil {
		return fmt.Errorf("queue: dedupe job %s: %w", job.ID, err)
	}
	if added == 0 {
		return nil
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		// позволим повторную попытку
		q.client.SRem(ctx, q.seenKey(), job.ID)
		return fmt.Errorf("queue: push job %s: %w", job.ID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (models.AutomationJob, error) {
	raw, err := q.client.RPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.AutomationJob{}, ErrEmpty
	}
	if err != nil {
		return models.AutomationJob{}, fmt.Errorf("queue: pop: %w", err)
	}
	var job models.AutomationJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return models.AutomationJob{}, fmt.Errorf("queue: decode job: %w", err)
	}
	return job, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// MemoryQueue is the in-process AutomationQueue used with `storage: memory`.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []models.AutomationJob
	seen map[string]struct{}
}

var _ AutomationQueue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{seen: make(map[string]struct{})}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job models.AutomationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.seen[job.ID]; dup {
		return nil
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	q.seen[job.ID] = struct{}{}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context) (models.AutomationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return models.AutomationJob{}, ErrEmpty
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}
