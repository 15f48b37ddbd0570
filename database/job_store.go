package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bulk-order-service/models"

	"github.com/go-redis/redis/v8"
)

// JobStore tracks async upload jobs. It is passed explicitly to everything
// that needs it; there is deliberately no package-level instance. Production
// backs it with Redis so multiple replicas share state; tests use the
// in-memory implementation.
type JobStore interface {
	Get(ctx context.Context, id string) (*models.BulkOrderJob, error)
	Set(ctx context.Context, job *models.BulkOrderJob, ttl time.Duration) error
	SweepExpired(ctx context.Context) error
}

// ErrJobNotFound is returned when no job exists for an ID.
var ErrJobNotFound = fmt.Errorf("job not found")

const jobKeyPrefix = "bulk_order:job:"

// QueueKey is the Redis list async jobs are pushed onto.
const QueueKey = "bulk_order:queue"

// RedisJobStore stores job records as JSON values with a TTL.
type RedisJobStore struct {
	client *redis.Client
}

func NewRedisJobStore(client *redis.Client) *RedisJobStore {
	return &RedisJobStore{client: client}
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.BulkOrderJob, error) {
	val, err := s.client.Get(ctx, jobKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var job models.BulkOrderJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("parse job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisJobStore) Set(ctx context.Context, job *models.BulkOrderJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+job.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}

// SweepExpired is a no-op for Redis: key TTLs already expire entries.
func (s *RedisJobStore) SweepExpired(ctx context.Context) error {
	return nil
}

// Enqueue pushes a job ID onto the processing queue.
func (s *RedisJobStore) Enqueue(ctx context.Context, id string) error {
	if err := s.client.RPush(ctx, QueueKey, id).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", id, err)
	}
	return nil
}

// Dequeue blocks until a job ID is available or the context is cancelled.
func (s *RedisJobStore) Dequeue(ctx context.Context) (string, error) {
	res, err := s.client.BLPop(ctx, 0, QueueKey).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", fmt.Errorf("malformed BLPop reply")
	}
	return res[1], nil
}

// MemoryJobStore is the in-process JobStore used in tests and single-node
// development runs.
type MemoryJobStore struct {
	mu      sync.RWMutex
	entries map[string]memoryJobEntry
	now     func() time.Time
}

type memoryJobEntry struct {
	job       models.BulkOrderJob
	expiresAt time.Time
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		entries: make(map[string]memoryJobEntry),
		now:     time.Now,
	}
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*models.BulkOrderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok || (!entry.expiresAt.IsZero() && s.now().After(entry.expiresAt)) {
		return nil, ErrJobNotFound
	}
	job := entry.job
	return &job, nil
}

func (s *MemoryJobStore) Set(ctx context.Context, job *models.BulkOrderJob, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryJobEntry{job: *job}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[job.ID] = entry
	return nil
}

func (s *MemoryJobStore) SweepExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
	return nil
}

// StartSweeper periodically calls SweepExpired until ctx is cancelled.
func StartSweeper(ctx context.Context, store JobStore, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = store.SweepExpired(ctx)
			}
		}
	}()
}
