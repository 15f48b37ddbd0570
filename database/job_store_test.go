package database

import (
	"context"
	"testing"
	"time"

	"bulk-order-service/models"

	"github.com/stretchr/testify/assert"
)

func TestMemoryJobStoreRoundTrip(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	job := &models.BulkOrderJob{
		ID:       "job-1",
		UserID:   "user-9",
		Status:   models.JobStatusPending,
		FilePath: "/tmp/job-1.csv",
	}
	assert.NoError(t, store.Set(ctx, job, time.Hour))

	got, err := store.Get(ctx, "job-1")
	assert.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, "user-9", got.UserID)

	// the returned job is a copy, mutating it must not touch the store
	got.Status = models.JobStatusFailed
	again, err := store.Get(ctx, "job-1")
	assert.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, again.Status)
}

func TestMemoryJobStoreUnknownID(t *testing.T) {
	store := NewMemoryJobStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryJobStoreExpiry(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	assert.NoError(t, store.Set(ctx, &models.BulkOrderJob{ID: "short"}, time.Minute))
	assert.NoError(t, store.Set(ctx, &models.BulkOrderJob{ID: "long"}, time.Hour))
	assert.NoError(t, store.Set(ctx, &models.BulkOrderJob{ID: "forever"}, 0))

	current = current.Add(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrJobNotFound, "expired entries are invisible before the sweep runs")

	assert.NoError(t, store.SweepExpired(ctx))
	assert.Len(t, store.entries, 2, "sweep removes only expired entries")

	_, err = store.Get(ctx, "long")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err, "zero TTL means no expiry")
}
