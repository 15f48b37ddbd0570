package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"bulk-order-service/database"
	"bulk-order-service/models"

	"go.uber.org/zap"
)

// JobQueue hands out queued job IDs. Satisfied by database.RedisJobStore.
type JobQueue interface {
	Dequeue(ctx context.Context) (string, error)
}

const jobTTL = 24 * time.Hour

// StartBulkOrderWorker starts a background worker that consumes job IDs from
// the queue and processes the persisted CSV files. It returns immediately;
// the loop stops when ctx is cancelled.
func StartBulkOrderWorker(ctx context.Context, queue JobQueue, store database.JobStore, svc *BulkOrderService, storageDir string) {
	if queue == nil || store == nil || svc == nil {
		zap.L().Warn("bulk order worker not started: missing dependencies")
		return
	}

	if storageDir == "" {
		storageDir = "./data/bulk_orders"
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		zap.L().Error("failed to create bulk storage dir", zap.Error(err))
		return
	}

	go func() {
		zap.L().Info("bulk order worker started", zap.String("dir", storageDir))
		for {
			select {
			case <-ctx.Done():
				zap.L().Info("bulk order worker stopping")
				return
			default:
			}

			jobID, err := queue.Dequeue(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				zap.L().Error("job dequeue failed", zap.Error(err))
				time.Sleep(500 * time.Millisecond)
				continue
			}

			processJob(ctx, store, svc, jobID)
		}
	}()
}

func processJob(ctx context.Context, store database.JobStore, svc *BulkOrderService, jobID string) {
	job, err := store.Get(ctx, jobID)
	if err != nil {
		zap.L().Error("failed to read job metadata", zap.String("job", jobID), zap.Error(err))
		return
	}

	job.Status = models.JobStatusProcessing
	_ = store.Set(ctx, job, jobTTL)

	f, err := os.Open(filepath.Clean(job.FilePath))
	if err != nil {
		zap.L().Error("failed to open job file", zap.String("job", jobID), zap.String("path", job.FilePath), zap.Error(err))
		failJob(ctx, store, job, err)
		return
	}

	result, err := svc.ProcessUpload(ctx, f, job.UserID, nil)
	f.Close()
	_ = os.Remove(job.FilePath)

	if err != nil {
		zap.L().Error("bulk order processing failed", zap.String("job", jobID), zap.Error(err))
		failJob(ctx, store, job, err)
		return
	}

	job.Status = models.JobStatusDone
	job.Result = result
	job.FilePath = ""
	if err := store.Set(ctx, job, jobTTL); err != nil {
		zap.L().Error("failed to store job result", zap.String("job", jobID), zap.Error(err))
	}
}

func failJob(ctx context.Context, store database.JobStore, job *models.BulkOrderJob, cause error) {
	job.Status = models.JobStatusFailed
	job.Error = cause.Error()
	if err := store.Set(ctx, job, jobTTL); err != nil {
		zap.L().Error("failed to store job failure", zap.String("job", job.ID), zap.Error(err))
	}
}
