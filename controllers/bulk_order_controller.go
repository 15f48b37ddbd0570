package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bulk-order-service/database"
	"bulk-order-service/middleware"
	"bulk-order-service/models"
	"bulk-order-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BulkOrderServiceAPI is the slice of the service layer the controller uses.
type BulkOrderServiceAPI interface {
	ValidateUpload(ctx context.Context, r io.Reader) (*models.BulkOrderParseResult, error)
	ProcessUpload(ctx context.Context, r io.Reader, userID string, onProgress services.ProgressFunc) (*models.BulkOrderResult, error)
}

// JobEnqueuer pushes a job ID onto the async processing queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, id string) error
}

// RunReader serves persisted run history.
type RunReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.BulkOrderRun, error)
	List(ctx context.Context, userID string, limit, offset int) ([]models.BulkOrderRun, int64, error)
}

// BulkOrderController handles bulk order upload, streaming and job status.
type BulkOrderController struct {
	svc        BulkOrderServiceAPI
	jobs       database.JobStore
	queue      JobEnqueuer
	runs       RunReader
	validator  *RequestValidator
	storageDir string
	timeout    time.Duration
}

func NewBulkOrderController(svc BulkOrderServiceAPI, jobs database.JobStore, queue JobEnqueuer, runs RunReader, validator *RequestValidator, storageDir string) *BulkOrderController {
	return &BulkOrderController{
		svc:        svc,
		jobs:       jobs,
		queue:      queue,
		runs:       runs,
		validator:  validator,
		storageDir: storageDir,
		timeout:    10 * time.Minute,
	}
}

// CreateBulkOrder accepts a CSV upload and processes it. The default mode
// streams newline-delimited progress events over the open response;
// ?async=true queues the file and returns a job ID instead.
func (h *BulkOrderController) CreateBulkOrder(c *gin.Context) {
	file, err := h.getAndValidateFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileHandle, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
		return
	}
	defer fileHandle.Close()

	if strings.ToLower(strings.TrimSpace(c.Query("async"))) == "true" {
		h.handleAsyncOrder(c, fileHandle)
		return
	}

	h.handleStreamingOrder(c, fileHandle)
}

// ValidateBulkOrder is the parse-only dry run.
func (h *BulkOrderController) ValidateBulkOrder(c *gin.Context) {
	file, err := h.getAndValidateFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileHandle, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
		return
	}
	defer fileHandle.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Minute)
	defer cancel()

	result, err := h.svc.ValidateUpload(ctx, fileHandle)
	if err != nil {
		zap.L().Warn("bulk order validation rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetJobStatus returns the status/result of an async job.
func (h *BulkOrderController) GetJobStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	job, err := h.jobs.Get(ctx, id)
	if errors.Is(err, database.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if err != nil {
		zap.L().Error("Failed to get job status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve job status"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListRuns returns persisted run history, newest first.
func (h *BulkOrderController) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history not configured"})
		return
	}

	page, perPage, err := h.validator.ParsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runs, total, err := h.runs.List(c.Request.Context(), userID(c), perPage, (page-1)*perPage)
	if err != nil {
		zap.L().Error("Failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": total, "page": page, "perPage": perPage})
}

// GetRun returns one persisted run.
func (h *BulkOrderController) GetRun(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history not configured"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := h.runs.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// Private helper methods

func (h *BulkOrderController) getAndValidateFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required")
	}

	if !h.validator.IsValidCSVFile(file) {
		return nil, fmt.Errorf("invalid file type. Only CSV files are allowed")
	}

	if err := h.validator.ValidateFileSize(file); err != nil {
		return nil, err
	}

	return file, nil
}

// handleStreamingOrder processes synchronously, writing NDJSON progress
// events as batches settle. Structural input errors are rejected with a 400
// before any event is written; later failures terminate the stream with an
// error event.
func (h *BulkOrderController) handleStreamingOrder(c *gin.Context, fileHandle multipart.File) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("X-Accel-Buffering", "no")

	streamer := services.NewProgressStreamer(c.Writer)
	started := false

	result, err := h.svc.ProcessUpload(ctx, fileHandle, userID(c), func(status models.BulkProcessingStatus) {
		started = true
		c.Writer.WriteHeaderNow()
		if err := streamer.SendProgress(status, fmt.Sprintf("Processed batch %d of %d", status.CurrentBatch, status.TotalBatches)); err != nil {
			zap.L().Warn("progress write failed", zap.Error(err))
		}
	})

	if err != nil && result == nil {
		// structural rejection, nothing processed yet
		if !started {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = streamer.SendError(err)
		return
	}

	if err != nil {
		zap.L().Warn("bulk order run ended early", zap.Error(err))
	}
	if sendErr := streamer.SendCompleted(result); sendErr != nil {
		zap.L().Warn("completed event write failed", zap.Error(sendErr))
	}
}

func (h *BulkOrderController) handleAsyncOrder(c *gin.Context, fileHandle multipart.File) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	jobID, err := h.enqueueJob(ctx, fileHandle, userID(c))
	if err != nil {
		zap.L().Error("Failed to enqueue bulk order job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue bulk order"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"message": "Bulk order queued for processing",
	})
}

func (h *BulkOrderController) enqueueJob(ctx context.Context, fileHandle multipart.File, userID string) (string, error) {
	data, err := io.ReadAll(fileHandle)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	if err := os.MkdirAll(h.storageDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	jobID := uuid.New().String()
	filePath := filepath.Join(h.storageDir, jobID+".csv")

	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to persist file: %w", err)
	}

	job := &models.BulkOrderJob{
		ID:        jobID,
		UserID:    userID,
		Status:    models.JobStatusPending,
		FilePath:  filePath,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.jobs.Set(ctx, job, 24*time.Hour); err != nil {
		os.Remove(filePath)
		return "", err
	}

	if err := h.queue.Enqueue(ctx, jobID); err != nil {
		os.Remove(filePath)
		return "", err
	}

	zap.L().Info("Bulk order job queued", zap.String("job_id", jobID))
	return jobID, nil
}

func userID(c *gin.Context) string {
	if v, ok := c.Get(middleware.UserIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
