package services

import (
	"context"
	"io"
	"time"

	"bulk-order-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunSaver persists finished runs. Satisfied by database.RunRepository.
type RunSaver interface {
	SaveResult(ctx context.Context, userID string, result *models.BulkOrderResult) (*models.BulkOrderRun, error)
}

// EventPublisher announces finished runs. Satisfied by kafka.Producer.
type EventPublisher interface {
	SendRunCompleted(ctx context.Context, event models.BulkOrderCompletedEvent) error
}

// BulkOrderService ties parsing and processing together and handles the
// after-run bookkeeping (run history, completion event). Persistence and
// eventing are optional; a nil RunSaver or EventPublisher is skipped.
type BulkOrderService struct {
	processor *BulkOrderProcessor
	validate  SKUValidator
	parseOpts ParseOptions
	runs      RunSaver
	events    EventPublisher
}

func NewBulkOrderService(processor *BulkOrderProcessor, validate SKUValidator, parseOpts ParseOptions, runs RunSaver, events EventPublisher) *BulkOrderService {
	return &BulkOrderService{
		processor: processor,
		validate:  validate,
		parseOpts: parseOpts,
		runs:      runs,
		events:    events,
	}
}

// ValidateUpload is the parse-only dry run, including the catalog-backed
// SKU check when one is configured.
func (s *BulkOrderService) ValidateUpload(ctx context.Context, r io.Reader) (*models.BulkOrderParseResult, error) {
	return ParseBulkOrderCSV(ctx, r, s.parseOpts, s.validate)
}

// ProcessUpload parses and processes one upload end to end. The per-row SKU
// check is skipped here: the availability check inside the processor covers
// unknown SKUs without a second catalog round trip per row.
func (s *BulkOrderService) ProcessUpload(ctx context.Context, r io.Reader, userID string, onProgress ProgressFunc) (*models.BulkOrderResult, error) {
	parsed, err := ParseBulkOrderCSV(ctx, r, s.parseOpts, nil)
	if err != nil {
		return nil, err
	}

	result, procErr := s.processor.Process(ctx, parsed.Rows, onProgress)

	// rejected rows count as failures in the aggregate
	result.ItemsFailed += len(parsed.Errors)
	if len(parsed.Errors) > 0 {
		result.Success = false
	}

	s.finishRun(userID, result)

	return result, procErr
}

// finishRun persists the run and publishes the completion event. Both are
// best-effort: a storage or broker outage never fails a finished run.
func (s *BulkOrderService) finishRun(userID string, result *models.BulkOrderResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runID := uuid.New().String()
	if s.runs != nil {
		run, err := s.runs.SaveResult(ctx, userID, result)
		if err != nil {
			zap.L().Error("failed to persist bulk order run", zap.Error(err))
		} else {
			runID = run.ID.String()
		}
	}

	if s.events != nil {
		event := models.BulkOrderCompletedEvent{
			RunID:          runID,
			UserID:         userID,
			Success:        result.Success,
			ItemsProcessed: result.ItemsProcessed,
			ItemsAdded:     result.ItemsAdded,
			ItemsFailed:    result.ItemsFailed,
			TotalValue:     result.TotalValue,
			CompletedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		_ = s.events.SendRunCompleted(ctx, event)
	}
}
