package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bulk-order-service/models"

	"go.uber.org/zap"
)

// CatalogAPI is the slice of the catalog service the processor needs.
type CatalogAPI interface {
	CheckAvailability(ctx context.Context, sku string) (*models.ProductAvailability, error)
}

// CartAPI submits line items to the cart service.
type CartAPI interface {
	AddItems(ctx context.Context, items []models.CartLine) error
}

// AlternativesAPI produces ranked substitutes for an unavailable SKU.
type AlternativesAPI interface {
	FindAlternatives(ctx context.Context, sku string, maxSuggestions int, minSimilarity float64) ([]models.AlternativeSuggestion, error)
}

// ProgressFunc receives a status snapshot after every settled batch.
type ProgressFunc func(status models.BulkProcessingStatus)

// ProcessorConfig bounds one run. Zero values fall back to defaults.
type ProcessorConfig struct {
	BatchSize         int
	MaxConcurrent     int
	EnableSuggestions bool
	MaxSuggestions    int
	MinSimilarity     float64
	Retry             RetryConfig
}

func (c ProcessorConfig) normalized() ProcessorConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = 3
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = 0.3
	}
	return c
}

// BulkOrderProcessor drives a parsed upload end to end: availability checks,
// alternative lookups for shortfalls, batched cart submission and progress
// reporting. One processor instance is safe for concurrent runs; the only
// state shared between runs is the per-dependency circuit breakers.
type BulkOrderProcessor struct {
	catalog        CatalogAPI
	cart           CartAPI
	alternatives   AlternativesAPI
	cfg            ProcessorConfig
	catalogBreaker *CircuitBreaker
	cartBreaker    *CircuitBreaker
}

func NewBulkOrderProcessor(catalog CatalogAPI, cart CartAPI, alternatives AlternativesAPI, cfg ProcessorConfig, catalogBreaker, cartBreaker *CircuitBreaker) *BulkOrderProcessor {
	if catalogBreaker == nil {
		catalogBreaker = NewCircuitBreaker("catalog", 5, 30*time.Second)
	}
	if cartBreaker == nil {
		cartBreaker = NewCircuitBreaker("cart", 5, 30*time.Second)
	}
	return &BulkOrderProcessor{
		catalog:        catalog,
		cart:           cart,
		alternatives:   alternatives,
		cfg:            cfg.normalized(),
		catalogBreaker: catalogBreaker,
		cartBreaker:    cartBreaker,
	}
}

// failedRow records one row that could not be added to the cart.
type failedRow struct {
	row         models.BulkOrderRow
	reason      string
	suggestion  RecoverySuggestion
	suggestions []models.AlternativeSuggestion
}

// batchOutcome is what one worker hands back to the orchestrator. Workers
// own it exclusively until it is sent; only the orchestrator merges.
type batchOutcome struct {
	index     int
	processed int
	added     int
	value     float64
	failed    []failedRow
}

// Process runs all rows through bounded-concurrency batches and returns the
// aggregate result. Row and batch failures are folded into the result, never
// returned as an error. Cancellation is observed between batches: in-flight
// batches settle, no new batch starts, and the partial aggregate is
// returned alongside ctx.Err().
func (p *BulkOrderProcessor) Process(ctx context.Context, rows []models.BulkOrderRow, onProgress ProgressFunc) (*models.BulkOrderResult, error) {
	start := time.Now()
	result := &models.BulkOrderResult{Suggestions: make(map[string][]models.AlternativeSuggestion)}

	if len(rows) == 0 {
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	batches := partition(rows, p.cfg.BatchSize)
	totalBatches := len(batches)
	totalItems := len(rows)

	status := models.BulkProcessingStatus{
		Phase:        models.PhaseProcessing,
		TotalItems:   totalItems,
		TotalBatches: totalBatches,
	}

	outcomes := make(chan batchOutcome)
	sem := make(chan struct{}, p.cfg.MaxConcurrent)

	// launched is written only by the dispatcher; the close of outcomes
	// orders it before the read below.
	var launched int
	go func() {
		var wg sync.WaitGroup
	dispatch:
		for i, batch := range batches {
			// cancellation is only observed between batches
			select {
			case <-ctx.Done():
				break dispatch
			case sem <- struct{}{}:
			}
			launched++
			wg.Add(1)
			go func(index int, batch []models.BulkOrderRow) {
				defer wg.Done()
				defer func() { <-sem }()
				// a started batch always settles, even under cancellation
				outcomes <- p.processBatch(context.WithoutCancel(ctx), index, batch)
			}(i, batch)
		}
		wg.Wait()
		close(outcomes)
	}()

	// Single-writer merge: batches settle in completion order, which may
	// differ from submission order. processedItems only ever grows.
	for outcome := range outcomes {
		result.ItemsProcessed += outcome.processed
		result.ItemsAdded += outcome.added
		result.TotalValue += outcome.value
		result.ItemsFailed += len(outcome.failed)
		for _, f := range outcome.failed {
			if len(f.suggestions) > 0 {
				result.Suggestions[f.row.SKU] = f.suggestions
			}
		}

		status.ProcessedItems += outcome.processed
		status.CurrentBatch = outcome.index + 1
		if onProgress != nil {
			onProgress(status)
		}
	}

	cancelled := launched < totalBatches
	if cancelled {
		zap.L().Warn("bulk order run cancelled",
			zap.Int("launched_batches", launched),
			zap.Int("total_batches", totalBatches))
	}

	result.Success = !cancelled && result.ItemsFailed == 0 && result.ItemsProcessed == totalItems
	result.ProcessingTime = time.Since(start)

	zap.L().Info("bulk order run finished",
		zap.Int("processed", result.ItemsProcessed),
		zap.Int("added", result.ItemsAdded),
		zap.Int("failed", result.ItemsFailed),
		zap.Float64("total_value", result.TotalValue),
		zap.Duration("took", result.ProcessingTime))

	if cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// processBatch settles one batch: concurrent availability checks, alternative
// lookups for shortfalls, then a single cart submission for everything
// available. The cart call is the atomic retry unit: if it fails after
// retries, every available row in the batch is marked failed.
func (p *BulkOrderProcessor) processBatch(ctx context.Context, index int, batch []models.BulkOrderRow) batchOutcome {
	outcome := batchOutcome{index: index, processed: len(batch)}

	checks := BatchRetryWithPartialSuccess(ctx, p.cfg.Retry, batch,
		func(ctx context.Context, row models.BulkOrderRow) (*models.ProductAvailability, error) {
			if !p.catalogBreaker.CanProceed() {
				return nil, fmt.Errorf("catalog circuit open")
			}
			avail, err := p.catalog.CheckAvailability(ctx, row.SKU)
			if err != nil {
				p.catalogBreaker.RecordFailure()
				return nil, err
			}
			p.catalogBreaker.RecordSuccess()
			return avail, nil
		}, nil)

	var toCart []models.CartLine
	var cartRows []models.BulkOrderRow
	var batchValue float64

	for _, check := range checks.Successful {
		avail := check.Result.Result
		row := check.Item
		if avail.Available && avail.Quantity >= row.Quantity {
			toCart = append(toCart, models.CartLine{SKU: row.SKU, Quantity: row.Quantity})
			cartRows = append(cartRows, row)
			batchValue += avail.Price * float64(row.Quantity)
			continue
		}
		// availability shortfall is a normal branch, not an error
		outcome.failed = append(outcome.failed, failedRow{
			row:         row,
			reason:      "not available in requested quantity",
			suggestions: p.lookupAlternatives(ctx, row.SKU),
		})
	}

	for _, check := range checks.Failed {
		outcome.failed = append(outcome.failed, failedRow{
			row:        check.Item,
			reason:     check.Result.Err.Error(),
			suggestion: SuggestRecovery(check.Result.Err, check.Result.Attempts),
		})
	}

	if len(toCart) > 0 {
		submitted := p.submitToCart(ctx, toCart)
		if submitted.Success {
			outcome.added = len(toCart)
			outcome.value = batchValue
		} else {
			for _, row := range cartRows {
				outcome.failed = append(outcome.failed, failedRow{
					row:        row,
					reason:     submitted.Err.Error(),
					suggestion: SuggestRecovery(submitted.Err, submitted.Attempts),
				})
			}
		}
	}

	return outcome
}

func (p *BulkOrderProcessor) submitToCart(ctx context.Context, lines []models.CartLine) RetryResult[struct{}] {
	if !p.cartBreaker.CanProceed() {
		return RetryResult[struct{}]{Err: fmt.Errorf("cart circuit open"), Attempts: 0}
	}
	res := ExecuteWithRetry(ctx, p.cfg.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.cart.AddItems(ctx, lines)
	})
	if res.Success {
		p.cartBreaker.RecordSuccess()
	} else {
		p.cartBreaker.RecordFailure()
	}
	return res
}

func (p *BulkOrderProcessor) lookupAlternatives(ctx context.Context, sku string) []models.AlternativeSuggestion {
	if !p.cfg.EnableSuggestions || p.alternatives == nil {
		return nil
	}
	if !p.catalogBreaker.CanProceed() {
		return nil
	}
	res := ExecuteWithRetry(ctx, p.cfg.Retry, func(ctx context.Context) ([]models.AlternativeSuggestion, error) {
		return p.alternatives.FindAlternatives(ctx, sku, p.cfg.MaxSuggestions, p.cfg.MinSimilarity)
	})
	if !res.Success {
		p.catalogBreaker.RecordFailure()
		zap.L().Warn("alternative lookup failed", zap.String("sku", sku), zap.Error(res.Err))
		return nil
	}
	p.catalogBreaker.RecordSuccess()
	return res.Result
}

// partition splits rows into ceil(len/size) slices of at most size rows.
func partition(rows []models.BulkOrderRow, size int) [][]models.BulkOrderRow {
	var batches [][]models.BulkOrderRow
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}
