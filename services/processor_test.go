package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bulk-order-service/models"
	"bulk-order-service/services"

	"github.com/stretchr/testify/assert"
)

// ---- mock collaborators ----

type mockCatalog struct {
	mu          sync.Mutex
	calls       int
	unavailable map[string]bool
	failWith    error
	price       float64
}

func (m *mockCatalog) CheckAvailability(_ context.Context, sku string) (*models.ProductAvailability, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}
	price := m.price
	if price == 0 {
		price = 10
	}
	if m.unavailable[sku] {
		return &models.ProductAvailability{SKU: sku, Available: false, Quantity: 0, Price: price}, nil
	}
	return &models.ProductAvailability{SKU: sku, Available: true, Quantity: 1000, Price: price, Name: "Product " + sku}, nil
}

type mockCart struct {
	mu       sync.Mutex
	batches  [][]models.CartLine
	failWith error
}

func (m *mockCart) AddItems(_ context.Context, items []models.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.batches = append(m.batches, items)
	return nil
}

type mockAlternatives struct {
	mu          sync.Mutex
	requested   []string
	suggestions []models.AlternativeSuggestion
}

func (m *mockAlternatives) FindAlternatives(_ context.Context, sku string, maxSuggestions int, minSimilarity float64) ([]models.AlternativeSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = append(m.requested, sku)
	if len(m.suggestions) > maxSuggestions {
		return m.suggestions[:maxSuggestions], nil
	}
	return m.suggestions, nil
}

func makeRows(n int) []models.BulkOrderRow {
	rows := make([]models.BulkOrderRow, n)
	for i := range rows {
		rows[i] = models.BulkOrderRow{SKU: fmt.Sprintf("SKU-%d", i), Quantity: 1, Line: i + 2}
	}
	return rows
}

func testConfig() services.ProcessorConfig {
	return services.ProcessorConfig{
		BatchSize:         10,
		MaxConcurrent:     3,
		EnableSuggestions: true,
		MaxSuggestions:    3,
		MinSimilarity:     0.3,
		Retry: services.RetryConfig{
			MaxAttempts:       2,
			InitialDelay:      time.Millisecond,
			BackoffMultiplier: 2,
			MaxDelay:          2 * time.Millisecond,
		},
	}
}

func TestProcessAllAvailable(t *testing.T) {
	catalog := &mockCatalog{price: 2.5}
	cart := &mockCart{}

	p := services.NewBulkOrderProcessor(catalog, cart, &mockAlternatives{}, testConfig(), nil, nil)

	rows := makeRows(237)

	var progressCount int
	lastProcessed := 0
	lastBatches := 0
	result, err := p.Process(context.Background(), rows, func(status models.BulkProcessingStatus) {
		progressCount++
		assert.Greater(t, status.ProcessedItems, lastProcessed, "processedItems must strictly increase per batch callback")
		lastProcessed = status.ProcessedItems
		lastBatches = status.TotalBatches
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 237, result.ItemsProcessed)
	assert.Equal(t, 237, result.ItemsAdded)
	assert.Equal(t, 0, result.ItemsFailed)
	assert.InDelta(t, 237*2.5, result.TotalValue, 1e-9)
	assert.Equal(t, 24, lastBatches, "ceiling division of 237/10")
	assert.Equal(t, 24, progressCount)
	assert.Equal(t, 237, lastProcessed)
}

func TestProcessUnavailableRowGetsSuggestions(t *testing.T) {
	catalog := &mockCatalog{unavailable: map[string]bool{"SKU-3": true}}
	cart := &mockCart{}
	alts := &mockAlternatives{suggestions: []models.AlternativeSuggestion{
		{SKU: "ALT-1", Similarity: 0.9, Reason: "Same category"},
		{SKU: "ALT-2", Similarity: 0.7, Reason: "Similar price"},
	}}

	p := services.NewBulkOrderProcessor(catalog, cart, alts, testConfig(), nil, nil)

	result, err := p.Process(context.Background(), makeRows(10), nil)
	assert.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 10, result.ItemsProcessed)
	assert.Equal(t, 9, result.ItemsAdded)
	assert.Equal(t, 1, result.ItemsFailed)

	assert.Len(t, result.Suggestions, 1)
	suggestions, ok := result.Suggestions["SKU-3"]
	assert.True(t, ok, "only the unavailable SKU appears in suggestions")
	assert.Len(t, suggestions, 2)
	assert.Equal(t, []string{"SKU-3"}, alts.requested)
}

func TestProcessSuggestionsDisabled(t *testing.T) {
	catalog := &mockCatalog{unavailable: map[string]bool{"SKU-0": true}}
	alts := &mockAlternatives{suggestions: []models.AlternativeSuggestion{{SKU: "ALT-1"}}}

	cfg := testConfig()
	cfg.EnableSuggestions = false
	p := services.NewBulkOrderProcessor(catalog, &mockCart{}, alts, cfg, nil, nil)

	result, err := p.Process(context.Background(), makeRows(5), nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.ItemsFailed)
	assert.Empty(t, result.Suggestions)
	assert.Empty(t, alts.requested)
}

func TestProcessCartFailureMarksWholeBatch(t *testing.T) {
	catalog := &mockCatalog{}
	cart := &mockCart{failWith: errors.New("cart rejected the request")}

	p := services.NewBulkOrderProcessor(catalog, cart, &mockAlternatives{}, testConfig(), nil, nil)

	result, err := p.Process(context.Background(), makeRows(10), nil)
	assert.NoError(t, err)

	// the batch is the atomic retry unit: every available row fails together
	assert.False(t, result.Success)
	assert.Equal(t, 10, result.ItemsProcessed)
	assert.Equal(t, 0, result.ItemsAdded)
	assert.Equal(t, 10, result.ItemsFailed)
	assert.Zero(t, result.TotalValue)
}

func TestProcessOpenBreakerFailsFast(t *testing.T) {
	catalog := &mockCatalog{}
	catalogBreaker := services.NewCircuitBreaker("catalog", 1, time.Minute)
	catalogBreaker.RecordFailure() // force open

	p := services.NewBulkOrderProcessor(catalog, &mockCart{}, &mockAlternatives{}, testConfig(), catalogBreaker, nil)

	result, err := p.Process(context.Background(), makeRows(10), nil)
	assert.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 10, result.ItemsFailed)
	assert.Zero(t, catalog.calls, "no catalog call is attempted while the breaker is open")
}

func TestProcessCancellationBetweenBatches(t *testing.T) {
	catalog := &mockCatalog{}
	cart := &mockCart{}

	ctx, cancel := context.WithCancel(context.Background())

	cfg := testConfig()
	cfg.MaxConcurrent = 1

	var once sync.Once
	p := services.NewBulkOrderProcessor(catalog, cart, &mockAlternatives{}, cfg, nil, nil)

	result, err := p.Process(ctx, makeRows(1000), func(status models.BulkProcessingStatus) {
		once.Do(cancel)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Success)
	assert.Less(t, result.ItemsProcessed, 1000, "no new batch starts after cancellation")
	assert.Greater(t, result.ItemsProcessed, 0, "in-flight batches settle")
}

func TestProcessZeroRows(t *testing.T) {
	p := services.NewBulkOrderProcessor(&mockCatalog{}, &mockCart{}, &mockAlternatives{}, testConfig(), nil, nil)

	result, err := p.Process(context.Background(), nil, func(models.BulkProcessingStatus) {
		t.Fatal("no progress events expected for empty input")
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ItemsProcessed)
}

func TestProcessRetriesTransientCatalogFailure(t *testing.T) {
	catalog := &mockCatalog{failWith: errors.New("connection reset by peer")}

	p := services.NewBulkOrderProcessor(catalog, &mockCart{}, &mockAlternatives{}, testConfig(), nil, nil)

	result, err := p.Process(context.Background(), makeRows(1), nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.ItemsFailed)
	assert.Equal(t, 2, catalog.calls, "transient failure is retried up to MaxAttempts")
}
