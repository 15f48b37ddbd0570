package models

import "time"

// BulkOrderRow is one validated SKU/quantity entry from an uploaded file.
type BulkOrderRow struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Line     int    `json:"line"`
}

// RowError describes a single rejected input row.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// BulkOrderParseResult is the outcome of parsing one upload.
// Rows and Errors are disjoint: a row never appears in both.
type BulkOrderParseResult struct {
	Success bool           `json:"success"`
	Rows    []BulkOrderRow `json:"rows"`
	Errors  []RowError     `json:"errors"`
}

// ProcessingPhase tracks where a run currently is.
type ProcessingPhase string

const (
	PhaseParsing    ProcessingPhase = "parsing"
	PhaseProcessing ProcessingPhase = "processing"
	PhaseCompleted  ProcessingPhase = "completed"
	PhaseFailed     ProcessingPhase = "failed"
)

// BulkProcessingStatus is the progress snapshot pushed after every batch.
type BulkProcessingStatus struct {
	Phase          ProcessingPhase `json:"phase"`
	ProcessedItems int             `json:"processed_items"`
	TotalItems     int             `json:"total_items"`
	CurrentBatch   int             `json:"current_batch"`
	TotalBatches   int             `json:"total_batches"`
}

// BulkOrderResult is the terminal aggregate of a completed run.
type BulkOrderResult struct {
	Success        bool                               `json:"success"`
	ItemsProcessed int                                `json:"items_processed"`
	ItemsAdded     int                                `json:"items_added"`
	ItemsFailed    int                                `json:"items_failed"`
	TotalValue     float64                            `json:"total_value"`
	ProcessingTime time.Duration                      `json:"processing_time"`
	Suggestions    map[string][]AlternativeSuggestion `json:"suggestions,omitempty"`
}

// HasAlternatives reports whether any failed row produced suggestions.
func (r *BulkOrderResult) HasAlternatives() bool {
	return len(r.Suggestions) > 0
}

// CartLine is one line item submitted to the cart service.
type CartLine struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}
