package models

import "encoding/json"

// Progress event stream wire types. Events are newline-delimited JSON; the
// stream is progress* followed by exactly one completed or error record.
const (
	EventTypeProgress  = "progress"
	EventTypeCompleted = "completed"
	EventTypeError     = "error"
)

// ProgressEvent is emitted after every settled batch.
type ProgressEvent struct {
	Type           string          `json:"type"`
	Phase          ProcessingPhase `json:"phase"`
	Percentage     int             `json:"percentage"`
	Message        string          `json:"message"`
	TotalItems     int             `json:"total_items"`
	ProcessedItems int             `json:"processed_items"`
	CurrentBatch   int             `json:"current_batch"`
	TotalBatches   int             `json:"total_batches"`
}

// AlternativePair serializes as a [sku, suggestions] tuple so the
// alternatives list round-trips as an entry array on the wire.
type AlternativePair struct {
	SKU         string
	Suggestions []AlternativeSuggestion
}

func (p AlternativePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.SKU, p.Suggestions})
}

func (p *AlternativePair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.SKU); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Suggestions)
}

// CompletedEvent terminates a successful stream.
type CompletedEvent struct {
	Type            string            `json:"type"`
	Success         bool              `json:"success"`
	TotalProcessed  int               `json:"total_processed"`
	TotalAdded      int               `json:"total_added"`
	TotalFailed     int               `json:"total_failed"`
	TotalValue      float64           `json:"total_value"`
	ProcessingTime  int64             `json:"processing_time_ms"`
	HasAlternatives bool              `json:"has_alternatives"`
	Alternatives    []AlternativePair `json:"alternatives"`
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// BulkOrderCompletedEvent is published to Kafka after every finished run.
type BulkOrderCompletedEvent struct {
	RunID          string  `json:"run_id"`
	UserID         string  `json:"user_id,omitempty"`
	Success        bool    `json:"success"`
	ItemsProcessed int     `json:"items_processed"`
	ItemsAdded     int     `json:"items_added"`
	ItemsFailed    int     `json:"items_failed"`
	TotalValue     float64 `json:"total_value"`
	CompletedAt    string  `json:"completed_at"`
}
