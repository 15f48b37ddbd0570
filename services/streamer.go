package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"bulk-order-service/models"
)

// ProgressStreamer serializes processing milestones into an ordered,
// newline-delimited JSON event stream: zero or more progress records
// followed by exactly one completed or error record. After the terminal
// record the stream is closed and every further send is a no-op.
type ProgressStreamer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	flusher http.Flusher
	closed  bool
	lastPct int
}

// NewProgressStreamer wraps w. When w is an http.Flusher every event is
// flushed immediately so remote clients see progress in real time.
func NewProgressStreamer(w io.Writer) *ProgressStreamer {
	s := &ProgressStreamer{enc: json.NewEncoder(w)}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// SendProgress emits one progress event. Percentage is derived from the
// processed/total ratio and never decreases across the stream.
func (s *ProgressStreamer) SendProgress(status models.BulkProcessingStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	pct := 0
	if status.TotalItems > 0 {
		pct = status.ProcessedItems * 100 / status.TotalItems
	}
	if pct < s.lastPct {
		pct = s.lastPct
	}
	s.lastPct = pct

	return s.write(models.ProgressEvent{
		Type:           models.EventTypeProgress,
		Phase:          status.Phase,
		Percentage:     pct,
		Message:        message,
		TotalItems:     status.TotalItems,
		ProcessedItems: status.ProcessedItems,
		CurrentBatch:   status.CurrentBatch,
		TotalBatches:   status.TotalBatches,
	})
}

// SendCompleted emits the terminal completed event and closes the stream.
func (s *ProgressStreamer) SendCompleted(result *models.BulkOrderResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	return s.write(models.CompletedEvent{
		Type:            models.EventTypeCompleted,
		Success:         result.Success,
		TotalProcessed:  result.ItemsProcessed,
		TotalAdded:      result.ItemsAdded,
		TotalFailed:     result.ItemsFailed,
		TotalValue:      result.TotalValue,
		ProcessingTime:  result.ProcessingTime.Milliseconds(),
		HasAlternatives: result.HasAlternatives(),
		Alternatives:    alternativePairs(result.Suggestions),
	})
}

// SendError emits the terminal error event and closes the stream.
func (s *ProgressStreamer) SendError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return s.write(models.ErrorEvent{Type: models.EventTypeError, Error: msg})
}

// Closed reports whether a terminal event has been emitted.
func (s *ProgressStreamer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *ProgressStreamer) write(event interface{}) error {
	if err := s.enc.Encode(event); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// alternativePairs flattens the suggestion map into SKU-ordered pairs so
// the wire output is deterministic.
func alternativePairs(suggestions map[string][]models.AlternativeSuggestion) []models.AlternativePair {
	pairs := make([]models.AlternativePair, 0, len(suggestions))
	for sku, s := range suggestions {
		pairs = append(pairs, models.AlternativePair{SKU: sku, Suggestions: s})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].SKU < pairs[j].SKU })
	return pairs
}
