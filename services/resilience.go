package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds one retry loop.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// DefaultRetryConfig matches the documented defaults: 3 attempts, 1s initial
// delay, 2x multiplier, 10s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          10 * time.Second,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 2
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	return c
}

// RetryResult is the terminal outcome of one retry-wrapped operation.
type RetryResult[T any] struct {
	Success    bool
	Result     T
	Err        error
	Attempts   int
	FinalDelay time.Duration
}

// retryablePatterns are matched against error text to decide whether another
// attempt is worth making. Anything else fails fast.
var retryablePatterns = []string{
	"connection reset",
	"econnreset",
	"timeout",
	"timed out",
	"deadline exceeded",
	"no such host",
	"eai_again",
	"rate limit",
	"too many requests",
	"429",
	"temporarily unavailable",
	"temporary",
	"service unavailable",
	"503",
}

// IsRetryable reports whether the error looks transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ExecuteWithRetry runs op up to cfg.MaxAttempts times with exponential
// backoff. Non-retryable errors stop the loop immediately. The sleep between
// attempts is ctx-aware; cancellation surfaces as a failed result with the
// attempts made so far.
func ExecuteWithRetry[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (T, error)) RetryResult[T] {
	cfg = cfg.normalized()

	var res RetryResult[T]
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt

		out, err := op(ctx)
		if err == nil {
			res.Success = true
			res.Result = out
			res.Err = nil
			return res
		}
		res.Err = err

		if !IsRetryable(err) || attempt == cfg.MaxAttempts {
			return res
		}

		res.FinalDelay = delay
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			return res
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return res
}

// BatchItemResult pairs one input item with its terminal retry outcome.
type BatchItemResult[T, R any] struct {
	Item   T
	Result RetryResult[R]
}

// BatchRetryResult aggregates a concurrent fan-out over many items.
type BatchRetryResult[T, R any] struct {
	Successful          []BatchItemResult[T, R]
	Failed              []BatchItemResult[T, R]
	PartiallySuccessful bool
}

// BatchRetryWithPartialSuccess runs op under ExecuteWithRetry for every item
// concurrently. One item's failure never aborts its siblings. onItemComplete,
// when non-nil, fires on every terminal outcome.
func BatchRetryWithPartialSuccess[T, R any](ctx context.Context, cfg RetryConfig, items []T, op func(ctx context.Context, item T) (R, error), onItemComplete func(item T, res RetryResult[R])) BatchRetryResult[T, R] {
	outcomes := make([]BatchItemResult[T, R], len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			res := ExecuteWithRetry(ctx, cfg, func(ctx context.Context) (R, error) {
				return op(ctx, item)
			})
			outcomes[i] = BatchItemResult[T, R]{Item: item, Result: res}
			if onItemComplete != nil {
				onItemComplete(item, res)
			}
		}(i, item)
	}
	wg.Wait()

	var result BatchRetryResult[T, R]
	for _, out := range outcomes {
		if out.Result.Success {
			result.Successful = append(result.Successful, out)
		} else {
			result.Failed = append(result.Failed, out)
		}
	}
	result.PartiallySuccessful = len(result.Successful) > 0 && len(result.Failed) > 0
	return result
}

// BreakerState is the circuit breaker's current position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerStatus is a read-only snapshot for logs and diagnostics.
type BreakerStatus struct {
	Name            string       `json:"name"`
	State           BreakerState `json:"state"`
	FailureCount    int          `json:"failure_count"`
	LastFailureTime time.Time    `json:"last_failure_time"`
}

// CircuitBreaker guards one dependency class (one breaker for all cart
// calls, one for all catalog calls - never one per SKU). Transitions are the
// only mutation path.
type CircuitBreaker struct {
	name      string
	threshold int
	timeout   time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool
	now         func() time.Time
}

// NewCircuitBreaker opens after threshold consecutive failures and allows a
// single half-open probe once timeout has elapsed since the last failure.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:      name,
		threshold: threshold,
		timeout:   timeout,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// CanProceed reports whether a call may be attempted right now. While open,
// the first call after the timeout window transitions to half-open and is
// allowed as the probe.
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		// only one probe at a time
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	case BreakerOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.timeout {
			cb.state = BreakerHalfOpen
			cb.probing = true
			zap.L().Info("circuit breaker half-open", zap.String("breaker", cb.name))
			return true
		}
		return false
	}
	return false
}

// RecordSuccess closes the breaker and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != BreakerClosed {
		zap.L().Info("circuit breaker closed", zap.String("breaker", cb.name))
	}
	cb.state = BreakerClosed
	cb.failures = 0
	cb.probing = false
}

// RecordFailure counts a failure; at the threshold (or on a failed half-open
// probe) the breaker opens and the timeout clock restarts.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	probeFailed := cb.state == BreakerHalfOpen
	cb.probing = false

	if probeFailed || cb.failures >= cb.threshold {
		if cb.state != BreakerOpen {
			zap.L().Warn("circuit breaker open",
				zap.String("breaker", cb.name),
				zap.Int("failures", cb.failures))
		}
		cb.state = BreakerOpen
	}
}

// Status returns a snapshot of the breaker.
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStatus{
		Name:            cb.name,
		State:           cb.state,
		FailureCount:    cb.failures,
		LastFailureTime: cb.lastFailure,
	}
}

// RecoverySuggestion is advisory metadata attached to a terminal failure.
// Never used for control flow.
type RecoverySuggestion struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// SuggestRecovery maps an error's wording (and the attempt count) to a next
// step a caller could take.
func SuggestRecovery(err error, attempts int) RecoverySuggestion {
	if err == nil {
		return RecoverySuggestion{}
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return RecoverySuggestion{Action: "retry_later", Message: "Rate limited. Wait a minute before retrying."}
	case strings.Contains(msg, "stock") || strings.Contains(msg, "availability") || strings.Contains(msg, "unavailable item"):
		return RecoverySuggestion{Action: "check_alternatives", Message: "Item availability changed. Review suggested alternatives."}
	case strings.Contains(msg, "network") || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "connection"):
		return RecoverySuggestion{Action: "retry_batch", Message: "Network issue. Retry the whole batch."}
	case attempts >= 3:
		return RecoverySuggestion{Action: "manual_review", Message: "Repeated failures. Flagged for manual review."}
	default:
		return RecoverySuggestion{Action: "contact_support", Message: "Unexpected error. Contact support if it persists."}
	}
}
