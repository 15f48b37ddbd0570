package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// LimiterStore holds per-client limiters behind an explicit interface so
// nothing depends on process-wide maps. A shared external store can back it
// in multi-replica deployments.
type LimiterStore interface {
	Get(key string) (*rate.Limiter, bool)
	Set(key string, limiter *rate.Limiter)
	SweepExpired()
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiterStore is the in-process LimiterStore.
type MemoryLimiterStore struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryLimiterStore(ttl time.Duration) *MemoryLimiterStore {
	return &MemoryLimiterStore{
		entries: make(map[string]*limiterEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryLimiterStore) Get(key string) (*rate.Limiter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	entry.lastSeen = s.now()
	return entry.limiter, true
}

func (s *MemoryLimiterStore) Set(key string, limiter *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &limiterEntry{limiter: limiter, lastSeen: s.now()}
}

func (s *MemoryLimiterStore) SweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.entries, key)
		}
	}
}

// StartLimiterSweeper sweeps the store every interval until ctx is
// cancelled, keeping the map bounded.
func StartLimiterSweeper(ctx context.Context, store LimiterStore, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.SweepExpired()
			}
		}
	}()
}

// RateLimit limits requests per client IP using the supplied store.
func RateLimit(store LimiterStore, r rate.Limit, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		limiter, ok := store.Get(ip)
		if !ok {
			limiter = rate.NewLimiter(r, burst)
			store.Set(ip, limiter)
		}

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
