package auth

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Throttle implements a token bucket per client key (usually the remote IP).
// Buckets live in a bounded LRU so a flood of distinct clients cannot grow memory without limit.
type Throttle struct {
	requestsPerWindow int
	windowDuration    time.Duration
	burst             int

	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
}

// NewThrottle creates a throttle allowing requestsPerWindow per windowDuration with the given burst
func NewThrottle(requestsPerWindow int, windowDuration time.Duration, burst, trackedClients int) (*Throttle, error) {
	if requestsPerWindow < 1 {
		return nil, fmt.Errorf("requests per window must be at least 1")
	}
	if windowDuration <= 0 {
		return nil, fmt.Errorf("window duration must be positive")
	}
	if burst <= 0 {
		burst = requestsPerWindow / 10 // Default burst to 10% of window
		if burst < 1 {
			burst = 1
		}
	}

	buckets, err := lru.New[string, *rate.Limiter](trackedClients)
	if err != nil {
		return nil, fmt.Errorf("failed to create throttle cache: %w", err)
	}

	return &Throttle{
		requestsPerWindow: requestsPerWindow,
		windowDuration:    windowDuration,
		burst:             burst,
		buckets:           buckets,
	}, nil
}

// Allow consumes a token for key, reporting false when the client is over its budget
func (t *Throttle) Allow(key string) bool {
	return t.limiter(key).Allow()
}

// Reset forgets the bucket for key
func (t *Throttle) Reset(key string) {
	t.buckets.Remove(key)
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limiter, ok := t.buckets.Get(key); ok {
		return limiter
	}

	every := t.windowDuration / time.Duration(t.requestsPerWindow)
	limiter := rate.NewLimiter(rate.Every(every), t.burst)
	t.buckets.Add(key, limiter)
	return limiter
}

// String returns a human-readable representation of the throttle
func (t *Throttle) String() string {
	return fmt.Sprintf("Throttle(%d req/%s, burst %d, %d clients tracked)",
		t.requestsPerWindow, t.windowDuration, t.burst, t.buckets.Len())
}
