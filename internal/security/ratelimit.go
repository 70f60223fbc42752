package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig holds per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	// RequestsPerMin caps API calls per client.
	RequestsPerMin int `yaml:"requests_per_min"`

	// AuthFailuresPerMin caps rejected credentials per client.
	AuthFailuresPerMin int `yaml:"auth_failures_per_min"`
}

// Bucket kinds.
const (
	KindRequest     = "request"
	KindAuthFailure = "auth_failure"
)

// RateLimiter implements sliding window rate limiting per (kind, client).
// Each window tracks timestamps of recent events.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]int
	window  time.Duration
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

type bucketKey struct {
	kind   string
	client string
}

type bucket struct {
	events []time.Time
}

// NewRateLimiter creates a rate limiter with one-minute windows.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limits: map[string]int{
			KindRequest:     cfg.RequestsPerMin,
			KindAuthFailure: cfg.AuthFailuresPerMin,
		},
		window:  time.Minute,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Allow records an event of kind for client and returns ErrRateLimited if
// the limit is exceeded. Unknown kinds and zero limits are unlimited.
func (rl *RateLimiter) Allow(kind, client string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit := rl.limits[kind]
	if limit <= 0 {
		return nil
	}

	now := rl.now()
	b := rl.bucket(kind, client, now)
	if len(b.events) >= limit {
		return ErrRateLimited
	}
	b.events = append(b.events, now)
	return nil
}

// Exceeded reports whether client has already used up kind, without
// recording an event.
func (rl *RateLimiter) Exceeded(kind, client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit := rl.limits[kind]
	if limit <= 0 {
		return false
	}
	return len(rl.bucket(kind, client, rl.now()).events) >= limit
}

// bucket returns the evicted bucket for key, dropping empty buckets of other
// clients opportunistically. Callers hold rl.mu.
func (rl *RateLimiter) bucket(kind, client string, now time.Time) *bucket {
	key := bucketKey{kind: kind, client: client}
	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) > 1024 {
			rl.sweep(now)
		}
		b = &bucket{}
		rl.buckets[key] = b
	}
	b.evict(now.Add(-rl.window))
	return b
}

func (rl *RateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-rl.window)
	for k, b := range rl.buckets {
		b.evict(cutoff)
		if len(b.events) == 0 {
			delete(rl.buckets, k)
		}
	}
}

// evict removes events before cutoff.
func (b *bucket) evict(cutoff time.Time) {
	// Events are chronologically ordered.
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
