package provider

import (
	"sync"
	"time"
)

// HealthState is the availability of a remote backend.
type HealthState int

// Health states.
const (
	StateHealthy HealthState = iota
	StateCooldown
)

func (s HealthState) String() string {
	if s == StateCooldown {
		return "cooldown"
	}
	return "healthy"
}

// HealthConfig sets the cooldown curve. Zero fields take defaults of 1s
// initial and 60s max.
type HealthConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// HealthSnapshot is a point-in-time view of a HealthTracker.
type HealthSnapshot struct {
	State    HealthState
	Failures int
	Backoff  time.Duration
	// RetryAt is when a backend in cooldown may be tried again.
	RetryAt time.Time
}

// HealthTracker gates calls to a flaky backend. Each consecutive failure
// doubles a cooldown during which Available reports false; any success
// clears it.
type HealthTracker struct {
	initial, max time.Duration

	// OnStateChange observes transitions. It runs without the lock held.
	OnStateChange func(from, to HealthState)

	mu   sync.Mutex
	snap HealthSnapshot
	now  func() time.Time
}

// NewHealthTracker returns a tracker in StateHealthy.
func NewHealthTracker(cfg HealthConfig) *HealthTracker {
	h := &HealthTracker{initial: cfg.InitialBackoff, max: cfg.MaxBackoff, now: time.Now}
	if h.initial <= 0 {
		h.initial = time.Second
	}
	if h.max <= 0 {
		h.max = time.Minute
	}
	return h
}

// Available reports whether the backend may be called now.
func (h *HealthTracker) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap.State == StateHealthy || !h.now().Before(h.snap.RetryAt)
}

// RecordSuccess returns the tracker to StateHealthy.
func (h *HealthTracker) RecordSuccess() {
	h.transition(func(s *HealthSnapshot) {
		*s = HealthSnapshot{}
	})
}

// RecordFailure starts or lengthens the cooldown, capped at the max backoff.
func (h *HealthTracker) RecordFailure() {
	h.transition(func(s *HealthSnapshot) {
		s.Failures++
		if s.Backoff == 0 {
			s.Backoff = h.initial
		} else {
			s.Backoff *= 2
		}
		s.Backoff = min(s.Backoff, h.max)
		s.RetryAt = h.now().Add(s.Backoff)
		s.State = StateCooldown
	})
}

func (h *HealthTracker) transition(apply func(*HealthSnapshot)) {
	h.mu.Lock()
	from := h.snap.State
	apply(&h.snap)
	to := h.snap.State
	h.mu.Unlock()

	if from != to && h.OnStateChange != nil {
		h.OnStateChange(from, to)
	}
}

// Snapshot returns the current state.
func (h *HealthTracker) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}
