// Package reload picks up edits to files the service reads at startup,
// through file polling and SIGHUP.
package reload

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Path is the file to watch. It need not exist yet.
	Path string

	// PollInterval defaults to 5s.
	PollInterval time.Duration
}

// EventType says what happened to the watched file.
type EventType string

// File events.
const (
	EventModified EventType = "modified" // created or content changed
	EventRemoved  EventType = "removed"
)

// Event is one observed change.
type Event struct {
	Type EventType
	Path string
}

// snapshot is what one poll learns about the file.
type snapshot struct {
	exists  bool
	modTime time.Time
	digest  [32]byte
}

// changed reports whether next differs from s in a way worth an event.
// Content is compared as well as mtime, so rewrites within the
// filesystem's timestamp granularity are still seen.
func (s snapshot) changed(next snapshot) (EventType, bool) {
	switch {
	case s.exists && !next.exists:
		return EventRemoved, true
	case !next.exists:
		return "", false
	case !s.exists, next.digest != s.digest, next.modTime.After(s.modTime):
		return EventModified, true
	}
	return "", false
}

// Watcher polls one file and reports changes on Events. At most one event
// is buffered; later ones are dropped until it is read.
type Watcher struct {
	cfg    WatcherConfig
	events chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher returns an idle watcher.
func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Watcher{cfg: cfg, events: make(chan Event, 1)}
}

// Start polls in the background until ctx ends or Stop is called. Calls
// after the first are no-ops.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
}

// Events delivers file changes.
func (w *Watcher) Events() <-chan Event { return w.events }

// Stop ends polling and waits for the loop to exit. It may be called
// before Start and more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if done == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	t := time.NewTicker(w.cfg.PollInterval)
	defer t.Stop()

	last := w.observe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		next := w.observe()
		if typ, ok := last.changed(next); ok {
			select {
			case w.events <- Event{Type: typ, Path: w.cfg.Path}:
			default:
			}
		}
		last = next
	}
}

func (w *Watcher) observe() snapshot {
	info, err := os.Stat(w.cfg.Path)
	if err != nil {
		return snapshot{}
	}
	s := snapshot{exists: true, modTime: info.ModTime()}
	if data, err := os.ReadFile(w.cfg.Path); err == nil {
		s.digest = blake3.Sum256(data)
	}
	return s
}
