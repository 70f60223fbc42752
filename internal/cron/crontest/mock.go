// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/internal/cron"
)

// MockJob counts its runs and delegates to RunFunc when set.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	calls atomic.Int32
}

var _ cron.Job = (*MockJob)(nil)

func (m *MockJob) Name() string     { return m.NameVal }
func (m *MockJob) Schedule() string { return m.ScheduleVal }

func (m *MockJob) Run(ctx context.Context) error {
	m.calls.Add(1)
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount reports how many times Run was entered.
func (m *MockJob) CallCount() int { return int(m.calls.Load()) }

// MockCatalog is a test double for cron.CatalogLister and cron.CatalogStore.
type MockCatalog struct {
	Models  []capability.ModelMetadata
	ListErr error
	PutErr  error

	mu      sync.Mutex
	stored  []capability.ModelMetadata
	cutoffs []time.Time

	ListCalls atomic.Int32
}

// Compile-time interface checks.
var (
	_ cron.CatalogLister = (*MockCatalog)(nil)
	_ cron.CatalogStore  = (*MockCatalog)(nil)
)

// ListModels implements cron.CatalogLister.
func (m *MockCatalog) ListModels(_ context.Context) ([]capability.ModelMetadata, error) {
	m.ListCalls.Add(1)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Models, nil
}

// PutAll implements cron.CatalogStore.
func (m *MockCatalog) PutAll(_ context.Context, models []capability.ModelMetadata) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, models...)
	return nil
}

// Prune implements cron.CatalogStore and records the cutoff.
func (m *MockCatalog) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return 0, nil
}

// Stored returns everything written through PutAll.
func (m *MockCatalog) Stored() []capability.ModelMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]capability.ModelMetadata(nil), m.stored...)
}

// Cutoffs returns the cutoffs passed to Prune.
func (m *MockCatalog) Cutoffs() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.cutoffs...)
}
