package gateway

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/internal/pipeline"
)

// fakeMonitor reports a fixed metadata source status.
type fakeMonitor struct {
	status capability.SourceStatus
}

func (m fakeMonitor) SourceStatus() capability.SourceStatus { return m.status }

// fakeReloader counts override reloads.
type fakeReloader struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeReloader) ReloadOverrides() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

// fakeJobs records triggered jobs.
type fakeJobs struct {
	mu    sync.Mutex
	err   error
	names []string
}

func (f *fakeJobs) RunNow(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return f.err
}

// keyResolver returns fixed capabilities and records the API keys it sees.
type keyResolver struct {
	caps capability.ModelCapabilities

	mu   sync.Mutex
	keys []string
}

func (r *keyResolver) Resolve(_ context.Context, sel capability.Selector, apiKey string) capability.Resolution {
	r.mu.Lock()
	r.keys = append(r.keys, apiKey)
	r.mu.Unlock()
	return capability.Resolution{Selector: sel, Capabilities: r.caps, Source: capability.SourceOverride}
}

func newTestGateway(t *testing.T, cfg Config, deps Deps) *Gateway {
	t.Helper()
	if deps.Pipeline == nil {
		deps.Pipeline = pipeline.New(pipeline.Config{}, pipeline.Deps{})
	}
	g, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

// do sends a request through the gateway handler. Headers are given as
// alternating name, value pairs.
func do(t *testing.T, g *Gateway, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, req)
	return rr
}

func okStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}
