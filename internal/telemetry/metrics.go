// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing
// for the context pipeline.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/internal/transform"
	"github.com/flemzord/ctxpack/pkg/envelope"
)

const namespace = "ctxpack"

// Metrics holds the pipeline collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	budgetRuns    *prometheus.CounterVec
	budgetCuts    *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	substitutions *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		budgetRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_runs_total",
			Help:      "Budget runs by final degradation stage.",
		}, []string{"stage"}),
		budgetCuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_cuts_total",
			Help:      "Lossy changes recorded by the degradation engine.",
		}, []string{"type"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_resolutions_total",
			Help:      "Capability resolutions by answering layer.",
		}, []string{"source"}),
		substitutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_substitutions_total",
			Help:      "Message parts replaced by the transformer.",
		}, []string{"kind"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_job_runs_total",
			Help:      "Scheduled job runs by outcome.",
		}, []string{"job", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.budgetRuns,
		m.budgetCuts,
		m.resolutions,
		m.substitutions,
		m.jobRuns,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBudget records the final stage and the cuts of a budgeted envelope.
func (m *Metrics) ObserveBudget(env *envelope.Envelope) {
	if m == nil || env == nil {
		return
	}
	m.budgetRuns.WithLabelValues(env.Budget.DegradeStage.String()).Inc()
	for _, c := range env.Budget.Cuts {
		m.budgetCuts.WithLabelValues(string(c.Type)).Inc()
	}
}

// ObserveResolution records which layer answered a capability lookup.
func (m *Metrics) ObserveResolution(res capability.Resolution) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(string(res.Source)).Inc()
}

// ObserveTransform records the substitutions of one transformation.
func (m *Metrics) ObserveTransform(rep transform.Report) {
	if m == nil {
		return
	}
	add := func(kind string, n int) {
		if n > 0 {
			m.substitutions.WithLabelValues(kind).Add(float64(n))
		}
	}
	add("image_omitted", rep.ImagesOmitted)
	add("pdf_converted", rep.PDFsConverted)
	add("pdf_omitted", rep.PDFsOmitted)
}

// ObserveJob records one scheduled job run. Its signature matches
// cron.Scheduler.OnResult.
func (m *Metrics) ObserveJob(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
