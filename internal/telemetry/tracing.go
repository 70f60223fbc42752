package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const defaultServiceName = "ctxpack"

// Config holds the tracing configuration.
type Config struct {
	// OTLPEndpoint is the OTLP/HTTP collector URL, for example
	// "http://localhost:4318". Empty disables tracing.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// ServiceName is reported as service.name. Default: "ctxpack".
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of root spans sampled, in [0, 1].
	// Zero means 1.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool {
	return c.OTLPEndpoint != ""
}

// Validate checks the endpoint URL and the sample ratio.
func (c Config) Validate() error {
	var errs []error
	if c.OTLPEndpoint != "" {
		u, err := url.Parse(c.OTLPEndpoint)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("telemetry: invalid otlp_endpoint: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("telemetry: otlp_endpoint scheme must be http or https, got %q", u.Scheme))
		case u.Host == "":
			errs = append(errs, errors.New("telemetry: otlp_endpoint must include a host"))
		}
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry: sample_ratio must be within [0, 1], got %v", c.SampleRatio))
	}
	return errors.Join(errs...)
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// SetupTracing installs a global tracer provider exporting over OTLP/HTTP.
// When no endpoint is configured the global no-op provider is left in place
// and the returned ShutdownFunc does nothing.
func SetupTracing(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	ratio := cfg.SampleRatio
	if ratio == 0 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
