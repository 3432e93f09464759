// Package tracing installs the process-wide OpenTelemetry tracer provider
// used by the server and the clients.
package tracing

import (
	"context"
	"fmt"
	"net/url"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/supermq/pkg/jaeger"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider is a tracer provider that must be shut down to flush pending spans.
type Provider struct {
	trace.TracerProvider
	enabled  bool
	shutdown func(context.Context) error
}

// NewProvider exports spans over OTLP/HTTP to rawURL, sampling the given
// ratio of traces, and registers the provider globally so otelhttp picks it
// up. An empty rawURL returns a no-op provider and leaves the global one
// untouched.
func NewProvider(ctx context.Context, svcName, rawURL, instanceID string, ratio float64) (*Provider, error) {
	if rawURL == "" {
		return &Provider{
			TracerProvider: noop.NewTracerProvider(),
			shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("invalid tracing URL: %w", err))
	}

	tp, err := jaeger.NewProvider(ctx, svcName, *u, instanceID, ratio)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("failed to init tracer provider: %w", err))
	}

	return &Provider{TracerProvider: tp, enabled: true, shutdown: tp.Shutdown}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes buffered spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
