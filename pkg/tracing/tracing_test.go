package tracing

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewProviderDisabled(t *testing.T) {
	tp, err := NewProvider(context.Background(), "secagg-test", "", "instance", 1)
	require.NoError(t, err)
	assert.False(t, tp.Enabled())

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewProviderInvalidURL(t *testing.T) {
	cases := []struct {
		desc string
		url  string
	}{
		{desc: "unsupported scheme", url: "ftp://collector:4318/v1/traces"},
		{desc: "malformed", url: "http://[::1"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := NewProvider(context.Background(), "secagg-test", tc.url, "instance", 1)
			assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrConfiguration), "got %v", err)
		})
	}
}

func TestNewProviderInstallsGlobal(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	tp, err := NewProvider(context.Background(), "secagg-test", "http://localhost:4318/v1/traces", "instance", 1)
	require.NoError(t, err)
	assert.True(t, tp.Enabled())
	assert.Equal(t, tp.TracerProvider, otel.GetTracerProvider())

	_, span := otel.Tracer("test").Start(context.Background(), "recorded")
	assert.True(t, span.IsRecording())
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// Export to an unreachable collector may fail; the provider must still stop.
	_ = tp.Shutdown(ctx)
}
