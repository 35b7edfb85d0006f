package telemetry

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "hostkit", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestSampleRatioClamped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want float64
	}{
		{-1, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{7, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Config{SampleRate: tt.rate}.sampleRatio())
	}
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
	assert.NotNil(t, Tracer())
}

func TestStartSpanWithoutInit(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanServerStart)
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	defer span.End()

	// No-op spans carry no IDs.
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestSpanHelpersTolerateNoopSpans(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanServerStop)
	defer span.End()

	assert.NotPanics(t, func() {
		AddEvent(ctx, "unit.stopped", Unit("WEBAPP"))
		SetAttributes(ctx, Connector("WEBSERVICE"), State("stopped"))
		RecordError(ctx, errors.New("boom"))
		RecordError(ctx, nil)
	})
}

func TestStartHTTPSpan(t *testing.T) {
	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	ctx, span := StartHTTPSpan(req, "WEBSERVICE")
	require.NotNil(t, ctx)
	span.End()
}

func TestStartPacketSpan(t *testing.T) {
	ctx, span := StartPacketSpan(context.Background(), "127.0.0.1:5000", 42)
	require.NotNil(t, ctx)
	span.End()
}

func TestAttributeHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AttrConnector, string(Connector("WEBAPP").Key))
	assert.Equal(t, "WEBAPP", Connector("WEBAPP").Value.AsString())
	assert.Equal(t, int64(503), HTTPStatus(503).Value.AsInt64())
	assert.Equal(t, int64(9090), ServerPort(9090).Value.AsInt64())
	assert.Equal(t, "10.0.0.1", ClientIP("10.0.0.1").Value.AsString())
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileType(t *testing.T) {
	t.Parallel()

	for _, name := range append([]string{"goroutines", "mutex_count", "block_duration"}, defaultProfileTypes...) {
		_, err := parseProfileType(name)
		assert.NoError(t, err, name)
	}

	_, err := parseProfileType("heap")
	assert.Error(t, err)
}

func TestInitProfilingRejectsUnknownType(t *testing.T) {
	_, err := InitProfiling(ProfilingConfig{Enabled: true, ProfileTypes: []string{"nope"}})
	assert.Error(t, err)
	assert.False(t, IsProfilingEnabled())
}
