package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.False(t, tp.IsEnabled())
	assert.False(t, tp.IsSpanProfilesEnabled())

	// No-op provider still hands out usable tracers.
	tracer := tp.Tracer("test")
	assert.NotNil(t, tracer)

	assert.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_MissingAddress(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server address")
}

func TestDefaultProfilerConfig(t *testing.T) {
	cfg := DefaultProfilerConfig("http://pyroscope:4040", "saaskit-backend")
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.ProfileCPU)
	assert.True(t, cfg.ProfileInuseSpace)

	empty := DefaultProfilerConfig("", "saaskit-backend")
	assert.False(t, empty.Enabled)
}

func TestStartSpanAndHelpers(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "webhook.process",
		WithAttribute("provider", "stripe"),
	)
	defer span.End()

	require.NotNil(t, span)
	SetAttributes(span, "event_id", "evt_123", "attempt", 1)
	SetAttribute(span, "user_id", "u-1")
	AddEvent(span, "dispatched", "handlers", 3)
	SetOK(span)

	// No-op spans produce invalid (empty) IDs.
	assert.Equal(t, "", GetTraceID(ctx))
	assert.Equal(t, "", GetSpanID(ctx))
	assert.NotNil(t, SpanFromContext(ctx))
}

func TestStartServiceSpan_Name(t *testing.T) {
	_, span := StartServiceSpan(context.Background(), "download_token", "issue")
	defer span.End()
	require.NotNil(t, span)
}
