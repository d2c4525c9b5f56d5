package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTracingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestDBTracingDisabledIsNoop(t *testing.T) {
	db := newTracingTestDB(t)

	tracing := NewDBTracing(DBTracingConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, tracing.Register(db))

	_, installed := db.Config.Plugins["otelgorm"]
	assert.False(t, installed)
	assert.Nil(t, db.Callback().Query().Get("otel_timing:before_query"))
}

func TestDBTracingRegistersPluginAndCallbacks(t *testing.T) {
	db := newTracingTestDB(t)

	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	require.NoError(t, NewDBTracing(cfg, zap.NewNop()).Register(db))

	_, installed := db.Config.Plugins["otelgorm"]
	assert.True(t, installed)
	assert.NotNil(t, db.Callback().Query().Get("otel_timing:before_query"))
	assert.NotNil(t, db.Callback().Query().Get("otel_timing:after_query"))
}

func TestDBTracingEmitsQuerySpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	db := newTracingTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	require.NoError(t, NewDBTracing(cfg, zap.NewNop()).Register(db))

	var one int
	require.NoError(t, db.WithContext(context.Background()).Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	require.NoError(t, provider.ForceFlush(context.Background()))
	assert.NotEmpty(t, recorder.Ended(), "queries should produce spans")
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}
