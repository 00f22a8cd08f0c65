package infrastructure

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactcli/internal/config"
)

func TestTelemetry_MetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	promFile := filepath.Join(dir, "metrics", "impact.prom")
	ctx := context.Background()

	tel, err := InitializeTelemetry(ctx, config.TelemetryConfig{
		Environment:     "test",
		EnableMetrics:   true,
		MetricsTextfile: promFile,
	}, "test", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)

	tel.Metrics.DaysPrepared.Add(ctx, 3, StatusAttr("ok"))
	tel.Metrics.DaysPrepared.Add(ctx, 1, StatusAttr("failed"))
	tel.Metrics.StepDuration.Record(ctx, 1.5)

	require.NoError(t, tel.Shutdown(ctx))

	content, err := os.ReadFile(promFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "impact_days_prepared_total")
	assert.Contains(t, string(content), `status="failed"`)
	assert.Contains(t, string(content), "impact_step_duration_seconds")
}

func TestTelemetry_TraceFile(t *testing.T) {
	traceFile := filepath.Join(t.TempDir(), "traces.json")
	ctx := context.Background()

	tel, err := InitializeTelemetry(ctx, config.TelemetryConfig{
		EnableTracing: true,
		TraceFile:     traceFile,
	}, "test", nil)
	require.NoError(t, err)

	_, span := tel.Tracer.Start(ctx, "step.prepare")
	span.End()

	require.NoError(t, tel.Shutdown(ctx))

	content, err := os.ReadFile(traceFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "step.prepare")
}

func TestTelemetry_Disabled(t *testing.T) {
	ctx := context.Background()
	tel, err := InitializeTelemetry(ctx, config.TelemetryConfig{}, "test", nil)
	require.NoError(t, err)

	// no-op instruments accept measurements
	tel.Metrics.BucketsFitted.Add(ctx, 1, StatusAttr("ok"))
	_, span := tel.Tracer.Start(ctx, "noop")
	span.End()

	assert.NoError(t, tel.Shutdown(ctx))
}
