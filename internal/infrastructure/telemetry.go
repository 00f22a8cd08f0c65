package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"impactcli/internal/config"
)

const (
	ServiceName = "impactcli"
	MeterName   = "impactcli"
)

// Telemetry bundles the tracer and meter used by the pipeline.
// Metrics are gathered into a Prometheus registry and written as a textfile on Shutdown,
// which suits batch jobs that exit before any scraper could reach them.
type Telemetry struct {
	Tracer   trace.Tracer
	Meter    metric.Meter
	Metrics  *PipelineMetrics
	Registry *prometheus.Registry

	cfg            config.TelemetryConfig
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	traceOutput    io.Closer
	logger         *slog.Logger
}

// PipelineMetrics holds the instruments recorded by the pipeline steps
type PipelineMetrics struct {
	DaysPrepared  metric.Int64Counter
	QuotesLoaded  metric.Int64Counter
	TradesLoaded  metric.Int64Counter
	BucketsFitted metric.Int64Counter
	StepDuration  metric.Float64Histogram
}

// InitializeTelemetry sets up tracing and metrics according to cfg.
// Disabled signals fall back to no-op implementations so callers never check for nil.
func InitializeTelemetry(ctx context.Context, cfg config.TelemetryConfig, version string, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}

	t := &Telemetry{
		cfg:      cfg,
		logger:   logger,
		Registry: prometheus.NewRegistry(),
		Tracer:   tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:    metricnoop.NewMeterProvider().Meter(MeterName),
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	)

	if cfg.EnableTracing {
		if err := t.initializeTracing(res, version); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := t.initializeMetrics(res, version); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	metrics, err := newPipelineMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	t.Metrics = metrics

	logger.InfoContext(ctx, "Telemetry initialized",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return t, nil
}

// initializeTracing exports spans as JSON to the configured trace file, or stdout when unset
func (t *Telemetry) initializeTracing(res *resource.Resource, version string) error {
	var out io.Writer = os.Stdout
	if t.cfg.TraceFile != "" {
		if err := os.MkdirAll(filepath.Dir(t.cfg.TraceFile), 0755); err != nil {
			return fmt.Errorf("create trace directory: %w", err)
		}
		f, err := os.Create(t.cfg.TraceFile)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		t.traceOutput = f
		out = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	t.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.Tracer = t.tracerProvider.Tracer(MeterName, trace.WithInstrumentationVersion(version))
	return nil
}

// initializeMetrics wires an OpenTelemetry meter provider to the Prometheus registry
func (t *Telemetry) initializeMetrics(res *resource.Resource, version string) error {
	exporter, err := otelprom.New(otelprom.WithRegisterer(t.Registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.Meter = t.meterProvider.Meter(MeterName, metric.WithInstrumentationVersion(version))
	return nil
}

func newPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	daysPrepared, err := meter.Int64Counter(
		"impact_days_prepared",
		metric.WithDescription("Trading days processed by the preparation step, by status"),
	)
	if err != nil {
		return nil, err
	}

	quotesLoaded, err := meter.Int64Counter(
		"impact_quotes_loaded",
		metric.WithDescription("Quote updates read from vendor files, by status (ok, one_sided)"),
	)
	if err != nil {
		return nil, err
	}

	tradesLoaded, err := meter.Int64Counter(
		"impact_trades_loaded",
		metric.WithDescription("Trades read from vendor files"),
	)
	if err != nil {
		return nil, err
	}

	bucketsFitted, err := meter.Int64Counter(
		"impact_buckets_fitted",
		metric.WithDescription("Regression buckets processed, by status"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"impact_step_duration",
		metric.WithDescription("Pipeline step duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		DaysPrepared:  daysPrepared,
		QuotesLoaded:  quotesLoaded,
		TradesLoaded:  tradesLoaded,
		BucketsFitted: bucketsFitted,
		StepDuration:  stepDuration,
	}, nil
}

// StatusAttr is the attribute set used to split counters by outcome
func StatusAttr(status string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("status", status))
}

// Shutdown flushes spans, writes the metrics textfile and releases the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if t.traceOutput != nil {
		if err := t.traceOutput.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace file: %w", err))
		}
	}

	if t.meterProvider != nil {
		if t.cfg.MetricsTextfile != "" {
			if err := t.WriteMetrics(t.cfg.MetricsTextfile); err != nil {
				errs = append(errs, err)
			} else {
				t.logger.InfoContext(ctx, "Metrics written", slog.String("path", t.cfg.MetricsTextfile))
			}
		}
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}

	return errors.Join(errs...)
}

// WriteMetrics writes the current registry contents in Prometheus text format
func (t *Telemetry) WriteMetrics(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, t.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
