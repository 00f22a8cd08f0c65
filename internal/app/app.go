package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"impactcli/internal/config"
	"impactcli/internal/infrastructure"
	"impactcli/internal/operations"
)

const (
	VERSION = "v1.0.0"
	AppName = "impactcli"
)

// Options carries the command line of a binary. Zero values leave the
// configured setting unchanged.
type Options struct {
	ConfigPath string
	Start      string
	End        string
	Regressors string
	Lags       *int
	Covariance string
	Console    io.Writer
}

// Application represents the container of one run
type Application struct {
	Config    *config.Config
	Paths     *config.Paths
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	Manager   *operations.Manager

	ctx context.Context
}

// NewApplication loads the configuration and initializes every component
func NewApplication(opts Options) (*Application, error) {
	cfg, err := config.LoadWithOverrides(opts.ConfigPath, opts.apply)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := infrastructure.EnsureRunID(context.Background())
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.String("start_date", cfg.Preparation.StartDate),
		slog.String("end_date", cfg.Preparation.EndDate))

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	telemetry, err := infrastructure.InitializeTelemetry(ctx, cfg.Telemetry, VERSION, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	registry := operations.NewRegistry()
	if err := operations.RegisterPipeline(registry, cfg, paths, console, logger, telemetry.Metrics); err != nil {
		return nil, fmt.Errorf("failed to register steps: %w", err)
	}

	return &Application{
		Config:    cfg,
		Paths:     paths,
		Logger:    logger,
		Telemetry: telemetry,
		Manager:   operations.NewManager(registry, operations.NewConfig(), telemetry, logger),
		ctx:       ctx,
	}, nil
}

// apply copies the flags that were set onto cfg
func (o Options) apply(cfg *config.Config) {
	if o.Start != "" {
		cfg.Preparation.StartDate = o.Start
	}
	if o.End != "" {
		cfg.Preparation.EndDate = o.End
	}
	if o.Regressors != "" {
		cfg.Analysis.Regressors = config.ParseRegressors(o.Regressors)
	}
	if o.Lags != nil {
		cfg.Analysis.Lags = *o.Lags
	}
	if o.Covariance != "" {
		cfg.Analysis.Covariance = o.Covariance
	}
}

// Run executes the given steps, or all of them when none are given, over the
// configured date range. SIGINT and SIGTERM cancel the run.
func (a *Application) Run(steps ...string) error {
	ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := a.Manager.Execute(ctx, operations.Request{
		Start: a.Config.Preparation.StartDate,
		End:   a.Config.Preparation.EndDate,
		Steps: steps,
	})
	if err != nil {
		return err
	}

	a.Logger.InfoContext(ctx, "Run finished",
		slog.String("operation_id", resp.ID),
		slog.String("status", string(resp.Status)),
		slog.Duration("duration", resp.Duration))
	return nil
}

// Stop flushes telemetry and closes the log file
func (a *Application) Stop(ctx context.Context) error {
	var errs []error
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}
