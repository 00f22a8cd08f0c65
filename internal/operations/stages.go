package operations

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"impactcli/internal/config"
	"impactcli/internal/impact"
	"impactcli/internal/infrastructure"
	"impactcli/internal/marketdata"
	"impactcli/internal/preparation"
	"impactcli/internal/regression"
	"impactcli/internal/report"
)

// PrepareStep turns the vendor quote and trade files into bars and depth series
// and writes them to the data directory
type PrepareStep struct {
	BaseStep
	cfg     *config.Config
	paths   *config.Paths
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewPrepareStep creates the preparation step. metrics may be nil.
func NewPrepareStep(cfg *config.Config, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *PrepareStep {
	return &PrepareStep{
		BaseStep: NewBaseStep(StepIDPrepare, StepNamePrepare),
		cfg:      cfg,
		paths:    paths,
		logger:   infrastructure.WithComponent(logger, StepIDPrepare),
		metrics:  metrics,
	}
}

// Validate requires a date range
func (s *PrepareStep) Validate(state *OperationState) error {
	return requireRange(state)
}

// Execute runs the preparer over the run's date range
func (s *PrepareStep) Execute(ctx context.Context, state *OperationState) error {
	store := marketdata.NewStore(s.paths.RawDir, s.cfg.Market.Exchange, s.cfg.Market.Symbol)
	opts := preparation.Options{
		Interval:    s.cfg.Preparation.Interval,
		DepthBucket: s.cfg.Preparation.DepthBucket,
		TickSize:    s.cfg.Market.TickSize,
		Workers:     s.cfg.Preparation.Workers,
	}

	s.reportMissingFiles(ctx, store, state)

	ds, err := preparation.NewPreparer(store, opts, s.logger, s.metrics).Prepare(ctx, state.Start, state.End)
	if err != nil {
		return err
	}

	barsPath := s.paths.BarsCSVPath(state.Start, state.End)
	depthsPath := s.paths.DepthsCSVPath(state.Start, state.End)
	if err := ds.Save(barsPath, depthsPath); err != nil {
		return err
	}

	state.Dataset = ds
	state.Bars = ds.Bars
	state.Depths = ds.Depths

	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("bars", len(ds.Bars))
		st.SetMetadata("days_prepared", len(ds.Prepared))
		st.SetMetadata("days_failed", len(ds.Failed))
		st.SetMetadata("bars_path", barsPath)
		st.SetMetadata("depths_path", depthsPath)
	}

	s.logger.InfoContext(ctx, "prepared data saved",
		slog.String("bars_path", barsPath),
		slog.String("depths_path", depthsPath),
		slog.Int("bars", len(ds.Bars)),
		slog.Int("depth_buckets", len(ds.Depths)))
	return nil
}

// reportMissingFiles warns about requested days without vendor files. The
// preparer still attempts every day and records the failures.
func (s *PrepareStep) reportMissingFiles(ctx context.Context, store *marketdata.Store, state *OperationState) {
	days, err := marketdata.DateRange(state.Start, state.End)
	if err != nil {
		return
	}
	inv, err := store.Inventory()
	if err != nil {
		s.logger.WarnContext(ctx, "market data inventory failed", slog.String("error", err.Error()))
		return
	}
	missing := inv.Missing(days)
	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("days_missing", len(missing))
	}
	if len(missing) > 0 {
		s.logger.WarnContext(ctx, "market data files missing",
			slog.Int("requested", len(days)),
			slog.Any("days", missing))
	}
}

// AnalyzeStep estimates the price impact coefficient per bucket, joins it with the
// average depth and builds the intraday profile
type AnalyzeStep struct {
	BaseStep
	cfg     *config.Config
	paths   *config.Paths
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewAnalyzeStep creates the analysis step. metrics may be nil.
func NewAnalyzeStep(cfg *config.Config, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *AnalyzeStep {
	return &AnalyzeStep{
		BaseStep: NewBaseStep(StepIDAnalyze, StepNameAnalyze, StepIDPrepare),
		cfg:      cfg,
		paths:    paths,
		logger:   infrastructure.WithComponent(logger, StepIDAnalyze),
		metrics:  metrics,
	}
}

// Validate requires a date range
func (s *AnalyzeStep) Validate(state *OperationState) error {
	return requireRange(state)
}

// Options translates the analysis configuration into estimator options
func (s *AnalyzeStep) Options() impact.Options {
	return impact.Options{
		Bucket:     s.cfg.Analysis.Bucket,
		Regressors: s.cfg.Analysis.Regressors,
		Regression: regression.Options{
			CovType: regression.CovType(s.cfg.Analysis.Covariance),
			MaxLags: s.cfg.Analysis.Lags,
		},
	}
}

// Execute fits the bucket regressions. Bars and depths come from the prepare step
// of the same run or, when it did not run, from the prepared files covering the range.
func (s *AnalyzeStep) Execute(ctx context.Context, state *OperationState) error {
	if state.Bars == nil || state.Depths == nil {
		if err := s.loadPrepared(ctx, state); err != nil {
			return err
		}
	}

	opts := s.Options()
	coefs, err := impact.NewEstimator(opts, s.logger, s.metrics).Coefficients(ctx, state.Bars)
	if err != nil {
		return err
	}

	obs, err := impact.FilterRange(impact.Join(coefs, state.Depths, opts.Bucket), state.Start, state.End)
	if err != nil {
		return err
	}

	profile, err := impact.Profile(obs, opts.Bucket)
	if err != nil {
		return err
	}

	obsPath := s.paths.ObservationsCSVPath(state.Start, state.End)
	if err := report.SaveObservationsCSV(obs, obsPath); err != nil {
		return fmt.Errorf("save observations: %w", err)
	}

	state.Coefficients = coefs
	state.Observations = obs
	state.Profile = profile

	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("buckets", len(coefs))
		st.SetMetadata("observations", len(obs))
		st.SetMetadata("observations_path", obsPath)
	}

	s.logger.InfoContext(ctx, "analysis completed",
		slog.Int("buckets", len(coefs)),
		slog.Int("observations", len(obs)),
		slog.String("impact_regressor", opts.ImpactRegressor()),
		slog.String("observations_path", obsPath))
	return nil
}

// loadPrepared reads the prepared data set that covers the run's range. It may span
// more days than requested; FilterRange trims the observations afterwards.
func (s *AnalyzeStep) loadPrepared(ctx context.Context, state *OperationState) error {
	from, to, err := s.paths.FindPreparedRange(state.Start, state.End)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	barsPath := s.paths.BarsCSVPath(from, to)
	depthsPath := s.paths.DepthsCSVPath(from, to)

	bars, err := preparation.LoadBars(barsPath)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	depths, err := preparation.LoadDepths(depthsPath)
	if err != nil {
		return fmt.Errorf("load depths: %w", err)
	}

	state.Bars = bars
	state.Depths = depths
	s.logger.InfoContext(ctx, "loaded prepared data",
		slog.String("prepared_start", from),
		slog.String("prepared_end", to),
		slog.String("bars_path", barsPath),
		slog.String("depths_path", depthsPath),
		slog.Int("bars", len(bars)),
		slog.Int("depth_buckets", len(depths)))
	return nil
}

// PresentStep writes the tables, workbook, chart and summary and prints the
// profile to the console
type PresentStep struct {
	BaseStep
	cfg     *config.Config
	paths   *config.Paths
	console io.Writer
	logger  *slog.Logger
}

// NewPresentStep creates the presentation step. console may be nil.
func NewPresentStep(cfg *config.Config, paths *config.Paths, console io.Writer, logger *slog.Logger) *PresentStep {
	return &PresentStep{
		BaseStep: NewBaseStep(StepIDPresent, StepNamePresent, StepIDAnalyze),
		cfg:      cfg,
		paths:    paths,
		console:  console,
		logger:   infrastructure.WithComponent(logger, StepIDPresent),
	}
}

// Validate requires a date range
func (s *PresentStep) Validate(state *OperationState) error {
	return requireRange(state)
}

// Execute renders the analysis results. Without an analyze step in the run the
// observations are read back from the data directory.
func (s *PresentStep) Execute(ctx context.Context, state *OperationState) error {
	if state.Observations == nil {
		obsPath := s.paths.ObservationsCSVPath(state.Start, state.End)
		obs, err := report.LoadObservationsCSV(obsPath)
		if err != nil {
			return fmt.Errorf("load observations: %w", err)
		}
		profile, err := impact.Profile(obs, s.cfg.Analysis.Bucket)
		if err != nil {
			return err
		}
		state.Observations = obs
		state.Profile = profile
		s.logger.InfoContext(ctx, "loaded observations",
			slog.String("path", obsPath),
			slog.Int("observations", len(obs)))
	}

	reporter := report.NewReporter(s.paths, s.console, s.logger)
	artifacts, err := reporter.Write(ctx, state.Start, state.End, state.Observations, state.Profile)
	if err != nil {
		return err
	}
	state.Artifacts = artifacts

	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("workbook", artifacts.Workbook)
		st.SetMetadata("plot", artifacts.Plot)
	}
	return nil
}

// RegisterPipeline registers the three steps in pipeline order
func RegisterPipeline(registry *Registry, cfg *config.Config, paths *config.Paths, console io.Writer, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) error {
	steps := []Step{
		NewPrepareStep(cfg, paths, logger, metrics),
		NewAnalyzeStep(cfg, paths, logger, metrics),
		NewPresentStep(cfg, paths, console, logger),
	}
	for _, step := range steps {
		if err := registry.Register(step); err != nil {
			return err
		}
	}
	return nil
}

func requireRange(state *OperationState) error {
	if state.Start == "" || state.End == "" {
		return fmt.Errorf("start and end dates are required")
	}
	return nil
}
