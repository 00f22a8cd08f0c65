package preparation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "impactcli/internal/errors"
	"impactcli/internal/infrastructure"
	"impactcli/internal/marketdata"
	"impactcli/internal/orderflow"
)

const DefaultWorkers = 4

// Options controls the resampling of one day
type Options struct {
	Interval    time.Duration
	DepthBucket time.Duration
	TickSize    float64
	Workers     int
}

// DefaultOptions resample to 10 second bars and 30 minute depth buckets
func DefaultOptions() Options {
	return Options{
		Interval:    10 * time.Second,
		DepthBucket: 30 * time.Minute,
		TickSize:    orderflow.DefaultTickSize,
		Workers:     DefaultWorkers,
	}
}

// Dataset is the output of the preparation stage
type Dataset struct {
	Start        string
	End          string
	Bars         []orderflow.Bar
	Depths       []orderflow.DepthPoint
	Prepared     []string
	Failed       []string
	Completeness orderflow.CompletenessReport
}

// dayResult is the outcome of one calendar day
type dayResult struct {
	date     string
	bars     []orderflow.Bar
	depths   []orderflow.DepthPoint
	quotes   int
	trades   int
	oneSided int
	err      error
}

// Preparer turns vendor quote and trade files into bars and depth series
type Preparer struct {
	store   *marketdata.Store
	opts    Options
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewPreparer creates a preparer. metrics may be nil.
func NewPreparer(store *marketdata.Store, opts Options, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	return &Preparer{
		store:   store,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Prepare processes every day from start to end inclusive. Days are loaded in
// parallel but concatenated in date order. A day that fails is logged and skipped;
// Prepare fails only when no day succeeds.
func (p *Preparer) Prepare(ctx context.Context, start, end string) (*Dataset, error) {
	began := time.Now()

	days, err := marketdata.DateRange(start, end)
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "starting data preparation",
		"start", start,
		"end", end,
		"days", len(days),
		"interval", p.opts.Interval.String(),
		"workers", p.opts.Workers,
	)

	results := make([]dayResult, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, day := range days {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.prepareDay(gctx, day)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("prepare days: %w", err)
	}

	ds := &Dataset{Start: start, End: end}
	for _, r := range results {
		if r.err != nil {
			ds.Failed = append(ds.Failed, r.date)
			p.logger.WarnContext(ctx, "day skipped",
				"date", r.date,
				"error", r.err,
			)
			p.countDay(ctx, "failed")
			continue
		}

		ds.Prepared = append(ds.Prepared, r.date)
		ds.Bars = append(ds.Bars, r.bars...)
		ds.Depths = append(ds.Depths, r.depths...)
		p.logger.InfoContext(ctx, "day prepared",
			"date", r.date,
			"quotes", r.quotes,
			"one_sided_quotes", r.oneSided,
			"trades", r.trades,
			"bars", len(r.bars),
		)
		p.countDay(ctx, "ok")
	}

	if len(ds.Prepared) == 0 {
		return nil, apperrors.NewInsufficientDataError(fmt.Sprintf("no day between %s and %s could be prepared", start, end))
	}

	ds.Completeness = orderflow.Completeness(ds.Bars, p.opts.Interval)
	logCompleteness(ctx, p.logger, ds.Completeness)

	p.logger.InfoContext(ctx, "data preparation completed",
		"duration", time.Since(began),
		"days_prepared", len(ds.Prepared),
		"days_failed", len(ds.Failed),
		"bars", len(ds.Bars),
		"depth_buckets", len(ds.Depths),
	)

	return ds, nil
}

func (p *Preparer) prepareDay(ctx context.Context, day string) dayResult {
	res := dayResult{date: day}

	data, err := p.store.LoadDay(day)
	if err != nil {
		res.err = err
		return res
	}
	quotes, trades := data.Quotes, data.Trades
	res.quotes, res.trades, res.oneSided = len(quotes), len(trades), data.OneSided

	if p.metrics != nil {
		p.metrics.QuotesLoaded.Add(ctx, int64(len(quotes)), infrastructure.StatusAttr("ok"))
		if data.OneSided > 0 {
			p.metrics.QuotesLoaded.Add(ctx, int64(data.OneSided), infrastructure.StatusAttr("one_sided"))
		}
		p.metrics.TradesLoaded.Add(ctx, int64(len(trades)))
	}

	if len(quotes) == 0 {
		res.err = apperrors.NewInsufficientDataError("no quotes").WithContext("date", day)
		return res
	}

	res.bars = orderflow.BuildBars(quotes, trades, p.opts.Interval, p.opts.TickSize)
	res.depths = orderflow.DepthSeries(quotes, p.opts.DepthBucket)

	p.logger.DebugContext(ctx, "day resampled",
		"date", day,
		"bars", len(res.bars),
		"depth_buckets", len(res.depths),
	)
	return res
}

func (p *Preparer) countDay(ctx context.Context, status string) {
	if p.metrics != nil {
		p.metrics.DaysPrepared.Add(ctx, 1, infrastructure.StatusAttr(status))
	}
}

// logCompleteness reports bars missing from the regular interval grid
func logCompleteness(ctx context.Context, logger *slog.Logger, r orderflow.CompletenessReport) {
	if r.Complete() {
		logger.InfoContext(ctx, "bar grid complete",
			"expected", r.Expected,
			"present", r.Present,
		)
		return
	}

	attrs := []any{
		"expected", r.Expected,
		"present", r.Present,
		"missing", len(r.Missing),
		"first_missing", r.Missing[0].Format(TimestampLayout),
	}
	logger.WarnContext(ctx, "bar grid incomplete", attrs...)
}
