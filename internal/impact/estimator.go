package impact

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	apperrors "impactcli/internal/errors"
	"impactcli/internal/infrastructure"
	"impactcli/internal/orderflow"
	"impactcli/internal/regression"
)

// ResponseName is the regressand of every bucket regression
const ResponseName = "delta_midprice"

// Options configures the per-bucket regressions
type Options struct {
	Bucket     time.Duration
	Regressors []string
	Regression regression.Options
}

// DefaultOptions regress the mid price change on OFI in 30 minute buckets with HAC errors
func DefaultOptions() Options {
	return Options{
		Bucket:     30 * time.Minute,
		Regressors: []string{"OFI"},
		Regression: regression.DefaultOptions(),
	}
}

// ImpactRegressor is the regressor whose slope is reported as beta
func (o Options) ImpactRegressor() string {
	if len(o.Regressors) == 0 {
		return "OFI"
	}
	return o.Regressors[0]
}

// Coefficient is the fitted price impact of one bucket. A bucket that could not be
// fitted has NaN statistics and zero NObs.
type Coefficient struct {
	Timestamp time.Time
	Beta      float64
	StdErr    float64
	TValue    float64
	PValue    float64
	Intercept float64
	RSquared  float64
	NObs      int
	Params    map[string]float64
}

func unfitted(ts time.Time) Coefficient {
	nan := math.NaN()
	return Coefficient{
		Timestamp: ts,
		Beta:      nan,
		StdErr:    nan,
		TValue:    nan,
		PValue:    nan,
		Intercept: nan,
		RSquared:  nan,
	}
}

// Estimator fits the price impact coefficient bucket by bucket
type Estimator struct {
	opts    Options
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewEstimator creates an estimator. metrics may be nil.
func NewEstimator(opts Options, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{opts: opts, logger: logger, metrics: metrics}
}

// Coefficients groups time-ordered bars into epoch-aligned buckets and regresses the
// mid price change on the configured regressors in each. Every bucket between the
// first and last bar is returned, including those that could not be fitted.
func (e *Estimator) Coefficients(ctx context.Context, bars []orderflow.Bar) ([]Coefficient, error) {
	start := time.Now()

	if err := e.validate(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, apperrors.NewInsufficientDataError("no bars to analyze")
	}

	e.logger.InfoContext(ctx, "starting impact estimation",
		"bars", len(bars),
		"bucket", e.opts.Bucket.String(),
		"regressors", e.opts.Regressors,
		"cov_type", string(e.opts.Regression.CovType),
		"lags", e.opts.Regression.MaxLags,
	)

	first := orderflow.BinStart(bars[0].Timestamp, e.opts.Bucket)
	last := orderflow.BinStart(bars[len(bars)-1].Timestamp, e.opts.Bucket)

	var coefs []Coefficient
	failed := 0
	i := 0
	for bucket := first; !bucket.After(last); bucket = bucket.Add(e.opts.Bucket) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("impact estimation cancelled: %w", err)
		}

		end := bucket.Add(e.opts.Bucket)
		j := i
		for j < len(bars) && bars[j].Timestamp.Before(end) {
			j++
		}

		bucketBars := bars[i:j]
		i = j

		coef, err := e.fitBucket(bucket, bucketBars)
		if err != nil {
			failed++
			e.logger.WarnContext(ctx, "bucket not fitted",
				"bucket", bucket.Format(time.DateTime),
				"bars", len(bucketBars),
				"error", err,
			)
			e.countBucket(ctx, "failed")
		} else {
			e.countBucket(ctx, "ok")
		}
		coefs = append(coefs, coef)
	}

	e.logger.InfoContext(ctx, "impact estimation completed",
		"duration", time.Since(start),
		"buckets", len(coefs),
		"buckets_failed", failed,
	)
	return coefs, nil
}

func (e *Estimator) validate() error {
	if e.opts.Bucket <= 0 {
		return apperrors.NewValidationError("bucket must be positive")
	}
	if len(e.opts.Regressors) == 0 {
		return apperrors.NewValidationError("at least one regressor is required")
	}
	for _, name := range e.opts.Regressors {
		if name == ResponseName {
			return apperrors.NewValidationError(fmt.Sprintf("%s cannot be a regressor", ResponseName))
		}
		if _, ok := (orderflow.Bar{}).Value(name); !ok {
			return apperrors.NewValidationError(fmt.Sprintf("unknown regressor %q", name))
		}
	}
	return nil
}

// fitBucket always returns a coefficient for the bucket, NaN when the fit fails
func (e *Estimator) fitBucket(bucket time.Time, bars []orderflow.Bar) (Coefficient, error) {
	y := make([]float64, len(bars))
	xs := make([][]float64, len(e.opts.Regressors))
	for j := range xs {
		xs[j] = make([]float64, len(bars))
	}
	for i, b := range bars {
		y[i] = b.DeltaMidPrice
		for j, name := range e.opts.Regressors {
			xs[j][i], _ = b.Value(name)
		}
	}

	res, err := regression.Fit(y, xs, e.opts.Regressors, e.opts.Regression)
	if err != nil {
		return unfitted(bucket), err
	}

	beta, se, t, p, _ := res.Slope(e.opts.ImpactRegressor())
	return Coefficient{
		Timestamp: bucket,
		Beta:      beta,
		StdErr:    se,
		TValue:    t,
		PValue:    p,
		Intercept: res.Params[regression.InterceptName],
		RSquared:  res.RSquared,
		NObs:      res.NObs,
		Params:    res.Params,
	}, nil
}

func (e *Estimator) countBucket(ctx context.Context, status string) {
	if e.metrics != nil {
		e.metrics.BucketsFitted.Add(ctx, 1, infrastructure.StatusAttr(status))
	}
}
