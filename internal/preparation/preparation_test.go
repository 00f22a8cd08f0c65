package preparation

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactcli/internal/config"
	apperrors "impactcli/internal/errors"
	"impactcli/internal/infrastructure"
	"impactcli/internal/marketdata"
	"impactcli/internal/orderflow"
	"impactcli/internal/shared/testutil"
)

func writeDay(t *testing.T, marketDir, date string) time.Time {
	t.Helper()
	day, err := time.Parse(marketdata.DayLayout, date)
	require.NoError(t, err)

	testutil.WriteMarketDay(t, marketDir, day,
		[]testutil.QuoteRow{
			{At: day.Add(1 * time.Second), BidPrice: 100.00, BidAmount: 2, AskPrice: 100.01, AskAmount: 1},
			{At: day.Add(2 * time.Second), BidPrice: 100.00, BidAmount: 3, AskPrice: 100.01, AskAmount: 1},
			{At: day.Add(12 * time.Second), BidPrice: 100.01, BidAmount: 5, AskPrice: 100.02, AskAmount: 4},
		},
		[]testutil.TradeRow{
			{At: day.Add(5 * time.Second), Side: "buy", Price: 100.01, Amount: 0.5},
			{At: day.Add(14 * time.Second), Side: "sell", Price: 100.01, Amount: 0.25},
		},
	)
	return day
}

func newTestPreparer(t *testing.T, workers int, metrics *infrastructure.PipelineMetrics) (*Preparer, *testutil.BufferedSlogHandler, string) {
	t.Helper()
	raw := t.TempDir()
	logger, logs := testutil.NewTestLogger(t)
	opts := DefaultOptions()
	opts.Workers = workers
	store := marketdata.NewStore(raw, "binance-futures", "BTCUSDT")
	return NewPreparer(store, opts, logger, metrics), logs, store.Dir
}

func TestPrepare(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("workers", func(t *testing.T) {
			p, logs, dir := newTestPreparer(t, workers, nil)
			first := writeDay(t, dir, "2020-11-15")
			third := writeDay(t, dir, "2020-11-17")

			ds, err := p.Prepare(context.Background(), "2020-11-15", "2020-11-17")
			require.NoError(t, err)

			assert.Equal(t, []string{"2020-11-15", "2020-11-17"}, ds.Prepared)
			assert.Equal(t, []string{"2020-11-16"}, ds.Failed)

			require.Len(t, ds.Bars, 4)
			assert.Equal(t, first, ds.Bars[0].Timestamp)
			assert.Equal(t, first.Add(10*time.Second), ds.Bars[1].Timestamp)
			assert.Equal(t, third, ds.Bars[2].Timestamp)
			assert.Equal(t, 1.0, ds.Bars[0].OFI)
			assert.Equal(t, 0.5, ds.Bars[0].TFI)
			assert.Equal(t, -0.25, ds.Bars[1].TFI)

			require.Len(t, ds.Depths, 2)
			assert.Equal(t, first, ds.Depths[0].Timestamp)
			assert.Equal(t, third, ds.Depths[1].Timestamp)

			assert.False(t, ds.Completeness.Complete())
			testutil.AssertLogContains(t, logs, slog.LevelInfo, "day prepared")
			testutil.AssertLogContains(t, logs, slog.LevelWarn, "day skipped")
			testutil.AssertLogAttr(t, logs, "date", "2020-11-16")
			testutil.AssertLogContains(t, logs, slog.LevelWarn, "bar grid incomplete")
		})
	}
}

func TestPrepare_AllDaysFail(t *testing.T) {
	p, _, _ := newTestPreparer(t, 2, nil)

	_, err := p.Prepare(context.Background(), "2020-11-15", "2020-11-16")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInsufficientData))
}

func TestPrepare_InvalidRange(t *testing.T) {
	p, _, _ := newTestPreparer(t, 1, nil)

	_, err := p.Prepare(context.Background(), "2020-11-16", "2020-11-15")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestPrepare_EmptyQuotesDayIsSkipped(t *testing.T) {
	p, logs, dir := newTestPreparer(t, 1, nil)
	writeDay(t, dir, "2020-11-15")
	day := time.Date(2020, 11, 16, 0, 0, 0, 0, time.UTC)
	testutil.WriteMarketDay(t, dir, day, nil, nil)

	ds, err := p.Prepare(context.Background(), "2020-11-15", "2020-11-16")
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-11-16"}, ds.Failed)
	assert.True(t, ds.Completeness.Complete())
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "bar grid complete")
}

func TestPrepare_OneSidedQuotesAreDropped(t *testing.T) {
	p, logs, dir := newTestPreparer(t, 1, nil)
	day := time.Date(2020, 11, 15, 0, 0, 0, 0, time.UTC)

	quotes := testutil.QuotesCSV(
		testutil.QuoteRow{At: day.Add(1 * time.Second), BidPrice: 100.00, BidAmount: 2, AskPrice: 100.01, AskAmount: 1},
		testutil.QuoteRow{At: day.Add(2 * time.Second), BidPrice: 100.00, BidAmount: 3, AskPrice: 100.01, AskAmount: 1},
	) + "binance-futures,BTCUSDT,1605398403000000,1605398403000000,,,100.00,3\n"
	testutil.WriteGzip(t, filepath.Join(dir, "quotes", "2020-11-15.csv.gz"), quotes)
	testutil.WriteGzip(t, filepath.Join(dir, "trades", "2020-11-15.csv.gz"), testutil.TradesCSV())

	ds, err := p.Prepare(context.Background(), "2020-11-15", "2020-11-15")
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-11-15"}, ds.Prepared)
	require.Len(t, ds.Bars, 1)
	assert.Equal(t, 1.0, ds.Bars[0].OFI)
	testutil.AssertLogAttr(t, logs, "one_sided_quotes", int64(1))
}

func TestPrepare_CancelledContext(t *testing.T) {
	p, _, dir := newTestPreparer(t, 1, nil)
	writeDay(t, dir, "2020-11-15")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Prepare(ctx, "2020-11-15", "2020-11-15")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrepare_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	tel, err := infrastructure.InitializeTelemetry(ctx, config.TelemetryConfig{EnableMetrics: true}, "test", slog.Default())
	require.NoError(t, err)

	p, _, dir := newTestPreparer(t, 2, tel.Metrics)
	writeDay(t, dir, "2020-11-15")

	_, err = p.Prepare(ctx, "2020-11-15", "2020-11-16")
	require.NoError(t, err)

	promFile := filepath.Join(t.TempDir(), "impact.prom")
	require.NoError(t, tel.WriteMetrics(promFile))
	content, err := os.ReadFile(promFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `impact_days_prepared_total{`)
	assert.Contains(t, string(content), `status="ok"`)
	assert.Contains(t, string(content), `status="failed"`)
	assert.Contains(t, string(content), "impact_quotes_loaded_total")
	assert.Contains(t, string(content), "impact_trades_loaded_total")
	require.NoError(t, tel.Shutdown(ctx))
}

func TestBarsRoundTrip(t *testing.T) {
	ts := time.Date(2020, 11, 15, 23, 59, 50, 0, time.UTC)
	bars := []orderflow.Bar{
		{Timestamp: ts, DeltaMidPrice: -1.5, OFI: 12.25, TFI: math.NaN()},
		{Timestamp: ts.Add(10 * time.Second), DeltaMidPrice: math.NaN(), OFI: math.NaN(), TFI: 0.003},
	}
	path := filepath.Join(t.TempDir(), "data", "2020-11-15_2020-11-16.csv")

	require.NoError(t, SaveBars(bars, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,delta_midprice,OFI,TFI\n"+
		"2020-11-15 23:59:50,-1.5,12.25,\n"+
		"2020-11-16 00:00:00,,,0.003\n", string(content))

	loaded, err := LoadBars(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, ts, loaded[0].Timestamp)
	assert.Equal(t, 12.25, loaded[0].OFI)
	assert.True(t, math.IsNaN(loaded[0].TFI))
	assert.True(t, math.IsNaN(loaded[1].DeltaMidPrice))
}

func TestDepthsRoundTrip(t *testing.T) {
	ts := time.Date(2020, 11, 15, 0, 30, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "avg_depths.csv")

	require.NoError(t, SaveDepths([]orderflow.DepthPoint{{Timestamp: ts, AvgDepth: 2}, {Timestamp: ts.Add(30 * time.Minute), AvgDepth: math.NaN()}}, path))

	depths, err := LoadDepths(path)
	require.NoError(t, err)
	require.Len(t, depths, 2)
	assert.Equal(t, 2.0, depths[0].AvgDepth)
	assert.True(t, math.IsNaN(depths[1].AvgDepth))
}

func TestLoadBars_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadBars(filepath.Join(dir, "missing.csv"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	wrongHeader := filepath.Join(dir, "wrong.csv")
	require.NoError(t, os.WriteFile(wrongHeader, []byte("time,a,b,c\n"), 0644))
	_, err = LoadBars(wrongHeader)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))

	badValue := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(badValue, []byte("timestamp,delta_midprice,OFI,TFI\n2020-11-15 00:00:00,x,1,1\n"), 0644))
	_, err = LoadBars(badValue)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse line 2")
}
