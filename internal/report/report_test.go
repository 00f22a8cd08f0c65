package report

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"impactcli/internal/config"
	apperrors "impactcli/internal/errors"
	"impactcli/internal/impact"
	"impactcli/internal/shared/testutil"
)

var t0 = time.Date(2020, 11, 15, 0, 0, 0, 0, time.UTC)

func sampleObservations() []impact.Observation {
	nan := math.NaN()
	return []impact.Observation{
		{Timestamp: t0, Beta: 0.5, AvgDepth: 10, StdErr: 0.1, TValue: 5, PValue: 0.001, RSquared: 0.25, NObs: 180},
		{Timestamp: t0.Add(30 * time.Minute), Beta: nan, AvgDepth: 20, StdErr: nan, TValue: nan, PValue: nan, RSquared: nan},
		{Timestamp: t0.AddDate(0, 0, 1), Beta: 1.5, AvgDepth: 30, StdErr: 0.2, TValue: 7.5, PValue: 0.0001, RSquared: 0.5, NObs: 179},
	}
}

func sampleProfile(t *testing.T) []impact.ProfilePoint {
	t.Helper()
	profile, err := impact.Profile(sampleObservations(), 30*time.Minute)
	require.NoError(t, err)
	return profile
}

func TestSaveObservationsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "impact.csv")
	require.NoError(t, SaveObservationsCSV(sampleObservations(), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "timestamp,beta_coef,avg_depth,std_err,t_value,p_value,r_squared,n_obs", lines[0])
	assert.Equal(t, "2020-11-15 00:00:00,0.5,10,0.1,5,0.001,0.25,180", lines[1])
	assert.Equal(t, "2020-11-15 00:30:00,,20,,,,,0", lines[2])

	err = SaveObservationsCSV(nil, path)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInsufficientData))
}

func TestLoadObservationsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impact.csv")
	require.NoError(t, SaveObservationsCSV(sampleObservations(), path))

	obs, err := LoadObservationsCSV(path)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, t0, obs[0].Timestamp)
	assert.Equal(t, 0.5, obs[0].Beta)
	assert.Equal(t, 180, obs[0].NObs)
	assert.True(t, math.IsNaN(obs[1].Beta))
	assert.Equal(t, 20.0, obs[1].AvgDepth)

	_, err = LoadObservationsCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestSaveProfileCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.csv")
	require.NoError(t, SaveProfileCSV(sampleProfile(t), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 49)
	assert.Equal(t, "time,beta,depth,normalized_beta,normalized_depth", lines[0])
	assert.Equal(t, "00:00,1,20,1,1", lines[1])
	assert.Equal(t, "00:30,,20,,1", lines[2])
	assert.Equal(t, "23:30,,,,", lines[48])
}

func TestSaveWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impact.xlsx")
	require.NoError(t, SaveWorkbook(sampleObservations(), sampleProfile(t), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{CoefficientsSheet, ProfileSheet}, f.GetSheetList())

	rows, err := f.GetRows(CoefficientsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "beta_coef", rows[0][1])
	assert.Equal(t, "2020-11-15 00:00:00", rows[1][0])
	assert.Equal(t, "0.5", rows[1][1])
	assert.Equal(t, "", rows[2][1])
	assert.Equal(t, "180", rows[1][7])

	profileRows, err := f.GetRows(ProfileSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(profileRows), 3)
	assert.Equal(t, "normalized_depth", profileRows[0][4])
	assert.Equal(t, "00:00", profileRows[1][0])
}

func TestRenderProfilePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "profile.png")
	require.NoError(t, RenderProfilePlot(sampleProfile(t), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("\x89PNG\r\n\x1a\n")))

	err = RenderProfilePlot(nil, path)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInsufficientData))

	empty := []impact.ProfilePoint{{Slot: "00:00", NormalizedBeta: math.NaN(), NormalizedDepth: math.NaN()}}
	err = RenderProfilePlot(empty, path)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInsufficientData))
}

func TestSlotTicks(t *testing.T) {
	ticks := slotTicks(sampleProfile(t))
	require.Len(t, ticks, 48)
	assert.Equal(t, "00:00", ticks[0].Label)
	assert.Equal(t, "", ticks[1].Label)
	assert.Equal(t, "01:00", ticks[2].Label)
	assert.Equal(t, 47.0, ticks[47].Value)
}

func TestSummarize(t *testing.T) {
	s := Summarize("2020-11-15", "2020-11-16", sampleObservations(), sampleProfile(t))

	assert.Equal(t, 3, s.Buckets)
	assert.Equal(t, 2, s.FittedBuckets)
	assert.InDelta(t, 1.0, s.MeanBeta, 1e-12)
	assert.Equal(t, 0.5, s.MinBeta)
	assert.Equal(t, 1.5, s.MaxBeta)
	assert.InDelta(t, 20.0, s.MeanDepth, 1e-12)
	assert.InDelta(t, 1.0, s.Correlation, 1e-12)
	assert.Equal(t, "00:00", s.HighestSlot)
	assert.Equal(t, "00:00", s.LowestSlot)

	empty := Summarize("2020-11-15", "2020-11-16", nil, nil)
	assert.True(t, math.IsNaN(empty.MeanBeta))
	assert.True(t, math.IsNaN(empty.Correlation))
	assert.Empty(t, empty.HighestSlot)
}

func TestSummaryWriteTo(t *testing.T) {
	var buf bytes.Buffer
	s := Summarize("2020-11-15", "2020-11-16", sampleObservations(), sampleProfile(t))
	n, err := s.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), "Period:            2020-11-15 to 2020-11-16")
	assert.Contains(t, buf.String(), "Buckets:           3 (2 fitted)")
}

func TestPrintProfileTable(t *testing.T) {
	var buf bytes.Buffer
	PrintProfileTable(&buf, sampleProfile(t))

	out := buf.String()
	assert.Contains(t, out, "=== INTRADAY PROFILE ===")
	assert.Contains(t, out, "00:00 |     1.000000 |    20.0000 |      1.000 |       1.000")
	assert.Contains(t, out, "23:30")
}

func TestReporterWrite(t *testing.T) {
	dir := t.TempDir()
	logger, logs := testutil.NewTestLogger(t)
	var console bytes.Buffer

	r := NewReporter(&config.Paths{ReportsDir: dir}, &console, logger)
	artifacts, err := r.Write(context.Background(), "2020-11-15", "2020-11-16", sampleObservations(), sampleProfile(t))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "impact_2020-11-15_2020-11-16.csv"), artifacts.ObservationsCSV)
	for _, path := range []string{artifacts.ObservationsCSV, artifacts.ProfileCSV, artifacts.Workbook, artifacts.Plot, artifacts.Summary} {
		assert.FileExists(t, path)
	}
	assert.Contains(t, console.String(), "INTRADAY PROFILE")
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "reports written")
}
