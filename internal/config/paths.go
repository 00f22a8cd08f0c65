package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "impactcli/internal/errors"
)

// Paths contains all the application paths
// This is the single source of truth for every file the binaries read or write
type Paths struct {
	RawDir     string
	DataDir    string
	ReportsDir string
	LogsDir    string
}

// ResolvePaths turns the configured directories into absolute paths.
// Relative paths are resolved against the current working directory.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	resolve := func(name, dir string) (string, error) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolve %s %q: %w", name, dir, err)
		}
		return abs, nil
	}

	raw, err := resolve("raw dir", cfg.RawDir)
	if err != nil {
		return nil, err
	}
	data, err := resolve("data dir", cfg.DataDir)
	if err != nil {
		return nil, err
	}
	reports, err := resolve("reports dir", cfg.ReportsDir)
	if err != nil {
		return nil, err
	}
	logs, err := resolve("logs dir", cfg.LogsDir)
	if err != nil {
		return nil, err
	}

	return &Paths{
		RawDir:     raw,
		DataDir:    data,
		ReportsDir: reports,
		LogsDir:    logs,
	}, nil
}

// EnsureDirectories creates every output directory. The raw directory is input only.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MarketDir returns the vendor directory of one exchange/symbol pair
func (p *Paths) MarketDir(exchange, symbol string) string {
	return filepath.Join(p.RawDir, exchange, symbol)
}

// BarsCSVPath returns the prepared bars file for a date range
func (p *Paths) BarsCSVPath(start, end string) string {
	return filepath.Join(p.DataDir, fmt.Sprintf("%s_%s.csv", start, end))
}

// DepthsCSVPath returns the prepared average depth file for a date range
func (p *Paths) DepthsCSVPath(start, end string) string {
	return filepath.Join(p.DataDir, fmt.Sprintf("avg_depths-%s_%s.csv", start, end))
}

// ObservationsCSVPath returns the analysis output (beta and depth per bucket) for a date range
func (p *Paths) ObservationsCSVPath(start, end string) string {
	return filepath.Join(p.DataDir, fmt.Sprintf("impact-%s_%s.csv", start, end))
}

// GetReportPath returns the full path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// FindPreparedRange returns the date range of a prepared data set, bars and depths
// both present, that covers start through end. An exact match wins, then the
// narrowest covering range, then the most recent one.
func (p *Paths) FindPreparedRange(start, end string) (string, string, error) {
	if p.hasPrepared(start, end) {
		return start, end, nil
	}

	entries, err := os.ReadDir(p.DataDir)
	if err != nil && !os.IsNotExist(err) {
		return "", "", apperrors.NewStorageError("list prepared data", err).WithContext("dir", p.DataDir)
	}

	var bestStart, bestEnd string
	var bestSpan time.Duration
	for _, entry := range entries {
		from, to, ok := parsePreparedName(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		s, e := from.Format(DateLayout), to.Format(DateLayout)
		if s > start || e < end || !p.hasPrepared(s, e) {
			continue
		}
		span := to.Sub(from)
		if bestStart == "" || span < bestSpan || (span == bestSpan && s > bestStart) {
			bestStart, bestEnd, bestSpan = s, e, span
		}
	}

	if bestStart == "" {
		return "", "", apperrors.NewNotFoundError(fmt.Sprintf("prepared data covering %s to %s", start, end), nil).
			WithContext("dir", p.DataDir)
	}
	return bestStart, bestEnd, nil
}

func (p *Paths) hasPrepared(start, end string) bool {
	for _, path := range []string{p.BarsCSVPath(start, end), p.DepthsCSVPath(start, end)} {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// parsePreparedName recognises bars file names of the form <start>_<end>.csv
func parsePreparedName(name string) (time.Time, time.Time, bool) {
	base, ok := strings.CutSuffix(name, ".csv")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	first, last, ok := strings.Cut(base, "_")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	from, err := time.Parse(DateLayout, first)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(DateLayout, last)
	if err != nil || to.Before(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("Resolved paths",
		slog.String("raw_dir", p.RawDir),
		slog.String("data_dir", p.DataDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("logs_dir", p.LogsDir))
}
