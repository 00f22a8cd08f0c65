package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"impactcli/internal/config"
	"impactcli/internal/impact"
)

// Artifacts lists the files written by one run
type Artifacts struct {
	ObservationsCSV string
	ProfileCSV      string
	Workbook        string
	Plot            string
	Summary         string
}

// Reporter writes every presentation artifact into the reports directory
type Reporter struct {
	paths   *config.Paths
	console io.Writer
	logger  *slog.Logger
}

// NewReporter creates a reporter. console may be nil to skip the table.
func NewReporter(paths *config.Paths, console io.Writer, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{paths: paths, console: console, logger: logger}
}

// PathsFor names the artifacts of the given date range
func (r *Reporter) PathsFor(start, end string) Artifacts {
	suffix := fmt.Sprintf("%s_%s", start, end)
	return Artifacts{
		ObservationsCSV: r.paths.GetReportPath("impact_" + suffix + ".csv"),
		ProfileCSV:      r.paths.GetReportPath("profile_" + suffix + ".csv"),
		Workbook:        r.paths.GetReportPath("impact_" + suffix + ".xlsx"),
		Plot:            r.paths.GetReportPath("profile_" + suffix + ".png"),
		Summary:         r.paths.GetReportPath("summary_" + suffix + ".txt"),
	}
}

// Write produces the CSV files, the workbook, the plot and the summary
func (r *Reporter) Write(ctx context.Context, start, end string, obs []impact.Observation, profile []impact.ProfilePoint) (Artifacts, error) {
	began := time.Now()
	a := r.PathsFor(start, end)

	if err := SaveObservationsCSV(obs, a.ObservationsCSV); err != nil {
		return a, fmt.Errorf("save observations: %w", err)
	}
	if err := SaveProfileCSV(profile, a.ProfileCSV); err != nil {
		return a, fmt.Errorf("save profile: %w", err)
	}
	if err := SaveWorkbook(obs, profile, a.Workbook); err != nil {
		return a, fmt.Errorf("save workbook: %w", err)
	}
	if err := RenderProfilePlot(profile, a.Plot); err != nil {
		return a, fmt.Errorf("render plot: %w", err)
	}

	summary := Summarize(start, end, obs, profile)
	if err := SaveSummaryReport(summary, a.Summary); err != nil {
		return a, fmt.Errorf("save summary: %w", err)
	}

	if r.console != nil {
		PrintProfileTable(r.console, profile)
		_, _ = summary.WriteTo(r.console)
	}

	r.logger.InfoContext(ctx, "reports written",
		"dir", r.paths.ReportsDir,
		"observations", len(obs),
		"slots", len(profile),
		"mean_beta", summary.MeanBeta,
		"duration", time.Since(began),
	)
	return a, nil
}
