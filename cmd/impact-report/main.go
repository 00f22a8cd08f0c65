package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"impactcli/internal/app"
	"impactcli/internal/operations"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to config.yaml or configs/config.yaml)")
	start := flag.String("start", "", "first day to analyze, YYYY-MM-DD; must lie inside a prepared range")
	end := flag.String("end", "", "last day to analyze, YYYY-MM-DD")
	regressors := flag.String("regressors", "", "comma separated regressors; the first is the impact regressor (OFI, TFI)")
	lags := flag.Int("lags", -1, "maximum lag of the HAC covariance (default from config)")
	cov := flag.String("cov", "", "covariance type: HAC or nonrobust")
	flag.Parse()

	opts := app.Options{
		ConfigPath: *configPath,
		Start:      *start,
		End:        *end,
		Regressors: *regressors,
		Covariance: *cov,
	}
	if *lags >= 0 {
		opts.Lags = lags
	}

	application, err := app.NewApplication(opts)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	runErr := application.Run(operations.StepIDAnalyze, operations.StepIDPresent)
	if runErr != nil {
		application.Logger.Error("Impact report failed", "error", runErr)
	}

	if err := application.Stop(context.Background()); err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("Shutdown failed", "error", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
