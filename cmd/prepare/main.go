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
	start := flag.String("start", "", "first day to prepare, YYYY-MM-DD")
	end := flag.String("end", "", "last day to prepare, YYYY-MM-DD")
	flag.Parse()

	application, err := app.NewApplication(app.Options{
		ConfigPath: *configPath,
		Start:      *start,
		End:        *end,
	})
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	runErr := application.Run(operations.StepIDPrepare)
	if runErr != nil {
		application.Logger.Error("Data preparation failed", "error", runErr)
	} else {
		application.Logger.Info("Prepared data written",
			"bars", application.Paths.BarsCSVPath(application.Config.Preparation.StartDate, application.Config.Preparation.EndDate),
			"depths", application.Paths.DepthsCSVPath(application.Config.Preparation.StartDate, application.Config.Preparation.EndDate))
	}

	if err := application.Stop(context.Background()); err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("Shutdown failed", "error", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
