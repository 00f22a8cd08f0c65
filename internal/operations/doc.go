// Package operations orchestrates the three research stages as steps of one run.
//
// Core components:
//
// Step: a single unit of work with an ID, a name and the IDs of the steps whose
// output it consumes. Steps exchange data through the OperationState.
//
// Registry: holds the registered steps and orders them topologically, keeping
// registration order between steps that do not depend on each other.
//
// Manager: runs the requested steps one after another. Each step gets a
// StepState, a trace span, log lines and a duration measurement.
//
// A step whose dependency is not part of the run reads that dependency's output
// from the files it writes, so the binaries can run stages separately:
//
//	registry := operations.NewRegistry()
//	operations.RegisterPipeline(registry, cfg, paths, os.Stdout, logger, telemetry.Metrics)
//
//	manager := operations.NewManager(registry, operations.NewConfig(), telemetry, logger)
//	resp, err := manager.Execute(ctx, operations.Request{
//		Start: "2020-11-15",
//		End:   "2020-11-30",
//		Steps: []string{operations.StepIDAnalyze, operations.StepIDPresent},
//	})
package operations
