// Package app wires the components of one command line run.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, the YAML file, IMPACT_* variables and flags
//  2. Initialize logging and telemetry
//  3. Resolve and create the data, reports and logs directories
//  4. Register the pipeline steps with a manager
//
// # Usage
//
//	application, err := app.NewApplication(app.Options{ConfigPath: *configPath})
//	if err != nil {
//	    os.Exit(1)
//	}
//	defer application.Stop(context.Background())
//	err = application.Run(operations.StepIDPrepare)
package app
