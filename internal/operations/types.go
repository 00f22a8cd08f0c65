package operations

import (
	"time"
)

// Step identifiers
const (
	StepIDPrepare = "prepare"
	StepIDAnalyze = "analyze"
	StepIDPresent = "present"
)

// Step names
const (
	StepNamePrepare = "Data Preparation"
	StepNameAnalyze = "Impact Analysis"
	StepNamePresent = "Presentation"
)

// Default timeouts
const (
	DefaultStepTimeout    = 2 * time.Hour
	DefaultPrepareTimeout = 6 * time.Hour
	DefaultAnalyzeTimeout = time.Hour
	DefaultPresentTimeout = 10 * time.Minute
)

// Request selects the date range and the steps of one run
type Request struct {
	ID    string
	Start string
	End   string
	// Steps lists step IDs to run. Empty runs every registered step.
	Steps []string
}

// Response summarises a finished run
type Response struct {
	ID       string
	Status   OperationStatus
	Duration time.Duration
	Steps    map[string]*StepState
	Error    string
}
