package operations

import (
	"sync"
	"time"

	"impactcli/internal/impact"
	"impactcli/internal/orderflow"
	"impactcli/internal/preparation"
	"impactcli/internal/report"
)

// OperationStatus represents the overall run status
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// OperationState is the state of one run. Steps run one at a time, so the stage
// outputs below are written by one step and read by the ones after it.
type OperationState struct {
	mu sync.RWMutex

	ID        string
	Status    OperationStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	// Inclusive date range of the run, YYYY-MM-DD
	Start string
	End   string

	Steps map[string]*StepState

	// prepare
	Dataset *preparation.Dataset
	Bars    []orderflow.Bar
	Depths  []orderflow.DepthPoint

	// analyze
	Coefficients []impact.Coefficient
	Observations []impact.Observation
	Profile      []impact.ProfilePoint

	// present
	Artifacts report.Artifacts
}

// NewOperationState creates a pending run over [start, end]
func NewOperationState(id, start, end string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Start:     start,
		End:       end,
		Steps:     make(map[string]*StepState),
	}
}

// Begin marks the run as running
func (s *OperationState) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = OperationStatusRunning
	s.StartTime = time.Now()
}

// Complete marks the run as completed
func (s *OperationState) Complete() {
	s.finish(OperationStatusCompleted, nil)
}

// Fail marks the run as failed
func (s *OperationState) Fail(err error) {
	s.finish(OperationStatusFailed, err)
}

// Cancel marks the run as cancelled
func (s *OperationState) Cancel(err error) {
	s.finish(OperationStatusCancelled, err)
}

func (s *OperationState) finish(status OperationStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = status
	s.Error = err
}

// GetStatus returns the run status
func (s *OperationState) GetStatus() OperationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetStep returns the state of a specific Step
func (s *OperationState) GetStep(stepID string) *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Steps[stepID]
}

// SetStep records the state of a specific Step
func (s *OperationState) SetStep(stepID string, state *StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Steps[stepID] = state
}

// Duration returns the run duration so far
func (s *OperationState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}
