package operations

import (
	"time"
)

// Config represents the run configuration of the Manager
type Config struct {
	// Step-specific timeouts
	StepTimeouts map[string]time.Duration

	// Whether to run later steps after a failure. Steps that depend on the
	// failed one are skipped either way.
	ContinueOnError bool
}

// NewConfig returns the default configuration
func NewConfig() *Config {
	return &Config{
		StepTimeouts: map[string]time.Duration{
			StepIDPrepare: DefaultPrepareTimeout,
			StepIDAnalyze: DefaultAnalyzeTimeout,
			StepIDPresent: DefaultPresentTimeout,
		},
	}
}

// GetStepTimeout returns the timeout for a specific Step
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok && timeout > 0 {
		return timeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific Step
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}
