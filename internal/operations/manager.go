package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"impactcli/internal/infrastructure"
)

// Manager orchestrates the execution of registered steps
type Manager struct {
	registry *Registry
	config   *Config
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.PipelineMetrics
}

// NewManager creates a manager. telemetry may be nil, in which case spans and
// measurements are dropped.
func NewManager(registry *Registry, config *Config, telemetry *infrastructure.Telemetry, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		registry: registry,
		config:   config,
		logger:   logger,
		tracer:   tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName),
	}
	if telemetry != nil {
		m.tracer = telemetry.Tracer
		m.metrics = telemetry.Metrics
	}
	return m
}

// Registry returns the registry holding the steps
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Execute runs the requested steps in dependency order
func (m *Manager) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.ID == "" {
		req.ID = "operation-" + infrastructure.GetRunID(infrastructure.EnsureRunID(ctx))
	}

	state := NewOperationState(req.ID, req.Start, req.End)

	steps, err := m.registry.Resolve(req.Steps)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to resolve steps",
			slog.String("operation_id", req.ID),
			slog.Any("requested", req.Steps),
			slog.String("error", err.Error()))
		state.Fail(err)
		return m.createResponse(state), err
	}

	ids := make([]string, len(steps))
	for i, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
		ids[i] = step.ID()
	}

	ctx, span := m.tracer.Start(ctx, "operation",
		trace.WithAttributes(
			attribute.String("operation.id", req.ID),
			attribute.String("operation.start", req.Start),
			attribute.String("operation.end", req.End),
			attribute.StringSlice("operation.steps", ids),
		))
	defer span.End()

	state.Begin()
	m.logger.InfoContext(ctx, "operation started",
		slog.String("operation_id", req.ID),
		slog.Any("steps", ids),
		slog.String("start_date", req.Start),
		slog.String("end_date", req.End))

	err = m.executeSequential(ctx, state, steps)
	if err != nil {
		if GetErrorType(err) == ErrorTypeCancellation {
			state.Cancel(err)
		} else {
			state.Fail(err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.ErrorContext(ctx, "operation failed",
			slog.String("operation_id", req.ID),
			slog.Duration("duration", state.Duration()),
			slog.String("error", err.Error()))
	} else {
		state.Complete()
		span.SetStatus(codes.Ok, "")
		m.logger.InfoContext(ctx, "operation completed",
			slog.String("operation_id", req.ID),
			slog.Duration("duration", state.Duration()))
	}

	return m.createResponse(state), err
}

// executeSequential executes steps one by one and returns the first failure
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	var firstErr error

	for i, step := range steps {
		stepState := state.GetStep(step.ID())
		if stepState.GetStatus() == StepStatusSkipped {
			m.logger.InfoContext(ctx, "step skipped",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("reason", stepState.Message))
			continue
		}

		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "operation cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			for _, rest := range steps[i:] {
				if st := state.GetStep(rest.ID()); st.GetStatus() == StepStatusPending {
					st.Skip("operation cancelled")
				}
			}
			return NewCancellationError(step.ID(), err)
		}

		if err := m.checkDependencies(state, step); err != nil {
			stepState.Skip(err.Error())
			m.logger.WarnContext(ctx, "dependencies not met",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		m.logger.InfoContext(ctx, "executing step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			m.skipDependentSteps(state, step.ID())
			if !m.config.ContinueOnError {
				for _, rest := range steps[i+1:] {
					if st := state.GetStep(rest.ID()); st.GetStatus() == StepStatusPending {
						st.Skip(fmt.Sprintf("previous step %s failed", step.ID()))
					}
				}
				return err
			}
			m.logger.WarnContext(ctx, "step failed, continuing",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// executeStep validates and runs one step inside its own span and timeout
func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	id := step.ID()
	stepState := state.GetStep(id)

	ctx, span := m.tracer.Start(ctx, "step."+id,
		trace.WithAttributes(
			attribute.String("step.id", id),
			attribute.String("step.name", step.Name()),
		))
	defer span.End()

	if err := step.Validate(state); err != nil {
		verr := NewValidationError(id, err)
		stepState.Fail(verr)
		span.RecordError(verr)
		span.SetStatus(codes.Error, verr.Error())
		m.logger.ErrorContext(ctx, "step validation failed",
			slog.String("operation_id", state.ID),
			slog.String("step", id),
			slog.String("error", err.Error()))
		return verr
	}

	timeout := m.config.GetStepTimeout(id)
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stepState.Start()
	began := time.Now()
	err := step.Execute(stepCtx, state)
	duration := time.Since(began)

	if err == nil {
		stepState.Complete()
		span.SetStatus(codes.Ok, "")
		m.recordDuration(ctx, id, "ok", duration)
		m.logger.InfoContext(ctx, "step completed",
			slog.String("operation_id", state.ID),
			slog.String("step", id),
			slog.Duration("duration", duration))
		return nil
	}

	switch {
	case ctx.Err() != nil:
		err = NewCancellationError(id, err)
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded):
		err = NewTimeoutError(id, timeout.String(), err)
	default:
		err = NewExecutionError(id, err)
	}

	stepState.Fail(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	m.recordDuration(ctx, id, "failed", duration)
	m.logger.ErrorContext(ctx, "step failed",
		slog.String("operation_id", state.ID),
		slog.String("step", id),
		slog.Duration("duration", duration),
		slog.String("error", err.Error()))
	return err
}

// checkDependencies requires every dependency that is part of this run to have
// completed. A dependency outside the run is read from its files by the step.
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.Dependencies() {
		depState := state.GetStep(dep)
		if depState == nil {
			continue
		}
		if depState.GetStatus() != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep)
		}
	}
	return nil
}

// skipDependentSteps marks every pending step that depends on the failed one as skipped
func (m *Manager) skipDependentSteps(state *OperationState, failedID string) {
	for _, id := range m.registry.Dependents(failedID) {
		if st := state.GetStep(id); st != nil && st.GetStatus() == StepStatusPending {
			st.Skip(fmt.Sprintf("dependency %s failed", failedID))
		}
	}
}

func (m *Manager) recordDuration(ctx context.Context, stepID, status string, d time.Duration) {
	if m.metrics == nil {
		return
	}
	m.metrics.StepDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("step", stepID), attribute.String("status", status)))
}

// createResponse creates a response from state
func (m *Manager) createResponse(state *OperationState) *Response {
	state.mu.RLock()
	steps := make(map[string]*StepState, len(state.Steps))
	for id, st := range state.Steps {
		steps[id] = st
	}
	stateErr := state.Error
	state.mu.RUnlock()

	resp := &Response{
		ID:       state.ID,
		Status:   state.GetStatus(),
		Duration: state.Duration(),
		Steps:    steps,
	}
	if stateErr != nil {
		resp.Error = stateErr.Error()
	}
	return resp
}
