package operations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStep runs fn and records the order of calls in a shared log
type fakeStep struct {
	BaseStep
	calls       *[]string
	fn          func(ctx context.Context, state *OperationState) error
	validateErr error
}

func newFakeStep(id string, calls *[]string, deps ...string) *fakeStep {
	return &fakeStep{BaseStep: NewBaseStep(id, "step "+id, deps...), calls: calls}
}

func (s *fakeStep) Validate(*OperationState) error {
	return s.validateErr
}

func (s *fakeStep) Execute(ctx context.Context, state *OperationState) error {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.ID())
	}
	if s.fn != nil {
		return s.fn(ctx, state)
	}
	return nil
}

func ids(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID()
	}
	return out
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newFakeStep("a", nil)))
	assert.Error(t, r.Register(newFakeStep("a", nil)))
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(newFakeStep("", nil)))

	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
	assert.Equal(t, 1, r.Count())

	step, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "step a", step.Name())

	_, err = r.Get("b")
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(err))
}

func TestRegistry_GetDependencyOrder(t *testing.T) {
	r := NewRegistry()
	// registered out of order on purpose
	require.NoError(t, r.Register(newFakeStep(StepIDPresent, nil, StepIDAnalyze)))
	require.NoError(t, r.Register(newFakeStep(StepIDAnalyze, nil, StepIDPrepare)))
	require.NoError(t, r.Register(newFakeStep(StepIDPrepare, nil)))
	require.NoError(t, r.Register(newFakeStep("audit", nil)))

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{StepIDPrepare, "audit", StepIDAnalyze, StepIDPresent}, ids(ordered))
	assert.Equal(t, []string{StepIDPresent, StepIDAnalyze, StepIDPrepare, "audit"}, r.ListIDs())
}

func TestRegistry_GetDependencyOrder_Errors(t *testing.T) {
	t.Run("missing dependency", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeStep(StepIDAnalyze, nil, StepIDPrepare)))
		_, err := r.GetDependencyOrder()
		assert.ErrorContains(t, err, "non-existent step prepare")
	})

	t.Run("cycle", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeStep("a", nil, "b")))
		require.NoError(t, r.Register(newFakeStep("b", nil, "a")))
		_, err := r.GetDependencyOrder()
		assert.ErrorContains(t, err, "cycle")
	})
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep(StepIDPrepare, nil)))
	require.NoError(t, r.Register(newFakeStep(StepIDAnalyze, nil, StepIDPrepare)))
	require.NoError(t, r.Register(newFakeStep(StepIDPresent, nil, StepIDAnalyze)))

	all, err := r.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{StepIDPrepare, StepIDAnalyze, StepIDPresent}, ids(all))

	subset, err := r.Resolve([]string{StepIDPresent, StepIDAnalyze})
	require.NoError(t, err)
	assert.Equal(t, []string{StepIDAnalyze, StepIDPresent}, ids(subset))

	_, err = r.Resolve([]string{"scrape"})
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(err))
}

func TestRegistry_Dependents(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep(StepIDPrepare, nil)))
	require.NoError(t, r.Register(newFakeStep(StepIDAnalyze, nil, StepIDPrepare)))
	require.NoError(t, r.Register(newFakeStep(StepIDPresent, nil, StepIDAnalyze)))

	assert.Equal(t, []string{StepIDAnalyze, StepIDPresent}, r.Dependents(StepIDPrepare))
	assert.Equal(t, []string{StepIDPresent}, r.Dependents(StepIDAnalyze))
	assert.Empty(t, r.Dependents(StepIDPresent))
}
