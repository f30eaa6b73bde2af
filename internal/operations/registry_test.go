package operations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderStep is a minimal step for registry tests
type orderStep struct {
	BaseStep
}

func newOrderStep(id string, deps ...string) *orderStep {
	return &orderStep{BaseStep: NewBaseStep(id, id, deps)}
}

func (s *orderStep) Execute(ctx context.Context, state *OperationState) error {
	return nil
}

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newOrderStep(StepIDScan)))
	assert.True(t, registry.Has(StepIDScan))
	assert.Equal(t, 1, registry.Count())

	t.Run("duplicate", func(t *testing.T) {
		err := registry.Register(newOrderStep(StepIDScan))
		assert.Error(t, err)
	})

	t.Run("nil step", func(t *testing.T) {
		assert.Error(t, registry.Register(nil))
	})

	t.Run("empty id", func(t *testing.T) {
		assert.Error(t, registry.Register(newOrderStep("")))
	})
}

func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newOrderStep(StepIDScan)))

	require.NoError(t, registry.Unregister(StepIDScan))
	assert.False(t, registry.Has(StepIDScan))
	assert.Error(t, registry.Unregister(StepIDScan))
}

func TestRegistryGet(t *testing.T) {
	registry := NewRegistry()
	step := newOrderStep(StepIDScan)
	require.NoError(t, registry.Register(step))

	got, err := registry.Get(StepIDScan)
	require.NoError(t, err)
	assert.Equal(t, StepIDScan, got.ID())

	_, err = registry.Get("missing")
	assert.Error(t, err)
}

func TestRegistryDependencyOrder(t *testing.T) {
	registry := NewRegistry()

	// Register out of order; the resolver must still produce
	// scan, load, analyze, export.
	require.NoError(t, registry.Register(newOrderStep(StepIDExport, StepIDAnalyze)))
	require.NoError(t, registry.Register(newOrderStep(StepIDAnalyze, StepIDLoad)))
	require.NoError(t, registry.Register(newOrderStep(StepIDScan)))
	require.NoError(t, registry.Register(newOrderStep(StepIDLoad, StepIDScan)))

	ordered, err := registry.GetDependencyOrder()
	require.NoError(t, err)
	require.Len(t, ordered, 4)

	ids := make([]string, len(ordered))
	for i, step := range ordered {
		ids[i] = step.ID()
	}
	assert.Equal(t, []string{StepIDScan, StepIDLoad, StepIDAnalyze, StepIDExport}, ids)
}

func TestRegistryDependencyOrderTieBreak(t *testing.T) {
	registry := NewRegistry()

	// Two independent roots resolve in registration order
	require.NoError(t, registry.Register(newOrderStep("b")))
	require.NoError(t, registry.Register(newOrderStep("a")))

	ordered, err := registry.GetDependencyOrder()
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, "b", ordered[0].ID())
	assert.Equal(t, "a", ordered[1].ID())
}

func TestRegistryDependencyCycle(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newOrderStep("a", "b")))
	require.NoError(t, registry.Register(newOrderStep("b", "a")))

	_, err := registry.GetDependencyOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle detected")
}

func TestRegistryValidateDependencies(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newOrderStep(StepIDLoad, StepIDScan)))

	assert.Error(t, registry.ValidateDependencies(), "missing scan dependency")

	require.NoError(t, registry.Register(newOrderStep(StepIDScan)))
	assert.NoError(t, registry.ValidateDependencies())
}

func TestRegistryGetDependents(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newOrderStep(StepIDScan)))
	require.NoError(t, registry.Register(newOrderStep(StepIDLoad, StepIDScan)))
	require.NoError(t, registry.Register(newOrderStep(StepIDAnalyze, StepIDLoad)))

	dependents := registry.GetDependents(StepIDScan)
	require.Len(t, dependents, 1)
	assert.Equal(t, StepIDLoad, dependents[0].ID())

	assert.Empty(t, registry.GetDependents(StepIDAnalyze))
}

func TestRegistryClone(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newOrderStep(StepIDScan)))

	clone := registry.Clone()
	require.NoError(t, clone.Register(newOrderStep(StepIDLoad, StepIDScan)))

	assert.Equal(t, 1, registry.Count())
	assert.Equal(t, 2, clone.Count())
}

func TestRegistryListIDs(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newOrderStep(StepIDScan)))
	require.NoError(t, registry.Register(newOrderStep(StepIDLoad, StepIDScan)))

	assert.Equal(t, []string{StepIDScan, StepIDLoad}, registry.ListIDs())

	registry.Clear()
	assert.Zero(t, registry.Count())
}
