package operations

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "groutflow/internal/errors"
)

func TestOperationErrorFormat(t *testing.T) {
	withStep := NewValidationError(StepIDScan, "logs directory does not exist")
	assert.Equal(t, "[validation] scan: logs directory does not exist", withStep.Error())

	withoutStep := &OperationError{Type: ErrorTypeConflict, Message: "an analysis run is already in progress"}
	assert.Equal(t, "[conflict] an analysis run is already in progress", withoutStep.Error())

	var nilErr *OperationError
	assert.Equal(t, "unknown operation error", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
}

func TestErrorConstructors(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		err := NewValidationError(StepIDLoad, "no input files in state")
		assert.Equal(t, ErrorTypeValidation, err.Type)
		assert.Equal(t, StepIDLoad, err.Step)
		assert.False(t, err.Retryable)
	})

	t.Run("dependency", func(t *testing.T) {
		err := NewDependencyError(StepIDAnalyze, StepIDLoad, "required step did not complete")
		assert.Equal(t, ErrorTypeDependency, err.Type)
		assert.Equal(t, StepIDLoad, err.Context["depends_on"])
		assert.False(t, err.Retryable)
	})

	t.Run("execution", func(t *testing.T) {
		cause := fmt.Errorf("read A12_S1.xlsx: permission denied")
		err := NewExecutionError(StepIDLoad, cause, true)
		assert.Equal(t, ErrorTypeExecution, err.Type)
		assert.True(t, err.Retryable)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("timeout", func(t *testing.T) {
		err := NewTimeoutError(StepIDExport, "5m0s")
		assert.Equal(t, ErrorTypeTimeout, err.Type)
		assert.Contains(t, err.Message, "5m0s")
		assert.Equal(t, "5m0s", err.Context["timeout"])
		assert.True(t, err.Retryable)
	})

	t.Run("cancellation", func(t *testing.T) {
		err := NewCancellationError(StepIDAnalyze)
		assert.Equal(t, ErrorTypeCancellation, err.Type)
		assert.False(t, err.Retryable)
	})

	t.Run("fatal", func(t *testing.T) {
		cause := errors.New("registry is empty")
		err := NewFatalError("no steps registered", cause)
		assert.Equal(t, ErrorTypeFatal, err.Type)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestNewConflictError(t *testing.T) {
	err := NewConflictError("op-123", apperrors.ErrAnalysisRunning)

	assert.Equal(t, ErrorTypeConflict, err.Type)
	assert.Equal(t, "an analysis run is already in progress", err.Message)
	assert.Equal(t, "op-123", err.Context["active_operation_id"])
	assert.False(t, err.Retryable)

	// Callers match on the sentinel through the wrap chain.
	assert.True(t, errors.Is(err, apperrors.ErrAnalysisRunning))
}

func TestWrapError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, WrapError(nil, StepIDScan, "ignored"))
	})

	t.Run("plain error becomes execution error", func(t *testing.T) {
		cause := errors.New("open uploads: no such directory")
		wrapped := WrapError(cause, StepIDScan, "file scan failed")

		assert.Equal(t, ErrorTypeExecution, wrapped.Type)
		assert.Equal(t, StepIDScan, wrapped.Step)
		assert.Equal(t, "file scan failed", wrapped.Message)
		assert.True(t, errors.Is(wrapped, cause))
	})

	t.Run("sentinel cause stays matchable", func(t *testing.T) {
		wrapped := WrapError(apperrors.ErrNothingToAnalyze, StepIDScan, "no injection logs found")
		assert.True(t, errors.Is(wrapped, apperrors.ErrNothingToAnalyze))
	})

	t.Run("operation error keeps its type and gains a prefix", func(t *testing.T) {
		inner := NewTimeoutError(StepIDExport, "30s")
		wrapped := WrapError(inner, StepIDScan, "pipeline halted")

		assert.Equal(t, ErrorTypeTimeout, wrapped.Type)
		assert.Equal(t, StepIDExport, wrapped.Step) // existing step wins
		assert.Equal(t, "pipeline halted: step exceeded timeout of 30s", wrapped.Message)
		assert.True(t, wrapped.Retryable)
	})

	t.Run("operation error without step adopts the wrapping step", func(t *testing.T) {
		inner := &OperationError{Type: ErrorTypeExecution, Message: "row parse failed"}
		wrapped := WrapError(inner, StepIDLoad, "")

		assert.Equal(t, StepIDLoad, wrapped.Step)
		assert.Equal(t, "row parse failed", wrapped.Message)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(NewValidationError(StepIDScan, "bad input")))
	assert.True(t, IsRetryable(NewExecutionError(StepIDLoad, errors.New("io"), true)))
	assert.False(t, IsRetryable(NewExecutionError(StepIDLoad, errors.New("io"), false)))
	assert.True(t, IsRetryable(NewTimeoutError(StepIDExport, "1m")))
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetErrorType(nil))
	assert.Equal(t, ErrorTypeExecution, GetErrorType(errors.New("plain")))
	assert.Equal(t, ErrorTypeValidation, GetErrorType(NewValidationError(StepIDScan, "bad")))
	assert.Equal(t, ErrorTypeCancellation, GetErrorType(NewCancellationError(StepIDAnalyze)))
	assert.Equal(t, ErrorTypeConflict, GetErrorType(NewConflictError("op-1", apperrors.ErrAnalysisRunning)))
}

func TestErrorList(t *testing.T) {
	list := &ErrorList{}
	assert.False(t, list.HasErrors())
	assert.Equal(t, "no errors", list.Error())

	list.Add(nil)
	assert.False(t, list.HasErrors())

	first := NewValidationError(StepIDLoad, "A12_S1.xlsx: no usable rows")
	list.Add(first)
	require.True(t, list.HasErrors())
	assert.Equal(t, first.Error(), list.Error())

	list.Add(NewValidationError(StepIDLoad, "B03_S2.xlsx: no usable rows"))
	list.Add(NewExecutionError(StepIDExport, errors.New("disk full"), false))
	assert.Equal(t, "multiple errors: 3 errors occurred", list.Error())

	loadErrors := list.GetByStep(StepIDLoad)
	assert.Len(t, loadErrors, 2)
	assert.Empty(t, list.GetByStep(StepIDScan))
}
