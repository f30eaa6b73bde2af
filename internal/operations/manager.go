package operations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "groutflow/internal/errors"
	"groutflow/internal/middleware"
)

// Manager orchestrates analysis runs. A run walks the registered steps
// in dependency order; only one run may hold the data directories at a
// time, so a second Execute while one is active returns a conflict.
type Manager struct {
	registry    *Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster
	tracer      *OperationTracer

	mu         sync.RWMutex
	operations map[string]*OperationState
	cancels    map[string]context.CancelFunc
	activeID   string
}

// NewManager creates an operation manager with dependency injection
func NewManager(hub WebSocketHub, registry *Registry, config *Config) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: NewStatusBroadcaster(hub, slog.Default()),
		operations:  make(map[string]*OperationState),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// RegisterStep registers a step with the manager's registry
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// SetConfig updates the run configuration
func (m *Manager) SetConfig(config *Config) {
	if config != nil {
		m.config = config
	}
}

// SetTracer attaches OpenTelemetry instrumentation to future runs
func (m *Manager) SetTracer(tracer *OperationTracer) {
	m.tracer = tracer
}

// GetRegistry returns the registry for accessing registered steps
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster so callers can push
// their own snapshots (the job queue uses this for queued jobs).
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs an analysis with the given request. It blocks until the
// run finishes and returns the final per-step state.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	state := NewOperationState(req.ID)
	mode := req.Mode
	if mode == "" {
		mode = ModeFull
	}
	state.SetConfig(ContextKeyMode, mode)
	if req.LogsDir != "" {
		state.SetConfig(ContextKeyLogsDir, req.LogsDir)
	}
	if req.ReportsDir != "" {
		state.SetConfig(ContextKeyReportsDir, req.ReportsDir)
	}
	for k, v := range req.Parameters {
		state.SetConfig(k, v)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Take the single-run claim before anything touches the data dirs
	if err := m.acquire(state, cancel); err != nil {
		m.broadcaster.FailOperation(req.ID, err)
		return nil, err
	}
	defer m.release(req.ID)

	ctx, endRun := m.startRunSpan(ctx, req, mode)

	manifest := NewRunManifest(req.ID, mode)
	manifest.LogsDir = req.LogsDir
	manifest.ReportsDir = req.ReportsDir
	if len(req.Parameters) > 0 {
		manifest.Config = req.Parameters
	}
	state.SetContext(contextKeyManifest, manifest)

	steps, err := m.resolveSteps(ctx, req, manifest)
	if err != nil {
		state.Fail(err)
		manifest.SetStatus("failed")
		manifest.Error = err.Error()
		m.broadcaster.FailOperation(req.ID, err)
		endRun(state, err)
		return m.createResponse(state), err
	}

	// Step snapshots are keyed by step ID so progress updates from the
	// steps themselves match the broadcaster entries.
	stepIDs := make([]string, len(steps))
	for i, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
		stepIDs[i] = step.ID()
	}

	m.broadcaster.CreateOperation(req.ID, stepIDs)
	state.Start()
	m.broadcaster.StartOperation(req.ID)
	manifest.SetStatus("running")

	slog.InfoContext(ctx, "analysis run started",
		slog.String("operation_id", req.ID),
		slog.String("mode", mode),
		slog.Int("steps", len(steps)))

	err = m.executeSequential(ctx, state, steps)

	switch {
	case err == nil:
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "Analysis completed")
		manifest.SetStatus("completed")
	case GetErrorType(err) == ErrorTypeCancellation || errors.Is(err, context.Canceled):
		state.Cancel()
		m.broadcaster.CancelOperation(req.ID)
		manifest.SetStatus("cancelled")
		manifest.Error = err.Error()
	default:
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
		manifest.SetStatus("failed")
		manifest.Error = err.Error()
	}

	m.saveManifest(ctx, manifest, req.ReportsDir)
	endRun(state, err)

	return m.createResponse(state), err
}

// acquire stores the run state if no other run is active
func (m *Manager) acquire(state *OperationState, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID != "" {
		return NewConflictError(m.activeID, apperrors.ErrAnalysisRunning)
	}

	m.activeID = state.ID
	m.operations[state.ID] = state
	m.cancels[state.ID] = cancel
	return nil
}

// release drops the run state and the single-run claim
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.operations, id)
	delete(m.cancels, id)
	if m.activeID == id {
		m.activeID = ""
	}
}

// ActiveOperation reports the run currently holding the data
// directories. It satisfies the HTTP gate's status checker.
func (m *Manager) ActiveOperation() (middleware.OperationClaim, bool) {
	m.mu.RLock()
	state, ok := m.operations[m.activeID]
	m.mu.RUnlock()
	if m.activeID == "" || !ok {
		return middleware.OperationClaim{}, false
	}

	snapshot := state.Clone()
	claim := middleware.OperationClaim{
		ID:        snapshot.ID,
		Type:      ModeFull,
		StartedAt: snapshot.StartTime,
	}
	if v, ok := snapshot.Config[ContextKeyMode].(string); ok && v != "" {
		claim.Type = v
	}
	if v, ok := snapshot.Context[ContextKeyFilesFound].(int); ok {
		claim.Files = v
	}
	return claim, true
}

// resolveSteps picks the steps for this run: either the full dependency
// order or one requested step.
func (m *Manager) resolveSteps(ctx context.Context, req OperationRequest, manifest *RunManifest) ([]Step, error) {
	stepParam, _ := req.Parameters["step"].(string)
	if stepParam != "" && stepParam != ModeFull {
		requested, err := m.registry.Get(stepParam)
		if err != nil {
			return nil, NewValidationError(stepParam, fmt.Sprintf("unknown step: %s", stepParam))
		}
		if !requested.CanRun(manifest) {
			return nil, NewValidationError(stepParam,
				fmt.Sprintf("step %s needs data an earlier step produces and cannot run alone", stepParam))
		}

		slog.InfoContext(ctx, "executing single step",
			slog.String("operation_id", req.ID),
			slog.String("step", stepParam))
		return []Step{requested}, nil
	}

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		return nil, WrapError(err, "", "resolve step order")
	}
	return steps, nil
}

// executeSequential walks the steps in order, honoring skips and the
// continue-on-error setting.
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		select {
		case <-ctx.Done():
			slog.WarnContext(ctx, "run cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			return NewCancellationError(step.ID())
		default:
		}

		stepState := state.GetStep(step.ID())
		if stepState != nil && stepState.Status == StepStatusSkipped {
			continue
		}

		// A sequential run only proceeds past a finished predecessor
		if i > 0 {
			prev := steps[i-1]
			prevState := state.GetStep(prev.ID())
			if prevState != nil && prevState.Status != StepStatusCompleted && prevState.Status != StepStatusSkipped {
				if m.config.ContinueOnError && prevState.Status == StepStatusFailed {
					slog.InfoContext(ctx, "continuing past failed step",
						slog.String("operation_id", state.ID),
						slog.String("failed_step", prev.ID()))
				} else {
					stepState.Skip(fmt.Sprintf("previous step %s not completed", prev.ID()))
					m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
						fmt.Sprintf("Skipped: previous step %s not completed", prev.ID()))
					continue
				}
			}
		}

		if err := m.executeStep(ctx, state, step); err != nil {
			if !m.config.ContinueOnError {
				m.skipDependentSteps(state, steps, step.ID())
				return err
			}
			slog.WarnContext(ctx, "step failed, continuing",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// executeStep runs a single step with dependency check, validation,
// timeout and retries.
func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStep(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(fmt.Sprintf("dependencies not met: %v", err))
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
			fmt.Sprintf("Skipped: dependencies not met: %v", err))
		return err
	}

	if err := step.Validate(state); err != nil {
		stepState.Skip(fmt.Sprintf("validation failed: %v", err))
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
			fmt.Sprintf("Skipped: validation failed: %v", err))
		return NewValidationError(step.ID(), err.Error())
	}

	manifest := manifestFrom(state)
	if manifest != nil {
		manifest.RecordStepStart(step.ID(), step.Name())
	}

	timeout := m.config.GetStepTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retryConfig := m.config.RetryConfig
	var lastErr error

	for attempt := 1; attempt <= retryConfig.MaxAttempts; attempt++ {
		stepState.Start()
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress), "Step started")

		spanCtx, endStep := m.startStepSpan(stepCtx, state.ID, step.ID())
		startTime := time.Now()
		err := step.Execute(spanCtx, state)
		duration := time.Since(startTime)
		endStep(duration, err)

		if err == nil {
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed")
			if manifest != nil {
				m.recordStepOutputs(manifest, step, stepState)
			}
			slog.InfoContext(ctx, "step completed",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.Duration("duration", duration))
			return nil
		}

		slog.ErrorContext(ctx, "step failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		if stepState.Metadata != nil {
			if metaJSON, jsonErr := json.Marshal(stepState.Metadata); jsonErr == nil {
				slog.DebugContext(ctx, "step metadata at failure",
					slog.String("operation_id", state.ID),
					slog.String("step", step.ID()),
					slog.String("metadata", string(metaJSON)))
			}
		}

		lastErr = err

		if !IsRetryable(err) || attempt >= retryConfig.MaxAttempts {
			stepState.Fail(err)
			m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
				fmt.Sprintf("Step failed: %v", err))
			if manifest != nil {
				manifest.RecordStepFailure(step.ID(), err)
			}
			return WrapError(err, step.ID(), "step execution failed")
		}

		delay := m.calculateRetryDelay(attempt, retryConfig)
		slog.WarnContext(ctx, "retrying step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", retryConfig.MaxAttempts),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-stepCtx.Done():
			timeoutErr := NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(timeoutErr)
			m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
				fmt.Sprintf("Step timed out after %s", timeout))
			if manifest != nil {
				manifest.RecordStepFailure(step.ID(), timeoutErr)
			}
			return timeoutErr
		}
	}

	stepState.Fail(lastErr)
	m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
		fmt.Sprintf("Step failed after %d attempts: %v", retryConfig.MaxAttempts, lastErr))
	if manifest != nil {
		manifest.RecordStepFailure(step.ID(), lastErr)
	}
	return WrapError(lastErr, step.ID(), "step execution failed after retries")
}

// recordStepOutputs records a completed step and the data types it
// produced in the run manifest.
func (m *Manager) recordStepOutputs(manifest *RunManifest, step Step, stepState *StepState) {
	outputs := step.ProducedOutputs()
	outputTypes := make([]string, 0, len(outputs))
	for _, out := range outputs {
		outputTypes = append(outputTypes, out.Type)
	}
	manifest.RecordStepCompletion(step.ID(), outputTypes, stepState.Metadata)
}

// skipDependentSteps marks every step downstream of a failure as skipped
func (m *Manager) skipDependentSteps(state *OperationState, steps []Step, failedStepID string) {
	for _, step := range steps {
		for _, dep := range step.GetDependencies() {
			if dep == failedStepID {
				stepState := state.GetStep(step.ID())
				if stepState != nil && stepState.Status == StepStatusPending {
					stepState.Skip(fmt.Sprintf("dependency %s failed", failedStepID))
					m.broadcaster.UpdateStepProgress(state.ID, step.ID(), int(stepState.Progress),
						fmt.Sprintf("Skipped: dependency %s failed", failedStepID))
					m.skipDependentSteps(state, steps, step.ID())
				}
				break
			}
		}
	}
}

// checkDependencies verifies that every dependency completed
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStep(dep)
		if depState == nil {
			return fmt.Errorf("dependency %s not found", dep)
		}
		if depState.Status != StepStatusCompleted {
			return fmt.Errorf("dependency %s not completed (status: %s)", dep, depState.Status)
		}
	}
	return nil
}

// calculateRetryDelay returns the backoff before the next attempt
func (m *Manager) calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay * time.Duration(float64(attempt-1)*config.Multiplier)
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// saveManifest writes the run manifest beside the reports. Failure to
// save never fails the run itself.
func (m *Manager) saveManifest(ctx context.Context, manifest *RunManifest, reportsDir string) {
	if !m.config.SaveManifest || reportsDir == "" {
		return
	}

	path := filepath.Join(reportsDir, ManifestFileName)
	if err := manifest.SaveToFile(path); err != nil {
		slog.WarnContext(ctx, "run manifest not saved",
			slog.String("operation_id", manifest.OperationID),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// createResponse snapshots the final state into a response
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	snapshot := state.Clone()
	resp := &OperationResponse{
		ID:       snapshot.ID,
		Status:   snapshot.Status,
		Duration: state.Duration(),
		Steps:    snapshot.Steps,
	}
	if snapshot.Error != nil {
		resp.Error = snapshot.Error.Error()
	}
	return resp
}

// GetOperation retrieves the state of a running operation
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.operations[id]
	if !exists {
		return nil, fmt.Errorf("operation %s: %w", id, ErrOperationNotFound)
	}
	return state.Clone(), nil
}

// ListOperations returns all active operations
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, state := range m.operations {
		operations = append(operations, state.Clone())
	}
	return operations
}

// CancelOperation cancels a running operation. The steps observe the
// context and stop at their next check.
func (m *Manager) CancelOperation(id string) error {
	m.mu.Lock()
	state, exists := m.operations[id]
	cancel := m.cancels[id]
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("operation %s: %w", id, ErrOperationNotFound)
	}

	state.Cancel()
	if cancel != nil {
		cancel()
	}
	m.broadcaster.CancelOperation(id)
	return nil
}
