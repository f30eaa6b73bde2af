package operations

import (
	"sync"
	"time"
)

// OperationStatusValue represents the overall operation status enum
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState represents the complete state of an analysis run
type OperationState struct {
	mu sync.RWMutex

	// Basic operation information
	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	// Step states keyed by step ID
	Steps map[string]*StepState `json:"steps"`

	// Run context for passing data between steps
	Context map[string]interface{} `json:"context"`

	// Configuration passed from the request
	Config map[string]interface{} `json:"config"`

	// Error if the run failed
	Error error `json:"error,omitempty"`
}

// NewOperationState creates a new operation state
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
	}
}

// Start marks the operation as running
func (o *OperationState) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Status = OperationStatusRunning
	o.StartTime = time.Now()
}

// Complete marks the operation as completed
func (o *OperationState) Complete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	o.EndTime = &now
	o.Status = OperationStatusCompleted
}

// Fail marks the operation as failed
func (o *OperationState) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	o.EndTime = &now
	o.Status = OperationStatusFailed
	o.Error = err
}

// Cancel marks the operation as cancelled
func (o *OperationState) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	o.EndTime = &now
	o.Status = OperationStatusCancelled
}

// GetStep returns the state of a specific step
func (o *OperationState) GetStep(stepID string) *StepState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.Steps[stepID]
}

// SetStep updates the state of a specific step
func (o *OperationState) SetStep(stepID string, state *StepState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Steps[stepID] = state
}

// GetContext retrieves a value from the run context
func (o *OperationState) GetContext(key string) (interface{}, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	val, ok := o.Context[key]
	return val, ok
}

// SetContext sets a value in the run context
func (o *OperationState) SetContext(key string, value interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Context[key] = value
}

// GetConfig retrieves a configuration value
func (o *OperationState) GetConfig(key string) (interface{}, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	val, ok := o.Config[key]
	return val, ok
}

// SetConfig sets a configuration value
func (o *OperationState) SetConfig(key string, value interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Config[key] = value
}

// Duration returns the duration of the run
func (o *OperationState) Duration() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.EndTime != nil {
		return o.EndTime.Sub(o.StartTime)
	}
	return time.Since(o.StartTime)
}

// GetActiveSteps returns all currently active steps
func (o *OperationState) GetActiveSteps() []*StepState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var active []*StepState
	for _, step := range o.Steps {
		if step.Status == StepStatusActive {
			active = append(active, step)
		}
	}
	return active
}

// GetCompletedSteps returns all completed steps
func (o *OperationState) GetCompletedSteps() []*StepState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var completed []*StepState
	for _, step := range o.Steps {
		if step.Status == StepStatusCompleted {
			completed = append(completed, step)
		}
	}
	return completed
}

// GetFailedSteps returns all failed steps
func (o *OperationState) GetFailedSteps() []*StepState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var failed []*StepState
	for _, step := range o.Steps {
		if step.Status == StepStatusFailed {
			failed = append(failed, step)
		}
	}
	return failed
}

// IsComplete returns true if no step is still pending or active
func (o *OperationState) IsComplete() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, step := range o.Steps {
		if step.Status == StepStatusPending || step.Status == StepStatusActive {
			return false
		}
	}
	return true
}

// HasFailures returns true if any step has failed
func (o *OperationState) HasFailures() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, step := range o.Steps {
		if step.Status == StepStatusFailed {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the operation state
func (o *OperationState) Clone() *OperationState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	clone := &OperationState{
		ID:        o.ID,
		Status:    o.Status,
		StartTime: o.StartTime,
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
		Error:     o.Error,
	}

	if o.EndTime != nil {
		endTime := *o.EndTime
		clone.EndTime = &endTime
	}

	for k, v := range o.Steps {
		v.mu.RLock()
		stepCopy := &StepState{
			ID:        v.ID,
			Name:      v.Name,
			Status:    v.Status,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Progress:  v.Progress,
			Message:   v.Message,
			Error:     v.Error,
			Metadata:  make(map[string]interface{}),
		}
		for mk, mv := range v.Metadata {
			stepCopy.Metadata[mk] = mv
		}
		v.mu.RUnlock()
		clone.Steps[k] = stepCopy
	}

	for k, v := range o.Context {
		clone.Context[k] = v
	}

	for k, v := range o.Config {
		clone.Config[k] = v
	}

	return clone
}
