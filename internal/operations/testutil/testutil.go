// Package testutil provides shared fakes for operations tests: a
// scriptable step and a hub that records every broadcast.
package testutil

import (
	"context"
	"sync"

	"groutflow/internal/operations"
)

// TestStep is a scriptable step implementation. Zero value behavior:
// executes successfully, validates successfully, can always run.
type TestStep struct {
	StepID   string
	StepName string
	Deps     []string
	Inputs   []operations.DataRequirement
	Outputs  []operations.DataOutput

	ExecuteFunc  func(ctx context.Context, state *operations.OperationState) error
	ValidateFunc func(state *operations.OperationState) error
	CanRunFunc   func(manifest *operations.RunManifest) bool

	mu            sync.Mutex
	executeCalls  int
	validateCalls int
}

// NewTestStep creates a step that succeeds immediately
func NewTestStep(id string, deps ...string) *TestStep {
	return &TestStep{StepID: id, StepName: id, Deps: deps}
}

func (s *TestStep) ID() string   { return s.StepID }
func (s *TestStep) Name() string { return s.StepName }

func (s *TestStep) GetDependencies() []string {
	return s.Deps
}

func (s *TestStep) Execute(ctx context.Context, state *operations.OperationState) error {
	s.mu.Lock()
	s.executeCalls++
	s.mu.Unlock()

	if s.ExecuteFunc != nil {
		return s.ExecuteFunc(ctx, state)
	}
	return nil
}

func (s *TestStep) Validate(state *operations.OperationState) error {
	s.mu.Lock()
	s.validateCalls++
	s.mu.Unlock()

	if s.ValidateFunc != nil {
		return s.ValidateFunc(state)
	}
	return nil
}

func (s *TestStep) RequiredInputs() []operations.DataRequirement {
	return s.Inputs
}

func (s *TestStep) ProducedOutputs() []operations.DataOutput {
	return s.Outputs
}

func (s *TestStep) CanRun(manifest *operations.RunManifest) bool {
	if s.CanRunFunc != nil {
		return s.CanRunFunc(manifest)
	}
	return true
}

// ExecuteCalls returns how many times Execute ran
func (s *TestStep) ExecuteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeCalls
}

// ValidateCalls returns how many times Validate ran
func (s *TestStep) ValidateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateCalls
}

// BroadcastMessage is one recorded hub broadcast
type BroadcastMessage struct {
	Type    string
	Subtype string
	Action  string
	Data    interface{}
}

// MockHub records broadcasts instead of sending them to clients
type MockHub struct {
	mu       sync.Mutex
	messages []BroadcastMessage
}

// NewMockHub creates an empty recording hub
func NewMockHub() *MockHub {
	return &MockHub{}
}

func (h *MockHub) BroadcastUpdate(updateType, subtype, action string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, BroadcastMessage{
		Type:    updateType,
		Subtype: subtype,
		Action:  action,
		Data:    data,
	})
}

// Messages returns a copy of everything broadcast so far
func (h *MockHub) Messages() []BroadcastMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]BroadcastMessage, len(h.messages))
	copy(out, h.messages)
	return out
}

// MessagesByType returns broadcasts with the given update type
func (h *MockHub) MessagesByType(updateType string) []BroadcastMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []BroadcastMessage
	for _, m := range h.messages {
		if m.Type == updateType {
			out = append(out, m)
		}
	}
	return out
}

// Clear drops all recorded broadcasts
func (h *MockHub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}
