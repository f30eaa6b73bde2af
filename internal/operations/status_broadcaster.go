package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatusBroadcaster is the single authority for run status updates.
// It holds the complete state of every known operation and pushes full
// snapshots to the hub, so clients never merge partial events.
type StatusBroadcaster struct {
	mu         sync.RWMutex
	operations map[string]*OperationSnapshot
	hub        WebSocketHub
	logger     *slog.Logger
	updates    chan updateRequest
	stop       chan struct{}
}

// OperationSnapshot is the complete state of a run at a point in time.
// This is the only structure sent to the frontend.
type OperationSnapshot struct {
	OperationID string         `json:"operation_id"`
	Status      string         `json:"status"`       // pending|running|completed|failed|cancelled
	Progress    int            `json:"progress"`     // 0-100
	CurrentStep string         `json:"current_step"` // Current active step name
	Steps       []StepSnapshot `json:"steps"`        // All steps with their status
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot represents the state of a single step
type StepSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`   // pending|running|completed|failed|skipped
	Progress int                    `json:"progress"` // 0-100
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type updateRequest struct {
	operationID string
	updateFunc  func(*OperationSnapshot)
	done        chan struct{}
}

// NewStatusBroadcaster creates a new status broadcaster
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		operations: make(map[string]*OperationSnapshot),
		hub:        hub,
		logger:     logger,
		updates:    make(chan updateRequest, 100),
		stop:       make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates applies all updates sequentially so snapshot state
// never races.
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

// handleUpdate processes a single update request
func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	snapshot, exists := sb.operations[req.operationID]
	if !exists {
		snapshot = &OperationSnapshot{
			OperationID: req.operationID,
			Status:      "pending",
			Progress:    0,
			StartedAt:   time.Now(),
			UpdatedAt:   time.Now(),
			Steps:       []StepSnapshot{},
		}
		sb.operations[req.operationID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	// Overall progress is the mean of step progress
	if len(snapshot.Steps) > 0 {
		totalProgress := 0
		for _, step := range snapshot.Steps {
			totalProgress += step.Progress
		}
		snapshot.Progress = totalProgress / len(snapshot.Steps)
	}

	if snapshot.Status == "completed" || snapshot.Status == "failed" || snapshot.Status == "cancelled" {
		if snapshot.CompletedAt == nil {
			now := time.Now()
			snapshot.CompletedAt = &now
		}
	}

	sb.broadcast(snapshot)
}

// broadcast sends the complete snapshot to all connected clients
func (sb *StatusBroadcaster) broadcast(snapshot *OperationSnapshot) {
	if sb.hub == nil {
		sb.logger.Warn("no websocket hub configured for status broadcast")
		return
	}

	sb.logger.Info("broadcasting operation snapshot",
		slog.String("operation_id", snapshot.OperationID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep),
		slog.Int("steps", len(snapshot.Steps)),
	)

	sb.hub.BroadcastUpdate(EventTypeOperationSnapshot, snapshot.OperationID, "update", snapshot)
}

// UpdateStatus applies an update to an operation's snapshot and blocks
// until the resulting snapshot has been broadcast.
func (sb *StatusBroadcaster) UpdateStatus(operationID string, updateFunc func(*OperationSnapshot)) {
	req := updateRequest{
		operationID: operationID,
		updateFunc:  updateFunc,
		done:        make(chan struct{}),
	}

	sb.updates <- req
	<-req.done
}

// CreateOperation initializes a new operation with the given steps.
// stepIDs must be stable step identifiers so later updates match.
func (sb *StatusBroadcaster) CreateOperation(operationID string, stepIDs []string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = "pending"
		snapshot.Progress = 0
		snapshot.Steps = make([]StepSnapshot, len(stepIDs))
		for i, id := range stepIDs {
			snapshot.Steps[i] = StepSnapshot{
				ID:       id,
				Name:     id,
				Status:   "pending",
				Progress: 0,
			}
		}
		snapshot.Message = "Operation created"
	})
}

// StartOperation marks an operation as running
func (sb *StatusBroadcaster) StartOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = "running"
		snapshot.Message = "Operation started"
	})
}

// UpdateStepProgress updates a specific step's progress
func (sb *StatusBroadcaster) UpdateStepProgress(operationID, stepID string, progress int, message string) {
	sb.UpdateStepWithMetadata(operationID, stepID, progress, message, nil)
}

// UpdateStepWithMetadata updates a specific step's progress with metadata
func (sb *StatusBroadcaster) UpdateStepWithMetadata(operationID, stepID string, progress int, message string, metadata map[string]interface{}) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		found := false
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID != stepID {
				continue
			}
			found = true
			// Step progress is monotonic while running; late events
			// arriving out of order must not walk it backwards.
			if progress >= snapshot.Steps[i].Progress || snapshot.Steps[i].Status != "running" {
				snapshot.Steps[i].Progress = progress
			}
			snapshot.Steps[i].Message = message
			if metadata != nil {
				snapshot.Steps[i].Metadata = metadata
			}
			if progress > 0 && progress < 100 {
				snapshot.Steps[i].Status = "running"
				snapshot.CurrentStep = snapshot.Steps[i].Name
			} else if progress >= 100 {
				snapshot.Steps[i].Status = "completed"
				snapshot.Steps[i].Progress = 100
			}
			break
		}

		// An update for an unknown step appends a minimal entry so the
		// UI does not stall on an ID mismatch.
		if !found {
			status := "running"
			if progress >= 100 {
				status = "completed"
			}
			snapshot.Steps = append(snapshot.Steps, StepSnapshot{
				ID:       stepID,
				Name:     stepID,
				Status:   status,
				Progress: clampProgress(progress),
				Message:  message,
				Metadata: metadata,
			})
			if progress > 0 && progress < 100 {
				snapshot.CurrentStep = stepID
			}
		}
	})
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// CompleteStep marks a step as completed
func (sb *StatusBroadcaster) CompleteStep(operationID, stepID string, message string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = "completed"
				snapshot.Steps[i].Progress = 100
				snapshot.Steps[i].Message = message
				break
			}
		}
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(operationID, stepID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = "failed"
				snapshot.Steps[i].Error = err.Error()
				break
			}
		}
	})
}

// CompleteOperation marks an operation as completed
func (sb *StatusBroadcaster) CompleteOperation(operationID string, message string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = "completed"
		snapshot.Progress = 100
		snapshot.CurrentStep = ""
		snapshot.Message = message
		for i := range snapshot.Steps {
			if snapshot.Steps[i].Status == "running" || snapshot.Steps[i].Status == "pending" {
				snapshot.Steps[i].Status = "completed"
				snapshot.Steps[i].Progress = 100
			}
		}
	})
}

// FailOperation marks an operation as failed
func (sb *StatusBroadcaster) FailOperation(operationID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = "failed"
		snapshot.Error = err.Error()
		snapshot.CurrentStep = ""
	})
}

// CancelOperation marks an operation as cancelled
func (sb *StatusBroadcaster) CancelOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = "cancelled"
		snapshot.CurrentStep = ""
		snapshot.Message = "Operation cancelled by user"
	})
}

// GetSnapshot returns the current snapshot for an operation
func (sb *StatusBroadcaster) GetSnapshot(operationID string) (*OperationSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.operations[operationID]
	if !exists {
		return nil, false
	}

	copy := *snapshot
	return &copy, true
}

// GetAllSnapshots returns all current operation snapshots
func (sb *StatusBroadcaster) GetAllSnapshots() []*OperationSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*OperationSnapshot, 0, len(sb.operations))
	for _, snapshot := range sb.operations {
		copy := *snapshot
		snapshots = append(snapshots, &copy)
	}

	return snapshots
}

// CleanupOldOperations removes finished operations older than maxAge
func (sb *StatusBroadcaster) CleanupOldOperations(ctx context.Context, maxAge time.Duration) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	for id, snapshot := range sb.operations {
		if snapshot.Status == "completed" || snapshot.Status == "failed" || snapshot.Status == "cancelled" {
			if snapshot.CompletedAt != nil && now.Sub(*snapshot.CompletedAt) > maxAge {
				delete(sb.operations, id)
				sb.logger.Info("cleaned up old operation",
					slog.String("operation_id", id),
					slog.String("status", snapshot.Status),
					slog.Duration("age", now.Sub(*snapshot.CompletedAt)),
				)
			}
		}
	}
}

// Stop gracefully shuts down the broadcaster
func (sb *StatusBroadcaster) Stop() {
	close(sb.stop)
}
