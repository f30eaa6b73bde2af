package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"groutflow/internal/config"
	"groutflow/internal/operations"
)

// OperationService fronts the analysis run machinery for the HTTP
// layer. Submissions go through the job queue so the handler can
// return immediately; status reads come from the status broadcaster,
// which keeps snapshots alive after the run finishes.
type OperationService struct {
	queue   *operations.JobQueue
	manager *operations.Manager
	paths   *config.Paths
	logger  *slog.Logger
}

// NewOperationService creates an operation service over an already
// wired queue and manager
func NewOperationService(queue *operations.JobQueue, manager *operations.Manager, paths *config.Paths, logger *slog.Logger) *OperationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationService{
		queue:   queue,
		manager: manager,
		paths:   paths,
		logger:  logger,
	}
}

// StartRequest carries one analysis submission from the HTTP layer
type StartRequest struct {
	Mode       string
	Step       string
	TargetFile string
	Parameters map[string]interface{}
	TraceID    string
}

// Submission is the accepted-run acknowledgement returned to clients
type Submission struct {
	JobID       string `json:"job_id"`
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Step        string `json:"step,omitempty"`
}

// Start validates and enqueues an analysis run. The returned submission
// carries the operation ID clients use to poll status or subscribe over
// WebSocket.
func (s *OperationService) Start(ctx context.Context, req StartRequest) (*Submission, error) {
	mode := req.Mode
	if mode == "" {
		mode = operations.ModeFull
	}
	if mode != operations.ModeFull && mode != operations.ModeSingle {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}
	if mode == operations.ModeSingle && req.TargetFile == "" {
		return nil, fmt.Errorf("%w: single mode needs a target_file", ErrInvalidInput)
	}

	params := make(map[string]interface{}, len(req.Parameters)+1)
	for k, v := range req.Parameters {
		params[k] = v
	}
	if req.TargetFile != "" {
		params[operations.ContextKeyTargetFile] = req.TargetFile
	}

	job := &operations.Job{
		ID:          uuid.NewString(),
		OperationID: uuid.NewString(),
		StepID:      req.Step,
		StepName:    stepDisplayName(req.Step),
		Request: &operations.OperationRequest{
			Mode:       mode,
			LogsDir:    s.paths.UploadsDir,
			ReportsDir: s.paths.ReportsDir,
			Parameters: params,
		},
	}
	if req.TraceID != "" {
		job.Metadata = map[string]interface{}{"trace_id": req.TraceID}
	}

	if err := s.queue.Enqueue(job); err != nil {
		return nil, fmt.Errorf("enqueue analysis job: %w", err)
	}

	s.logger.InfoContext(ctx, "analysis run submitted",
		slog.String("job_id", job.ID),
		slog.String("operation_id", job.OperationID),
		slog.String("mode", mode),
		slog.String("step", req.Step))

	return &Submission{
		JobID:       job.ID,
		OperationID: job.OperationID,
		Status:      string(operations.JobStatusPending),
		Step:        req.Step,
	}, nil
}

// Status returns the live snapshot of one run
func (s *OperationService) Status(ctx context.Context, operationID string) (*operations.OperationSnapshot, error) {
	snapshot, ok := s.manager.GetBroadcaster().GetSnapshot(operationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}
	return snapshot, nil
}

// List returns snapshots of every run the broadcaster still tracks,
// queued and finished runs included
func (s *OperationService) List(ctx context.Context) []*operations.OperationSnapshot {
	return s.manager.GetBroadcaster().GetAllSnapshots()
}

// Job returns one queue submission by its job ID
func (s *OperationService) Job(ctx context.Context, jobID string) (*operations.Job, error) {
	job, err := s.queue.GetJob(jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// Jobs returns queue history matching the filter
func (s *OperationService) Jobs(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	return s.queue.ListJobs(filter)
}

// Cancel stops a run by operation ID. Queued jobs are cancelled in the
// store; running ones are cancelled through the manager, which the
// queue also reaches for jobs it already started.
func (s *OperationService) Cancel(ctx context.Context, operationID string) error {
	jobs, err := s.queue.ListJobs(operations.JobFilter{OperationID: operationID})
	if err == nil {
		for _, job := range jobs {
			if job.Status == operations.JobStatusPending || job.Status == operations.JobStatusRunning {
				s.logger.InfoContext(ctx, "cancelling queued run",
					slog.String("operation_id", operationID),
					slog.String("job_id", job.ID))
				return s.queue.CancelJob(job.ID)
			}
		}
	}

	// Runs started outside the queue, e.g. by the CLI, only the manager knows
	if err := s.manager.CancelOperation(operationID); err != nil {
		if errors.Is(err, operations.ErrOperationNotFound) {
			return fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
		}
		return err
	}
	return nil
}

// Types lists the operations the API can start, for the frontend's
// run dialog
func (s *OperationService) Types(ctx context.Context) []operations.OperationType {
	return operations.AvailableOperationTypes()
}

// QueueStats exposes queue depth and worker counts
func (s *OperationService) QueueStats(ctx context.Context) map[string]interface{} {
	return s.queue.GetQueueStats()
}

// Metrics aggregates run counts for the dashboard
func (s *OperationService) Metrics(ctx context.Context) map[string]interface{} {
	snapshots := s.manager.GetBroadcaster().GetAllSnapshots()

	var active, completed, failed int
	for _, snap := range snapshots {
		switch snap.Status {
		case string(operations.OperationStatusPending), string(operations.OperationStatusRunning):
			active++
		case string(operations.OperationStatusCompleted):
			completed++
		case string(operations.OperationStatusFailed), string(operations.OperationStatusCancelled):
			failed++
		}
	}

	return map[string]interface{}{
		"total_operations":     len(snapshots),
		"active_operations":    active,
		"completed_operations": completed,
		"failed_operations":    failed,
		"timestamp":            time.Now().Unix(),
	}
}

// stepDisplayName resolves a step ID to its display name
func stepDisplayName(stepID string) string {
	for _, t := range operations.AvailableOperationTypes() {
		if t.ID == stepID {
			return t.Name
		}
	}
	return ""
}
