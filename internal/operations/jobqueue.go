package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// JobStatus represents the status of a queued analysis job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is one queued analysis submission. The queue wraps Manager
// execution with persistence and panic isolation; the manager itself
// does the step running.
type Job struct {
	ID          string                 `json:"id"`
	OperationID string                 `json:"operation_id"`
	StepID      string                 `json:"step_id,omitempty"`
	StepName    string                 `json:"step_name,omitempty"`
	Status      JobStatus              `json:"status"`
	Progress    int                    `json:"progress"`
	Message     string                 `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Request     *OperationRequest      `json:"request,omitempty"`
}

// JobStore persists jobs across requests so clients can poll history
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
}

// JobFilter selects jobs when listing
type JobFilter struct {
	Status      JobStatus
	OperationID string
	StepID      string
	Since       time.Time
	Limit       int
}

// JobQueue runs queued analysis jobs. With one worker, submissions
// execute strictly in arrival order, which matches the one run at a
// time rule the manager enforces.
type JobQueue struct {
	mu       sync.RWMutex
	jobs     chan *Job
	workers  int
	wg       sync.WaitGroup
	store    JobStore
	manager  *Manager
	logger   *slog.Logger
	shutdown chan struct{}
	active   map[string]*Job
}

// NewJobQueue creates a job queue backed by the given store
func NewJobQueue(workers int, store JobStore, manager *Manager, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:     make(chan *Job, workers*8),
		workers:  workers,
		store:    store,
		manager:  manager,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
		active:   make(map[string]*Job),
	}
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	go q.recoverJobs()
}

// Stop gracefully shuts down the job queue
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")
	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue adds a job to the queue. The operation snapshot is created
// immediately so clients subscribing over WebSocket see the queued run
// before a worker picks it up.
func (q *JobQueue) Enqueue(job *Job) error {
	job.Status = JobStatusPending
	job.CreatedAt = time.Now()

	if err := q.store.CreateJob(job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	q.manager.GetBroadcaster().CreateOperation(job.OperationID, q.stepIDsFor(job))

	select {
	case q.jobs <- job:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("operation_id", job.OperationID),
			slog.String("step_id", job.StepID))
		return nil
	default:
		job.Status = JobStatusFailed
		job.Error = "job queue is full"
		if err := q.store.UpdateJob(job); err != nil {
			q.logger.Error("job not updated after queue overflow", slog.String("error", err.Error()))
		}
		return fmt.Errorf("job queue is full")
	}
}

// stepIDsFor resolves the step snapshot list for a job
func (q *JobQueue) stepIDsFor(job *Job) []string {
	if job.StepID != "" && job.StepID != ModeFull {
		return []string{job.StepID}
	}

	steps, err := q.manager.GetRegistry().GetDependencyOrder()
	if err != nil {
		return nil
	}
	ids := make([]string, len(steps))
	for i, step := range steps {
		ids[i] = step.ID()
	}
	return ids
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	if activeJob, ok := q.active[id]; ok {
		q.mu.RUnlock()
		return activeJob, nil
	}
	q.mu.RUnlock()

	return q.store.GetJob(id)
}

// CancelJob cancels a queued or running job
func (q *JobQueue) CancelJob(id string) error {
	job, err := q.GetJob(id)
	if err != nil {
		return err
	}

	if job.Status != JobStatusRunning && job.Status != JobStatusPending {
		return fmt.Errorf("job %s cannot be cancelled (status: %s)", id, job.Status)
	}

	if job.Status == JobStatusRunning {
		if err := q.manager.CancelOperation(job.OperationID); err != nil {
			q.logger.Warn("running operation not cancelled",
				slog.String("job_id", id),
				slog.String("error", err.Error()))
		}
	}

	job.Status = JobStatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	return q.store.UpdateJob(job)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// worker processes jobs from the queue
func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

// processJob runs one job through the manager
func (q *JobQueue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	// Carry the submitting request's trace ID into the run logs
	if job.Metadata != nil {
		if traceID, ok := job.Metadata["trace_id"].(string); ok {
			ctx = context.WithValue(ctx, middleware.RequestIDKey, traceID)
		}
	}

	logger = logger.With(
		slog.String("job_id", job.ID),
		slog.String("operation_id", job.OperationID),
	)
	logger.Info("processing job started")

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job processing panicked", slog.Any("panic", r))

			job.Status = JobStatusFailed
			job.Error = fmt.Sprintf("job processing panicked: %v", r)
			job.Message = "Internal error occurred"
			completedAt := time.Now()
			job.CompletedAt = &completedAt
			if err := q.store.UpdateJob(job); err != nil {
				logger.Error("job not updated after panic", slog.String("error", err.Error()))
			}
			q.manager.GetBroadcaster().FailOperation(job.OperationID, fmt.Errorf("internal error: %v", r))
		}

		q.mu.Lock()
		delete(q.active, job.ID)
		q.mu.Unlock()
	}()

	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Progress = 0
	job.Message = "Job started"
	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("job status not updated", slog.String("error", err.Error()))
	}

	if job.Request == nil {
		q.handleJobError(job, fmt.Errorf("job has no operation request"), logger)
		return
	}

	req := *job.Request
	req.ID = job.OperationID
	if job.StepID != "" && job.StepID != ModeFull {
		if req.Parameters == nil {
			req.Parameters = make(map[string]interface{})
		}
		req.Parameters["step"] = job.StepID
	}

	// The manager owns all status broadcasting from here on
	if _, err := q.manager.Execute(ctx, req); err != nil {
		q.handleJobError(job, err, logger)
		return
	}

	job.Status = JobStatusCompleted
	job.Progress = 100
	job.Message = "Analysis completed"
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("job completion not updated", slog.String("error", err.Error()))
	}

	logger.Info("processing job completed")
}

// handleJobError records a finished job's failure in the store.
// Cancellations keep their own status so a cancelled run does not read
// as a failure in the queue history.
func (q *JobQueue) handleJobError(job *Job, err error, logger *slog.Logger) {
	logger.Error("job failed", slog.String("error", err.Error()))

	job.Status = JobStatusFailed
	job.Message = "Job failed"
	if GetErrorType(err) == ErrorTypeCancellation || errors.Is(err, context.Canceled) {
		job.Status = JobStatusCancelled
		job.Message = "Job cancelled"
	}
	job.Error = err.Error()
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if updateErr := q.store.UpdateJob(job); updateErr != nil {
		logger.Error("job error not updated", slog.String("error", updateErr.Error()))
	}
}

// recoverJobs re-queues jobs that were pending or running when the
// server last stopped.
func (q *JobQueue) recoverJobs() {
	q.logger.Info("recovering unfinished jobs")

	jobs, err := q.store.ListJobs(JobFilter{Status: JobStatusRunning})
	if err != nil {
		q.logger.Error("running jobs not recovered", slog.String("error", err.Error()))
		return
	}

	pending, err := q.store.ListJobs(JobFilter{Status: JobStatusPending})
	if err != nil {
		q.logger.Error("pending jobs not recovered", slog.String("error", err.Error()))
	} else {
		jobs = append(jobs, pending...)
	}

	for _, job := range jobs {
		if job.Status == JobStatusRunning {
			job.Status = JobStatusPending
			job.StartedAt = nil
			job.Progress = 0
			if err := q.store.UpdateJob(job); err != nil {
				q.logger.Error("recovered job not updated", slog.String("error", err.Error()))
			}
		}

		select {
		case q.jobs <- job:
			q.logger.Info("recovered job", slog.String("job_id", job.ID))
		default:
			q.logger.Warn("job not recovered, queue full", slog.String("job_id", job.ID))
		}
	}
}

// GetQueueStats returns queue statistics
func (q *JobQueue) GetQueueStats() map[string]interface{} {
	q.mu.RLock()
	activeCount := len(q.active)
	q.mu.RUnlock()

	return map[string]interface{}{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": activeCount,
	}
}
