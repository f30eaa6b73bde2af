package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "groutflow/internal/errors"
	"groutflow/internal/infrastructure"
	"groutflow/internal/middleware"
	"groutflow/internal/operations"
	"groutflow/internal/services"
	api "groutflow/pkg/contracts/api/v1"
)

// OperationsHandler handles analysis-run HTTP requests
type OperationsHandler struct {
	service *services.OperationService
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service *services.OperationService, logger *slog.Logger) *OperationsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OperationsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "operations")),
	}
}

// SetMetrics sets the business metrics for the handler
func (h *OperationsHandler) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	h.metrics = metrics
}

// StartOperationRequest binds POST /api/operations bodies
type StartOperationRequest struct {
	api.OperationStartRequest
}

var knownSteps = map[string]bool{
	operations.StepIDScan:    true,
	operations.StepIDLoad:    true,
	operations.StepIDAnalyze: true,
	operations.StepIDExport:  true,
}

// Bind implements the render.Binder interface for request validation
func (r *StartOperationRequest) Bind(req *http.Request) error {
	if r.Mode == "" {
		r.Mode = operations.ModeFull
	}

	switch r.Mode {
	case operations.ModeFull, operations.ModeSingle:
	default:
		return fmt.Errorf("invalid mode: %s", r.Mode)
	}

	if r.Step != "" && !knownSteps[r.Step] {
		return fmt.Errorf("unknown step: %s", r.Step)
	}

	if r.Mode == operations.ModeSingle && r.TargetFile == "" {
		return errors.New("single mode requires target_file")
	}

	return nil
}

// Routes returns a chi router for operations endpoints
func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Submissions return 202 immediately, so the generous server-wide
	// operation timeout is not needed here
	r.Use(middleware.Timeout(60*time.Second, h.logger))

	r.Get("/types", h.OperationTypes)
	r.Get("/stats", h.Stats)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{id}", h.JobStatus)
	r.Post("/", h.StartOperation)
	r.Get("/", h.ListOperations)
	r.Get("/{id}", h.OperationStatus)
	r.Post("/{id}/stop", h.StopOperation)

	return r
}

// StartOperation handles POST /api/operations
func (h *OperationsHandler) StartOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("operations-handler")

	ctx, span := tracer.Start(ctx, "operations_handler.start_operation",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run start request",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	data := &StartOperationRequest{}
	if err := render.Bind(r, data); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "request_validation"))

		h.logger.ErrorContext(ctx, "failed to bind run request",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		problem := apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			err.Error(),
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	submission, err := h.service.Start(ctx, services.StartRequest{
		Mode:       data.Mode,
		Step:       data.Step,
		TargetFile: data.TargetFile,
		Parameters: data.Parameters,
		TraceID:    infrastructure.TraceIDFromContext(ctx),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run submission failed")

		h.logger.ErrorContext(ctx, "failed to submit run",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		var problem *apierrors.ProblemDetails
		if errors.Is(err, services.ErrInvalidInput) {
			problem = apierrors.NewProblemDetails(
				http.StatusBadRequest,
				"/errors/validation_failed",
				"validation_failed",
				err.Error(),
				r.URL.Path+"#"+reqID,
			)
		} else {
			problem = apierrors.NewProblemDetails(
				http.StatusServiceUnavailable,
				"/errors/queue_full",
				"queue_full",
				"The run queue is full. Wait for the current run to finish and try again.",
				r.URL.Path+"#"+reqID,
			)
		}
		problem.WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	span.SetAttributes(
		attribute.String("operation.id", submission.OperationID),
		attribute.String("job.id", submission.JobID),
		attribute.String("operation.mode", data.Mode),
	)

	if h.metrics != nil {
		infrastructure.RecordActiveOperationChange(ctx, h.metrics, 1, data.Mode)
	}

	h.logger.InfoContext(ctx, "run enqueued",
		slog.String("job_id", submission.JobID),
		slog.String("operation_id", submission.OperationID),
		slog.String("mode", data.Mode),
		slog.String("step", data.Step),
		slog.String("request_id", reqID))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"id":       submission.OperationID,
		"job_id":   submission.JobID,
		"status":   submission.Status,
		"message":  "Analysis run queued",
		"poll_url": "/api/operations/" + submission.OperationID,
	})
}

// StopOperation handles POST /api/operations/{id}/stop
func (h *OperationsHandler) StopOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operationID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("operations-handler")

	ctx, span := tracer.Start(ctx, "operations_handler.stop_operation",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/{id}/stop"),
			attribute.String("operation.id", operationID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run stop request",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID))

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.service.Cancel(cancelCtx, operationID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run cancellation failed")

		h.logger.ErrorContext(ctx, "failed to cancel run",
			slog.String("operation_id", operationID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.handleError(w, r, err, map[string]interface{}{
			"operation_id": operationID,
		})
		return
	}

	if h.metrics != nil {
		infrastructure.RecordOperationCancellation(ctx, h.metrics, operationID, "analysis", "user_requested")
	}

	h.logger.InfoContext(ctx, "run cancelled",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID))

	render.JSON(w, r, map[string]string{
		"message":      "Run cancelled",
		"operation_id": operationID,
	})
}

// OperationStatus handles GET /api/operations/{id}
func (h *OperationsHandler) OperationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operationID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)

	h.logger.DebugContext(ctx, "run status request",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID))

	snapshot, err := h.service.Status(ctx, operationID)
	if err != nil {
		h.handleError(w, r, err, map[string]interface{}{
			"operation_id": operationID,
		})
		return
	}

	render.JSON(w, r, snapshot)
}

// ListOperations handles GET /api/operations
func (h *OperationsHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" && !validOperationStatus(statusFilter) {
		problem := apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			fmt.Sprintf("Invalid status filter: %s", statusFilter),
			r.URL.Path+"#"+reqID,
		).WithExtension("valid_statuses", []string{"pending", "running", "completed", "failed", "cancelled"})

		render.Render(w, r, problem)
		return
	}

	h.logger.DebugContext(ctx, "listing runs",
		slog.String("status_filter", statusFilter),
		slog.String("request_id", reqID))

	snapshots := h.service.List(ctx)
	if statusFilter != "" {
		filtered := snapshots[:0]
		for _, snap := range snapshots {
			if snap.Status == statusFilter {
				filtered = append(filtered, snap)
			}
		}
		snapshots = filtered
	}

	render.JSON(w, r, map[string]interface{}{
		"operations": snapshots,
		"count":      len(snapshots),
	})
}

// OperationTypes handles GET /api/operations/types
func (h *OperationsHandler) OperationTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Types(r.Context()))
}

// Stats handles GET /api/operations/stats
func (h *OperationsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	render.JSON(w, r, map[string]interface{}{
		"queue": h.service.QueueStats(ctx),
		"runs":  h.service.Metrics(ctx),
	})
}

// JobStatus handles GET /api/operations/jobs/{id}
func (h *OperationsHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)

	h.logger.DebugContext(ctx, "job status request",
		slog.String("job_id", jobID),
		slog.String("request_id", reqID))

	job, err := h.service.Job(ctx, jobID)
	if err != nil {
		problem := apierrors.NewProblemDetails(
			http.StatusNotFound,
			"/errors/not_found",
			"not_found",
			"Job not found",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
			WithExtension("job_id", jobID)

		render.Render(w, r, problem)
		return
	}

	render.JSON(w, r, jobResponse(job, true))
}

// ListJobs handles GET /api/operations/jobs
func (h *OperationsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	filter := operations.JobFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = operations.JobStatus(status)
	}
	if opID := r.URL.Query().Get("operation_id"); opID != "" {
		filter.OperationID = opID
	}
	if stepID := r.URL.Query().Get("step"); stepID != "" {
		filter.StepID = stepID
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	h.logger.DebugContext(ctx, "listing jobs",
		slog.String("status_filter", string(filter.Status)),
		slog.String("operation_filter", filter.OperationID),
		slog.String("step_filter", filter.StepID),
		slog.Int("limit", filter.Limit),
		slog.String("request_id", reqID))

	jobs, err := h.service.Jobs(ctx, filter)
	if err != nil {
		problem := apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/list_failed",
			"list_failed",
			"Failed to list jobs",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	jobList := make([]map[string]interface{}, len(jobs))
	for i, job := range jobs {
		jobList[i] = jobResponse(job, false)
	}

	render.JSON(w, r, map[string]interface{}{
		"jobs":  jobList,
		"count": len(jobList),
		"stats": h.service.QueueStats(ctx),
	})
}

// jobResponse flattens a job for clients. Polling hints are only worth
// sending on single-job reads.
func jobResponse(job *operations.Job, pollingHints bool) map[string]interface{} {
	response := map[string]interface{}{
		"job_id":       job.ID,
		"operation_id": job.OperationID,
		"step_id":      job.StepID,
		"step_name":    job.StepName,
		"status":       job.Status,
		"progress":     job.Progress,
		"created_at":   job.CreatedAt,
	}

	if job.StartedAt != nil {
		response["started_at"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		response["completed_at"] = job.CompletedAt
		if job.StartedAt != nil {
			response["duration"] = job.CompletedAt.Sub(*job.StartedAt).String()
		}
	}
	if job.Message != "" {
		response["message"] = job.Message
	}
	if job.Error != "" {
		response["error"] = job.Error
	}

	if pollingHints {
		switch job.Status {
		case operations.JobStatusPending, operations.JobStatusRunning:
			response["poll_after"] = "2s"
			response["is_complete"] = false
		case operations.JobStatusCompleted, operations.JobStatusFailed, operations.JobStatusCancelled:
			response["is_complete"] = true
		}
	}

	return response
}

// handleError centralizes error handling for the handler
func (h *OperationsHandler) handleError(w http.ResponseWriter, r *http.Request, err error, extensions map[string]interface{}) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	traceID := infrastructure.TraceIDFromContext(ctx)

	h.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))

	var problem *apierrors.ProblemDetails

	switch {
	case errors.Is(err, services.ErrOperationNotFound):
		problem = apierrors.NewProblemDetails(
			http.StatusNotFound,
			"/errors/not_found",
			"not_found",
			"Operation not found",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, context.DeadlineExceeded):
		problem = apierrors.NewProblemDetails(
			http.StatusGatewayTimeout,
			"/errors/timeout",
			"Request Timeout",
			"The request timed out while processing",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, context.Canceled):
		problem = apierrors.NewProblemDetails(
			http.StatusRequestTimeout,
			"/errors/request_canceled",
			"Request Canceled",
			"The request was canceled",
			r.URL.Path+"#"+reqID,
		)

	default:
		problem = apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal_error",
			"Internal Server Error",
			"An unexpected error occurred",
			r.URL.Path+"#"+reqID,
		)
	}

	problem.WithExtension("trace_id", traceID).
		WithExtension("timestamp", time.Now().UTC()).
		WithExtension("request_id", reqID)

	for k, v := range extensions {
		problem.WithExtension(k, v)
	}

	render.Render(w, r, problem)
}

func validOperationStatus(status string) bool {
	switch operations.OperationStatusValue(status) {
	case operations.OperationStatusPending,
		operations.OperationStatusRunning,
		operations.OperationStatusCompleted,
		operations.OperationStatusFailed,
		operations.OperationStatusCancelled:
		return true
	}
	return false
}
