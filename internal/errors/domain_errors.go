package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Analysis-specific errors (using errors package for sentinel errors)
var (
	ErrLogNotFound      = errors.New("injection log not found")
	ErrLogNameInvalid   = errors.New("filename does not match the hole/stage convention")
	ErrLogEmpty         = errors.New("no usable data in injection log")
	ErrAnalysisRunning  = errors.New("analysis operation already running")
	ErrNothingToAnalyze = errors.New("no injection logs to analyze")
	ErrReportLocked     = errors.New("report file is locked by another process")
)

// OperationConflictDetails provides additional context for operation conflicts
type OperationConflictDetails struct {
	RunningID   string     `json:"running_id,omitempty"`
	RunningType string     `json:"running_type,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Files       int        `json:"files,omitempty"`
}

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Additional fields for extensibility
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON custom marshaler to include extensions
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	// Add standard fields
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status

	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	// Add extensions
	for k, v := range pd.Extensions {
		data[k] = v
	}

	// Use standard JSON marshaling
	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// NewOperationConflictError creates an error for a run rejected because one is active
func NewOperationConflictError(details *OperationConflictDetails, traceID string) *ProblemDetails {
	problem := NewProblemDetails(
		http.StatusConflict,
		"/errors/operation-already-running",
		"Operation Already Running",
		"An analysis operation is already in progress. Wait for it to finish before starting another.",
		fmt.Sprintf("/api/operations#%s", traceID),
	)

	problem.WithExtension("error_type", "operation_in_progress").
		WithExtension("trace_id", traceID)

	if details != nil {
		if details.RunningID != "" {
			problem.WithExtension("running_operation_id", details.RunningID)
		}
		if details.RunningType != "" {
			problem.WithExtension("running_operation_type", details.RunningType)
		}
		if details.StartedAt != nil {
			problem.WithExtension("started_at", details.StartedAt.Format("2006-01-02T15:04:05Z"))
		}
		if details.Files > 0 {
			problem.WithExtension("files_in_progress", details.Files)
		}
	}

	return problem
}

// MapAnalysisError maps domain errors to HTTP problem details
func MapAnalysisError(err error, traceID string) render.Renderer {
	instance := fmt.Sprintf("/api/operations#trace-%s", traceID)

	// Check if it's an APIError from errors.go
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode == "SELECTION_NOT_FOUND" {
			return NewProblemDetails(
				http.StatusNotFound,
				"/errors/selection-not-found",
				"Selection Not Found",
				apiErr.Message,
				instance,
			).WithExtension("trace_id", traceID).
				WithExtension("error_code", "SELECTION_NOT_FOUND")
		}
	}

	switch {
	case errors.Is(err, ErrAnalysisRunning):
		return NewOperationConflictError(nil, traceID)

	case errors.Is(err, ErrLogNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			"/errors/log-not-found",
			"Injection Log Not Found",
			"No injection log exists for the requested hole and stage.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LOG_NOT_FOUND")

	case errors.Is(err, ErrLogNameInvalid):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/invalid-log-name",
			"Invalid Log Filename",
			"Log filenames must start with the hole id and stage token, e.g. P0012_S3.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INVALID_LOG_NAME").
			WithExtension("expected_format", "<letter><number>_S<stage>")

	case errors.Is(err, ErrLogEmpty):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			"/errors/log-empty",
			"Log Contains No Usable Data",
			"The injection log has no sensor rows the analyzer can use.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LOG_EMPTY")

	case errors.Is(err, ErrNothingToAnalyze):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			"/errors/nothing-to-analyze",
			"Nothing To Analyze",
			"No injection logs were found in the uploads directory.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "NOTHING_TO_ANALYZE")

	case errors.Is(err, ErrReportLocked):
		return NewProblemDetails(
			http.StatusConflict,
			"/errors/report-locked",
			"Report File Locked",
			"The summary file is open in another program. Close it and run the analysis again.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "REPORT_LOCKED")

	default:
		// Generic error
		return NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal-error",
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INTERNAL_ERROR")
	}
}
