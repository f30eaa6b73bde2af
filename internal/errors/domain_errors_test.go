package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredefinedAnalysisErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		description string
	}{
		{
			name:        "ErrLogNotFound",
			err:         ErrLogNotFound,
			description: "should be missing log sentinel error",
		},
		{
			name:        "ErrLogNameInvalid",
			err:         ErrLogNameInvalid,
			description: "should be invalid filename sentinel error",
		},
		{
			name:        "ErrLogEmpty",
			err:         ErrLogEmpty,
			description: "should be empty log sentinel error",
		},
		{
			name:        "ErrAnalysisRunning",
			err:         ErrAnalysisRunning,
			description: "should be running operation sentinel error",
		},
		{
			name:        "ErrNothingToAnalyze",
			err:         ErrNothingToAnalyze,
			description: "should be empty uploads sentinel error",
		},
		{
			name:        "ErrReportLocked",
			err:         ErrReportLocked,
			description: "should be locked report sentinel error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err, tt.description)
			assert.NotEmpty(t, tt.err.Error(), "error should have a message")
		})
	}
}

func TestProblemDetails_Render(t *testing.T) {
	tests := []struct {
		name       string
		problem    *ProblemDetails
		wantStatus int
	}{
		{
			name: "render 400 problem",
			problem: &ProblemDetails{
				Type:   "/errors/validation",
				Title:  "Validation Error",
				Status: http.StatusBadRequest,
				Detail: "Request validation failed",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "render 404 problem",
			problem: &ProblemDetails{
				Type:   "/errors/not-found",
				Title:  "Not Found",
				Status: http.StatusNotFound,
				Detail: "Resource not found",
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "render 500 problem",
			problem: &ProblemDetails{
				Type:   "/errors/internal",
				Title:  "Internal Server Error",
				Status: http.StatusInternalServerError,
				Detail: "An unexpected error occurred",
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/test", nil)

			err := tt.problem.Render(w, r)
			assert.NoError(t, err)
		})
	}
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		problem  *ProblemDetails
		wantKeys []string
	}{
		{
			name: "marshal basic problem details",
			problem: &ProblemDetails{
				Type:       "/errors/validation",
				Title:      "Validation Error",
				Status:     http.StatusBadRequest,
				Detail:     "Request validation failed",
				Instance:   "/api/operations",
				Extensions: make(map[string]interface{}),
			},
			wantKeys: []string{"type", "title", "status", "detail", "instance"},
		},
		{
			name: "marshal problem with extensions",
			problem: &ProblemDetails{
				Type:   "/errors/log-empty",
				Title:  "Log Contains No Usable Data",
				Status: http.StatusUnprocessableEntity,
				Detail: "The injection log has no sensor rows the analyzer can use",
				Extensions: map[string]interface{}{
					"trace_id":   "12345",
					"error_code": "LOG_EMPTY",
					"file":       "P12_S3.xlsx",
				},
			},
			wantKeys: []string{"type", "title", "status", "detail", "trace_id", "error_code", "file"},
		},
		{
			name: "marshal problem without optional fields",
			problem: &ProblemDetails{
				Type:       "/errors/internal",
				Title:      "Internal Error",
				Status:     http.StatusInternalServerError,
				Extensions: make(map[string]interface{}),
			},
			wantKeys: []string{"type", "title", "status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.problem)
			require.NoError(t, err)

			var result map[string]interface{}
			err = json.Unmarshal(data, &result)
			require.NoError(t, err)

			// Check that all expected keys are present
			for _, key := range tt.wantKeys {
				assert.Contains(t, result, key, "Expected key %s to be present", key)
			}

			// Verify standard fields
			assert.Equal(t, tt.problem.Type, result["type"])
			assert.Equal(t, tt.problem.Title, result["title"])
			assert.Equal(t, float64(tt.problem.Status), result["status"]) // JSON numbers are float64

			// Check optional fields
			if tt.problem.Detail != "" {
				assert.Equal(t, tt.problem.Detail, result["detail"])
			}
			if tt.problem.Instance != "" {
				assert.Equal(t, tt.problem.Instance, result["instance"])
			}
		})
	}
}

func TestNewProblemDetails(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		problemType string
		title       string
		detail      string
		instance    string
	}{
		{
			name:        "create validation problem",
			status:      http.StatusBadRequest,
			problemType: "/errors/validation",
			title:       "Validation Failed",
			detail:      "Request validation failed",
			instance:    "/api/operations",
		},
		{
			name:        "create empty log problem",
			status:      http.StatusUnprocessableEntity,
			problemType: "/errors/log-empty",
			title:       "Log Contains No Usable Data",
			detail:      "The injection log has no sensor rows the analyzer can use",
			instance:    "/api/charts/timeseries",
		},
		{
			name:        "create minimal problem",
			status:      http.StatusInternalServerError,
			problemType: "/errors/internal",
			title:       "Internal Error",
			detail:      "",
			instance:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := NewProblemDetails(tt.status, tt.problemType, tt.title, tt.detail, tt.instance)

			assert.Equal(t, tt.status, problem.Status)
			assert.Equal(t, tt.problemType, problem.Type)
			assert.Equal(t, tt.title, problem.Title)
			assert.Equal(t, tt.detail, problem.Detail)
			assert.Equal(t, tt.instance, problem.Instance)
			assert.NotNil(t, problem.Extensions)
			assert.Empty(t, problem.Extensions)
		})
	}
}

func TestProblemDetails_WithExtension(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{
			name:  "add string extension",
			key:   "trace_id",
			value: "abc123",
		},
		{
			name:  "add integer extension",
			key:   "files_in_progress",
			value: 4,
		},
		{
			name:  "add boolean extension",
			key:   "retryable",
			value: true,
		},
		{
			name:  "add complex extension",
			key:   "errors",
			value: []string{"hole required", "stage invalid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := NewProblemDetails(
				http.StatusBadRequest,
				"/errors/test",
				"Test Error",
				"Test detail",
				"/test",
			)

			result := problem.WithExtension(tt.key, tt.value)

			// Should return the same instance
			assert.Same(t, problem, result)

			// Should have the extension
			assert.Equal(t, tt.value, result.Extensions[tt.key])
		})
	}
}

func TestProblemDetails_WithExtension_Chaining(t *testing.T) {
	t.Run("chain multiple extensions", func(t *testing.T) {
		problem := NewProblemDetails(
			http.StatusBadRequest,
			"/errors/test",
			"Test Error",
			"Test detail",
			"/test",
		)

		result := problem.
			WithExtension("trace_id", "12345").
			WithExtension("error_code", "TEST_ERROR").
			WithExtension("files_in_progress", 3)

		// Should be the same instance
		assert.Same(t, problem, result)

		// Should have all extensions
		assert.Equal(t, "12345", result.Extensions["trace_id"])
		assert.Equal(t, "TEST_ERROR", result.Extensions["error_code"])
		assert.Equal(t, 3, result.Extensions["files_in_progress"])
	})
}

func TestMapAnalysisError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		traceID        string
		wantStatus     int
		wantType       string
		wantTitle      string
		wantExtensions map[string]interface{}
	}{
		{
			name:       "map running operation error",
			err:        ErrAnalysisRunning,
			traceID:    "trace-123",
			wantStatus: http.StatusConflict,
			wantType:   "/errors/operation-already-running",
			wantTitle:  "Operation Already Running",
			wantExtensions: map[string]interface{}{
				"trace_id":   "trace-123",
				"error_type": "operation_in_progress",
			},
		},
		{
			name:       "map missing log error",
			err:        ErrLogNotFound,
			traceID:    "trace-456",
			wantStatus: http.StatusNotFound,
			wantType:   "/errors/log-not-found",
			wantTitle:  "Injection Log Not Found",
			wantExtensions: map[string]interface{}{
				"trace_id":   "trace-456",
				"error_code": "LOG_NOT_FOUND",
			},
		},
		{
			name:       "map invalid filename error",
			err:        ErrLogNameInvalid,
			traceID:    "trace-789",
			wantStatus: http.StatusBadRequest,
			wantType:   "/errors/invalid-log-name",
			wantTitle:  "Invalid Log Filename",
			wantExtensions: map[string]interface{}{
				"trace_id":        "trace-789",
				"error_code":      "INVALID_LOG_NAME",
				"expected_format": "<letter><number>_S<stage>",
			},
		},
		{
			name:       "map empty log error",
			err:        ErrLogEmpty,
			traceID:    "trace-abc",
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "/errors/log-empty",
			wantTitle:  "Log Contains No Usable Data",
			wantExtensions: map[string]interface{}{
				"trace_id":   "trace-abc",
				"error_code": "LOG_EMPTY",
			},
		},
		{
			name:       "map nothing to analyze error",
			err:        ErrNothingToAnalyze,
			traceID:    "trace-def",
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "/errors/nothing-to-analyze",
			wantTitle:  "Nothing To Analyze",
			wantExtensions: map[string]interface{}{
				"trace_id":   "trace-def",
				"error_code": "NOTHING_TO_ANALYZE",
			},
		},
		{
			name:       "map locked report error",
			err:        ErrReportLocked,
			traceID:    "trace-ghi",
			wantStatus: http.StatusConflict,
			wantType:   "/errors/report-locked",
			wantTitle:  "Report File Locked",
			wantExtensions: map[string]interface{}{
				"trace_id":   "trace-ghi",
				"error_code": "REPORT_LOCKED",
			},
		},
		{
			name:       "map generic error",
			err:        fmt.Errorf("unknown error"),
			traceID:    "trace-xyz",
			wantStatus: http.StatusInternalServerError,
			wantType:   "/errors/internal-error",
			wantTitle:  "Internal Server Error",
			wantExtensions: map[string]interface{}{
				"trace_id":   "trace-xyz",
				"error_code": "INTERNAL_ERROR",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := MapAnalysisError(tt.err, tt.traceID)

			// Should return a ProblemDetails
			problem, ok := renderer.(*ProblemDetails)
			require.True(t, ok, "Expected ProblemDetails type")

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.wantTitle, problem.Title)

			// Check extensions
			for key, expectedValue := range tt.wantExtensions {
				assert.Equal(t, expectedValue, problem.Extensions[key], "Extension %s mismatch", key)
			}
		})
	}
}

func TestMapAnalysisError_APIError(t *testing.T) {
	tests := []struct {
		name       string
		apiError   *APIError
		traceID    string
		wantStatus int
		wantType   string
	}{
		{
			name: "map SELECTION_NOT_FOUND APIError",
			apiError: &APIError{
				StatusCode: http.StatusNotFound,
				ErrorCode:  "SELECTION_NOT_FOUND",
				Message:    "no injection log for hole P12 stage S3",
			},
			traceID:    "trace-api-123",
			wantStatus: http.StatusNotFound,
			wantType:   "/errors/selection-not-found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := MapAnalysisError(tt.apiError, tt.traceID)

			problem, ok := renderer.(*ProblemDetails)
			require.True(t, ok, "Expected ProblemDetails type")

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.traceID, problem.Extensions["trace_id"])
			assert.Equal(t, tt.apiError.ErrorCode, problem.Extensions["error_code"])
			assert.Equal(t, tt.apiError.Message, problem.Detail)
		})
	}
}

func TestMapAnalysisError_WrappedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		traceID    string
		wantStatus int
		wantType   string
	}{
		{
			name:       "wrapped empty log error",
			err:        fmt.Errorf("load P12_S3.xlsx: %w", ErrLogEmpty),
			traceID:    "trace-wrapped-123",
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "/errors/log-empty",
		},
		{
			name:       "deeply wrapped error",
			err:        fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrLogNameInvalid)),
			traceID:    "trace-deep-456",
			wantStatus: http.StatusBadRequest,
			wantType:   "/errors/invalid-log-name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := MapAnalysisError(tt.err, tt.traceID)

			problem, ok := renderer.(*ProblemDetails)
			require.True(t, ok, "Expected ProblemDetails type")

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.traceID, problem.Extensions["trace_id"])
		})
	}
}

func TestNewOperationConflictError(t *testing.T) {
	t.Run("conflict with full details", func(t *testing.T) {
		startedAt := time.Date(2025, 6, 12, 10, 30, 0, 0, time.UTC)
		details := &OperationConflictDetails{
			RunningID:   "run-42",
			RunningType: "analysis",
			StartedAt:   &startedAt,
			Files:       3,
		}

		problem := NewOperationConflictError(details, "trace-conflict-1")

		assert.Equal(t, http.StatusConflict, problem.Status)
		assert.Equal(t, "/errors/operation-already-running", problem.Type)
		assert.Equal(t, "Operation Already Running", problem.Title)
		assert.Equal(t, "/api/operations#trace-conflict-1", problem.Instance)

		assert.Equal(t, "operation_in_progress", problem.Extensions["error_type"])
		assert.Equal(t, "trace-conflict-1", problem.Extensions["trace_id"])
		assert.Equal(t, "run-42", problem.Extensions["running_operation_id"])
		assert.Equal(t, "analysis", problem.Extensions["running_operation_type"])
		assert.Equal(t, "2025-06-12T10:30:00Z", problem.Extensions["started_at"])
		assert.Equal(t, 3, problem.Extensions["files_in_progress"])
	})

	t.Run("conflict without details", func(t *testing.T) {
		problem := NewOperationConflictError(nil, "trace-conflict-2")

		assert.Equal(t, http.StatusConflict, problem.Status)
		assert.Equal(t, "trace-conflict-2", problem.Extensions["trace_id"])
		assert.NotContains(t, problem.Extensions, "running_operation_id")
		assert.NotContains(t, problem.Extensions, "started_at")
		assert.NotContains(t, problem.Extensions, "files_in_progress")
	})
}

func TestProblemDetails_RFC7807Compliance(t *testing.T) {
	t.Run("RFC 7807 compliance test", func(t *testing.T) {
		problem := NewProblemDetails(
			http.StatusBadRequest,
			"https://example.com/probs/validation-error",
			"Your request parameters didn't validate.",
			"The request body must contain a valid JSON object.",
			"/api/operations",
		).WithExtension("invalid_params", []map[string]string{
			{"name": "hole", "reason": "required"},
			{"name": "stage", "reason": "must be positive"},
		})

		// Test JSON serialization
		data, err := json.Marshal(problem)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(data, &result)
		require.NoError(t, err)

		// RFC 7807 required fields
		assert.Equal(t, "https://example.com/probs/validation-error", result["type"])
		assert.Equal(t, "Your request parameters didn't validate.", result["title"])
		assert.Equal(t, float64(http.StatusBadRequest), result["status"])
		assert.Equal(t, "The request body must contain a valid JSON object.", result["detail"])
		assert.Equal(t, "/api/operations", result["instance"])

		// Extension field
		assert.Contains(t, result, "invalid_params")
	})
}

func TestProblemDetails_RenderIntegration(t *testing.T) {
	t.Run("integration with chi render", func(t *testing.T) {
		problem := NewProblemDetails(
			http.StatusUnprocessableEntity,
			"/errors/log-empty",
			"Log Contains No Usable Data",
			"The injection log has no sensor rows the analyzer can use",
			"/api/charts/timeseries",
		).WithExtension("trace_id", "test-123").
			WithExtension("error_code", "LOG_EMPTY")

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/charts/timeseries", nil)

		err := render.Render(w, r, problem)
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

		// Parse response
		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, "/errors/log-empty", response["type"])
		assert.Equal(t, "Log Contains No Usable Data", response["title"])
		assert.Equal(t, float64(http.StatusUnprocessableEntity), response["status"])
		assert.Equal(t, "test-123", response["trace_id"])
		assert.Equal(t, "LOG_EMPTY", response["error_code"])
	})
}

func TestProblemDetails_EmptyExtensions(t *testing.T) {
	t.Run("problem with no extensions", func(t *testing.T) {
		problem := NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal",
			"Internal Server Error",
			"An unexpected error occurred",
			"/api/test",
		)

		data, err := json.Marshal(problem)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(data, &result)
		require.NoError(t, err)

		// Should only have standard RFC 7807 fields
		expectedKeys := []string{"type", "title", "status", "detail", "instance"}
		assert.Len(t, result, len(expectedKeys))

		for _, key := range expectedKeys {
			assert.Contains(t, result, key)
		}
	})
}

func TestProblemDetails_NilExtensions(t *testing.T) {
	t.Run("problem with nil extensions map", func(t *testing.T) {
		problem := &ProblemDetails{
			Type:       "/errors/test",
			Title:      "Test Error",
			Status:     http.StatusBadRequest,
			Detail:     "Test detail",
			Instance:   "/test",
			Extensions: nil,
		}

		// Should not panic when marshaling
		data, err := json.Marshal(problem)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(data, &result)
		require.NoError(t, err)

		assert.Equal(t, "/errors/test", result["type"])
		assert.Equal(t, "Test Error", result["title"])
	})
}

func TestMapAnalysisError_ErrorsIsAs(t *testing.T) {
	t.Run("errors.Is works correctly", func(t *testing.T) {
		// Test direct error
		renderer := MapAnalysisError(ErrLogEmpty, "trace-123")
		problem := renderer.(*ProblemDetails)
		assert.Equal(t, "LOG_EMPTY", problem.Extensions["error_code"])

		// Test wrapped error
		wrappedErr := fmt.Errorf("analysis failed: %w", ErrLogEmpty)
		renderer2 := MapAnalysisError(wrappedErr, "trace-456")
		problem2 := renderer2.(*ProblemDetails)
		assert.Equal(t, "LOG_EMPTY", problem2.Extensions["error_code"])
	})

	t.Run("errors.As works with APIError", func(t *testing.T) {
		apiErr := &APIError{
			StatusCode: http.StatusNotFound,
			ErrorCode:  "SELECTION_NOT_FOUND",
			Message:    "no injection log for hole P12 stage S3",
		}
		wrappedErr := fmt.Errorf("resolve selection: %w", apiErr)

		renderer := MapAnalysisError(wrappedErr, "trace-789")
		problem := renderer.(*ProblemDetails)
		assert.Equal(t, "SELECTION_NOT_FOUND", problem.Extensions["error_code"])
	})
}
