package operations

import (
	"time"
)

// Step identifiers
const (
	StepIDScan    = "scan"
	StepIDLoad    = "load"
	StepIDAnalyze = "analyze"
	StepIDExport  = "export"
)

// Step display names
const (
	StepNameScan    = "Scanning injection logs"
	StepNameLoad    = "Loading sensor data"
	StepNameAnalyze = "Detecting regimes"
	StepNameExport  = "Writing reports"
)

// Context keys for operation state
const (
	ContextKeyMode          = "mode"
	ContextKeyLogsDir       = "logs_dir"
	ContextKeyReportsDir    = "reports_dir"
	ContextKeyTargetFile    = "target_file"
	ContextKeyInputFiles    = "input_files"
	ContextKeyLoadedLogs    = "loaded_logs"
	ContextKeyAnalyzedLogs  = "analyzed_logs"
	ContextKeyOutputFiles   = "output_files"
	ContextKeyFilesFound    = "files_found"
	ContextKeyFilesAnalyzed = "files_analyzed"
	ContextKeySummaryRows   = "summary_rows"
)

// Run modes. Full analyzes every log in the uploads directory, single
// restricts the run to the one file named by the target_file parameter.
const (
	ModeFull   = "full"
	ModeSingle = "single"
)

// WebSocket event types, matching the frontend protocol
const (
	EventTypeOperationStatus   = "operation:status"
	EventTypeOperationProgress = "operation:progress"
	EventTypeOperationComplete = "operation:complete"
	EventTypeOperationError    = "operation:error"
	EventTypeOperationReset    = "operation:reset"
	EventTypeOperationSnapshot = "operation:snapshot"
)

// Default timeouts
const (
	DefaultStepTimeout    = 5 * time.Minute
	DefaultScanTimeout    = 1 * time.Minute
	DefaultLoadTimeout    = 15 * time.Minute
	DefaultAnalyzeTimeout = 10 * time.Minute
	DefaultExportTimeout  = 5 * time.Minute
)

// ExecutionMode defines how steps are executed
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest represents a request to execute an analysis run
type OperationRequest struct {
	ID         string                 `json:"id"`
	Mode       string                 `json:"mode"`
	LogsDir    string                 `json:"logs_dir,omitempty"`
	ReportsDir string                 `json:"reports_dir,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationResponse represents the result of an analysis run
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`
}

// ProgressUpdate represents a progress update from a step
type ProgressUpdate struct {
	StepID   string                 `json:"step_id"`
	Progress float64                `json:"progress"`
	Message  string                 `json:"message"`
	ETA      string                 `json:"eta,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StepMetrics represents performance metrics for a step
type StepMetrics struct {
	StepID          string        `json:"step_id"`
	ExecutionCount  int           `json:"execution_count"`
	SuccessCount    int           `json:"success_count"`
	FailureCount    int           `json:"failure_count"`
	AverageDuration time.Duration `json:"average_duration"`
	LastExecution   *time.Time    `json:"last_execution,omitempty"`
}

// OperationType describes an operation the HTTP API can start
type OperationType struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Dependencies []string              `json:"dependencies"`
	CanRunAlone  bool                  `json:"can_run_alone"`
	Parameters   []ParameterDefinition `json:"parameters"`
}

// ParameterDefinition defines a parameter for an operation type
type ParameterDefinition struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // string, number, select, boolean
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Options     []string    `json:"options,omitempty"` // For select type
}

// AvailableOperationTypes lists the operation types exposed through the
// HTTP API, in the order the four steps run.
func AvailableOperationTypes() []OperationType {
	modeParam := ParameterDefinition{
		Name:        "mode",
		Type:        "select",
		Description: "Analyze the whole uploads directory or a single log",
		Required:    false,
		Default:     ModeFull,
		Options:     []string{ModeFull, ModeSingle},
	}
	targetParam := ParameterDefinition{
		Name:        "target_file",
		Type:        "string",
		Description: "Log file name to analyze when mode is single",
		Required:    false,
	}

	return []OperationType{
		{
			ID:          StepIDScan,
			Name:        StepNameScan,
			Description: "Discover injection log spreadsheets in the uploads directory",
			CanRunAlone: true,
			Parameters:  []ParameterDefinition{modeParam, targetParam},
		},
		{
			ID:           StepIDLoad,
			Name:         StepNameLoad,
			Description:  "Parse each discovered log into per-hole sample series",
			Dependencies: []string{StepIDScan},
		},
		{
			ID:           StepIDAnalyze,
			Name:         StepNameAnalyze,
			Description:  "Segment every hole by mix change and compute segment metrics",
			Dependencies: []string{StepIDLoad},
		},
		{
			ID:           StepIDExport,
			Name:         StepNameExport,
			Description:  "Write the grout injection summary and mix count CSVs",
			Dependencies: []string{StepIDAnalyze},
		},
	}
}
