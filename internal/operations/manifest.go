package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ManifestFileName is the audit record written beside the reports at
// the end of every run.
const ManifestFileName = "run_manifest.json"

// RunManifest tracks what data each step of a run produced. It is the
// record CanRun consults for single-step runs and the audit artifact
// saved next to the report CSVs.
type RunManifest struct {
	mu sync.RWMutex `json:"-"`

	// Identity
	ID          string    `json:"id"`
	OperationID string    `json:"operation_id"`
	StartTime   time.Time `json:"start_time"`

	// Configuration
	Mode       string                 `json:"mode"`
	LogsDir    string                 `json:"logs_dir,omitempty"`
	ReportsDir string                 `json:"reports_dir,omitempty"`
	Config     map[string]interface{} `json:"config,omitempty"`

	// Available data tracking keyed by data type
	AvailableData map[string]*DataInfo `json:"available_data"`

	// Execution tracking
	CompletedSteps []StepExecution `json:"completed_steps"`

	// Current status
	Status      string    `json:"status"` // "pending", "running", "completed", "failed"
	LastUpdated time.Time `json:"last_updated"`
	Error       string    `json:"error,omitempty"`
}

// DataInfo tracks information about available data
type DataInfo struct {
	Type      string                 `json:"type"`               // Type of data (e.g., "injection_logs")
	Location  string                 `json:"location,omitempty"` // Directory holding the data, if on disk
	ItemCount int                    `json:"item_count"`         // Number of files or in-memory items
	TotalSize int64                  `json:"total_size,omitempty"`
	Items     []string               `json:"items,omitempty"` // File or item names
	CreatedAt time.Time              `json:"created_at"`
	CreatedBy string                 `json:"created_by"` // Which step produced this
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// StepExecution tracks the execution of a single step
type StepExecution struct {
	StepID     string                 `json:"step_id"`
	StepName   string                 `json:"step_name"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
	Duration   string                 `json:"duration"`
	Status     string                 `json:"status"`      // "running", "completed", "failed"
	OutputData []string               `json:"output_data"` // Types of data produced
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewRunManifest creates a manifest for one run
func NewRunManifest(operationID, mode string) *RunManifest {
	return &RunManifest{
		ID:             fmt.Sprintf("manifest-%d", time.Now().Unix()),
		OperationID:    operationID,
		StartTime:      time.Now(),
		Mode:           mode,
		AvailableData:  make(map[string]*DataInfo),
		CompletedSteps: []StepExecution{},
		Status:         "pending",
		LastUpdated:    time.Now(),
	}
}

// HasData checks if a specific type of data is available
func (m *RunManifest) HasData(dataType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.AvailableData[dataType]
	return exists
}

// GetData returns information about available data
func (m *RunManifest) GetData(dataType string) (*DataInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.AvailableData[dataType]
	return data, exists
}

// AddData records newly available data
func (m *RunManifest) AddData(dataType string, info *DataInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info.CreatedAt = time.Now()
	m.AvailableData[dataType] = info
	m.LastUpdated = time.Now()
}

// RecordStepStart records the start of a step execution
func (m *RunManifest) RecordStepStart(stepID, stepName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A retry re-enters the existing entry instead of appending
	for i, step := range m.CompletedSteps {
		if step.StepID == stepID {
			m.CompletedSteps[i].StartTime = time.Now()
			m.CompletedSteps[i].Status = "running"
			m.LastUpdated = time.Now()
			return
		}
	}

	m.CompletedSteps = append(m.CompletedSteps, StepExecution{
		StepID:    stepID,
		StepName:  stepName,
		StartTime: time.Now(),
		Status:    "running",
	})
	m.LastUpdated = time.Now()
}

// RecordStepCompletion records the completion of a step
func (m *RunManifest) RecordStepCompletion(stepID string, outputData []string, metadata map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, step := range m.CompletedSteps {
		if step.StepID == stepID {
			m.CompletedSteps[i].EndTime = time.Now()
			m.CompletedSteps[i].Duration = time.Since(step.StartTime).String()
			m.CompletedSteps[i].Status = "completed"
			m.CompletedSteps[i].OutputData = outputData
			m.CompletedSteps[i].Metadata = metadata
			break
		}
	}
	m.LastUpdated = time.Now()
}

// RecordStepFailure records a step failure
func (m *RunManifest) RecordStepFailure(stepID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, step := range m.CompletedSteps {
		if step.StepID == stepID {
			m.CompletedSteps[i].EndTime = time.Now()
			m.CompletedSteps[i].Duration = time.Since(step.StartTime).String()
			m.CompletedSteps[i].Status = "failed"
			m.CompletedSteps[i].Error = err.Error()
			break
		}
	}
	m.Status = "failed"
	m.Error = fmt.Sprintf("step %s failed: %v", stepID, err)
	m.LastUpdated = time.Now()
}

// IsStepCompleted checks if a step has been completed
func (m *RunManifest) IsStepCompleted(stepID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, step := range m.CompletedSteps {
		if step.StepID == stepID && step.Status == "completed" {
			return true
		}
	}
	return false
}

// SetStatus updates the overall run status
func (m *RunManifest) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Status = status
	m.LastUpdated = time.Now()
}

// ScanDataDirectory scans a directory and records matching files as
// available data of the given type.
func (m *RunManifest) ScanDataDirectory(dataType, location, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(location); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", location)
	}

	searchPattern := filepath.Join(location, pattern)
	files, err := filepath.Glob(searchPattern)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}

	var totalSize int64
	itemNames := make([]string, 0, len(files))
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			totalSize += info.Size()
			itemNames = append(itemNames, filepath.Base(file))
		}
	}

	m.AvailableData[dataType] = &DataInfo{
		Type:      dataType,
		Location:  location,
		ItemCount: len(itemNames),
		TotalSize: totalSize,
		Items:     itemNames,
		CreatedAt: time.Now(),
	}

	m.LastUpdated = time.Now()
	return nil
}

// SaveToFile saves the manifest to a JSON file
func (m *RunManifest) SaveToFile(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}

// LoadManifestFromFile loads a manifest from a JSON file
func LoadManifestFromFile(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	return &manifest, nil
}

// Clone creates a deep copy of the manifest
func (m *RunManifest) Clone() *RunManifest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, _ := json.Marshal(m)
	var clone RunManifest
	json.Unmarshal(data, &clone)

	return &clone
}

// GetProgress calculates overall progress as the share of registered
// pipeline steps that completed.
func (m *RunManifest) GetProgress() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.CompletedSteps) == 0 {
		return 0
	}

	completed := 0
	for _, step := range m.CompletedSteps {
		if step.Status == "completed" {
			completed++
		}
	}

	totalSteps := len(AvailableOperationTypes())
	return (completed * 100) / totalSteps
}
