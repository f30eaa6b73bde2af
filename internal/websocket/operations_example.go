package websocket

import (
	"context"
	"fmt"
	"time"
)

// OperationsEventExamples demonstrates how operations events are sent through WebSocket
type OperationsEventExamples struct {
	hub *Hub
}

// NewOperationsEventExamples creates a new examples instance
func NewOperationsEventExamples(hub *Hub) *OperationsEventExamples {
	return &OperationsEventExamples{hub: hub}
}

// SendOperationLifecycleEvents demonstrates the complete lifecycle of an analysis run
func (e *OperationsEventExamples) SendOperationLifecycleEvents(ctx context.Context, operationID string) {
	// 1. Operation Reset/Initialized
	e.hub.BroadcastUpdate("operation:reset", operationID, "initialized", nil)

	// 2. Operation Started
	e.hub.BroadcastUpdate("operation:started", operationID, "running", map[string]interface{}{
		"operation_type": "analysis",
		"mode":           "full",
		"steps_total":    4,
		"started_at":     time.Now().UTC(),
	})

	// 3. Step Progress Updates
	steps := []struct {
		id       string
		name     string
		progress []float64
	}{
		{id: "scan", name: "Scanning injection logs", progress: []float64{100}},
		{id: "load", name: "Loading sensor data", progress: []float64{25, 50, 75, 100}},
		{id: "analyze", name: "Detecting regimes", progress: []float64{50, 100}},
		{id: "export", name: "Writing reports", progress: []float64{100}},
	}

	for i, step := range steps {
		// Step started
		e.hub.BroadcastUpdate("operation:progress", step.id, "active", map[string]interface{}{
			"operation_id":   operationID,
			"step_name":      step.name,
			"step_number":    i + 1,
			"steps_complete": i,
			"steps_total":    4,
			"message":        fmt.Sprintf("Starting %s", step.name),
		})

		// Step progress
		for _, prog := range step.progress {
			e.hub.BroadcastUpdate("operation:progress", step.id, "active", map[string]interface{}{
				"operation_id":    operationID,
				"progress":        prog,
				"items_processed": int(prog / 100 * 12),
				"items_total":     12,
				"message":         fmt.Sprintf("%s: %.0f%% complete", step.name, prog),
			})
		}

		// Step completed
		e.hub.BroadcastUpdate("operation:progress", step.id, "completed", map[string]interface{}{
			"operation_id":   operationID,
			"step_name":      step.name,
			"steps_complete": i + 1,
			"steps_total":    4,
			"message":        fmt.Sprintf("Completed %s", step.name),
		})
	}

	// 4. Operation Completed
	e.hub.BroadcastUpdate("operation:completed", operationID, "completed", map[string]interface{}{
		"duration":     "42s",
		"completed_at": time.Now().UTC(),
		"results": map[string]interface{}{
			"files_analyzed": 12,
			"summary_rows":   31,
			"errors":         0,
			"output_files": []string{
				"reports/grout_injection_summary.csv",
				"reports/mix_count_summary.csv",
			},
		},
		"metrics": map[string]interface{}{
			"scan_time_ms":    120,
			"load_time_ms":    18400,
			"analyze_time_ms": 16200,
			"export_time_ms":  7500,
			"total_time_ms":   42220,
		},
	})
}

// SendOperationErrorExample demonstrates a run that fails
func (e *OperationsEventExamples) SendOperationErrorExample(ctx context.Context, operationID string) {
	// Operation starts normally
	e.hub.BroadcastUpdate("operation:started", operationID, "running", map[string]interface{}{
		"operation_type": "analysis",
		"steps_total":    4,
	})

	// First step succeeds
	e.hub.BroadcastUpdate("operation:progress", "scan", "completed", map[string]interface{}{
		"operation_id": operationID,
		"step_name":    "Scanning injection logs",
		"message":      "Found 12 injection logs",
	})

	// Second step fails
	e.hub.BroadcastUpdate("operation:error", "export", "failed", map[string]interface{}{
		"operation_id": operationID,
		"error":        "Report file is open in another program",
		"error_code":   ErrReportLocked,
		"step_name":    "Writing reports",
		"can_retry":    true,
		"retry_count":  2,
	})

	// Operation failed
	e.hub.BroadcastUpdate("operation:failed", operationID, "failed", map[string]interface{}{
		"error":     "Run failed while writing reports",
		"failed_at": time.Now().UTC(),
		"partial_results": map[string]interface{}{
			"files_analyzed": 12,
			"reports_written": 0,
		},
	})
}

// SendOperationCancelExample demonstrates a cancelled run
func (e *OperationsEventExamples) SendOperationCancelExample(ctx context.Context, operationID string) {
	// Operation in progress
	e.hub.BroadcastUpdate("operation:progress", "load", "active", map[string]interface{}{
		"operation_id": operationID,
		"progress":     35.5,
		"message":      "Loading sensor data...",
	})

	// Operation cancelled
	e.hub.BroadcastUpdate("operation:cancelled", operationID, "cancelled", map[string]interface{}{
		"cancelled_at":   time.Now().UTC(),
		"reason":         "User requested cancellation",
		"cleanup_status": "completed",
		"partial_results": map[string]interface{}{
			"loaded_before_cancel": 4,
			"total_planned":        12,
		},
	})
}

// Message Format Examples for Frontend
/*
The frontend will receive these WebSocket messages in the following format:

1. Operation Started:
{
  "type": "operation:started",
  "subtype": "op-123",
  "action": "running",
  "timestamp": "2025-06-12T10:30:00Z",
  "data": {
    "operation_type": "analysis",
    "mode": "full",
    "steps_total": 4,
    "started_at": "2025-06-12T10:30:00Z"
  }
}

2. Step Progress:
{
  "type": "operation:progress",
  "subtype": "load",
  "action": "active",
  "timestamp": "2025-06-12T10:30:15Z",
  "data": {
    "operation_id": "op-123",
    "progress": 75,
    "items_processed": 9,
    "items_total": 12,
    "message": "Loading sensor data: 75% complete"
  }
}

3. Operation Error:
{
  "type": "operation:failed",
  "subtype": "op-123",
  "action": "failed",
  "timestamp": "2025-06-12T10:31:00Z",
  "data": {
    "error": "Report file is open in another program",
    "error_code": "REPORT_LOCKED",
    "can_retry": true
  }
}

4. Operation Complete:
{
  "type": "operation:completed",
  "subtype": "op-123",
  "action": "completed",
  "timestamp": "2025-06-12T10:35:00Z",
  "data": {
    "duration": "42s",
    "completed_at": "2025-06-12T10:35:00Z",
    "results": {
      "files_analyzed": 12,
      "summary_rows": 31,
      "errors": 0
    }
  }
}

The frontend should handle these event types:
- operation:reset - Run initialized
- operation:started - Run began execution
- operation:progress - Step progress update
- operation:completed - Run finished successfully
- operation:failed - Run encountered an error
- operation:cancelled - Run was cancelled
*/
