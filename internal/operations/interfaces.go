package operations

// WebSocketHub is the broadcast surface the run machinery needs from
// the websocket package.
type WebSocketHub interface {
	BroadcastUpdate(updateType, subtype, action string, data interface{})
}

// ProgressReporter interface for steps that can report progress
type ProgressReporter interface {
	ReportProgress(progress int, message string) error
}

// StepOptions carries the optional collaborators handed to each step
type StepOptions struct {
	Hub               WebSocketHub
	StatusBroadcaster *StatusBroadcaster
	EnableProgress    bool
}
