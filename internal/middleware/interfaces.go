package middleware

import "time"

// OperationClaim describes the run currently holding the data directory.
type OperationClaim struct {
	ID        string
	Type      string
	StartedAt time.Time
	Files     int
}

// OperationStatusChecker reports whether an analysis run is in progress.
// This allows for easier testing and decoupling from the concrete implementation.
type OperationStatusChecker interface {
	ActiveOperation() (OperationClaim, bool)
}
