package config

import "time"

// Application constants shared across the analyzer and web binaries
const (
	// Application Info
	AppName    = "GroutFlow"
	AppVersion = "1.2.0"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultWebDir     = "web"
	DefaultUploadsDir = "data/uploads"
	DefaultReportsDir = "data/reports"

	// Operation Timeouts
	DefaultOperationTimeout = 30 * time.Minute

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Upload Limits
	DefaultMaxUploadBytes = 50 * 1024 * 1024 // 50MB
)

// API Endpoints (internal)
const (
	APIBasePath        = "/api"
	SelectionsEndpoint = "/api/selections"
	ChartsEndpoint     = "/api/charts"
	OperationsEndpoint = "/api/operations"
	UploadEndpoint     = "/api/upload"
	ReportsEndpoint    = "/api/reports"
	HealthEndpoint     = "/api/health"
	MetricsEndpoint    = "/metrics"
	WebSocketEndpoint  = "/ws"
)
