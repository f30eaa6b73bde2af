package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"groutflow/internal/config"
	"groutflow/internal/operations"
	"groutflow/internal/validation"
	ws "groutflow/internal/websocket"
)

// HealthService provides health check functionality
type HealthService struct {
	version      string
	buildTime    string
	buildID      string
	paths        *config.Paths
	manager      *operations.Manager
	webSocketHub *ws.Hub
	validator    *validation.FileValidator
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TotalFiles       int     `json:"total_files"`
	TotalSizeBytes   int64   `json:"total_size_bytes"`
	WebSocketClients int     `json:"websocket_clients"`
	ActiveOperations int     `json:"active_operations"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a health service with injected dependencies
func NewHealthService(version string, paths *config.Paths, manager *operations.Manager, webSocketHub *ws.Hub, logger *slog.Logger) *HealthService {
	return NewHealthServiceWithBuildInfo(version, "", "", paths, manager, webSocketHub, logger)
}

// NewHealthServiceWithBuildInfo creates a health service carrying build
// information for the version endpoint
func NewHealthServiceWithBuildInfo(version, buildTime, buildID string, paths *config.Paths, manager *operations.Manager, webSocketHub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("health service initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime),
		slog.String("build_id", buildID))

	return &HealthService{
		version:      version,
		buildTime:    buildTime,
		buildID:      buildID,
		paths:        paths,
		manager:      manager,
		webSocketHub: webSocketHub,
		validator:    validation.NewFileValidator(logger),
		startTime:    time.Now(),
		logger:       logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.Debug("health check",
		slog.String("version", hs.version),
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status with per-service checks
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["operations"] = hs.checkOperationsHealth()
	status.Services["data"] = hs.checkDataHealth()

	allReady := true
	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			allReady = false
			break
		}
	}

	if !allReady {
		status.Status = "not_ready"
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	var totalFiles int
	var totalSize int64

	filepath.Walk(hs.paths.DataDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			totalFiles++
			totalSize += info.Size()
		}
		return nil
	})

	stats := SystemStats{
		UptimeSeconds:  time.Since(hs.startTime).Seconds(),
		TotalFiles:     totalFiles,
		TotalSizeBytes: totalSize,
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
	}
	if hs.webSocketHub != nil {
		stats.WebSocketClients = hs.webSocketHub.ClientCount()
	}
	if hs.manager != nil {
		stats.ActiveOperations = len(hs.manager.ListOperations())
	}
	return stats, nil
}

// checkWebSocketHealth checks WebSocket hub health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.webSocketHub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "websocket hub not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.webSocketHub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkOperationsHealth checks the run manager health
func (hs *HealthService) checkOperationsHealth() ServiceHealth {
	if hs.manager == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "operation manager not initialized",
		}
	}

	if claim, ok := hs.manager.ActiveOperation(); ok {
		return ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("run %s in progress", claim.ID),
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: "idle",
	}
}

// checkDataHealth verifies the data directory exists and is writable
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if err := hs.validator.ValidateOutputDirectory(hs.paths.DataDir); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("data directory not writable: %v", err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "data directory writable",
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}
}
