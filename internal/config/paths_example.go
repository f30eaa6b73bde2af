//go:build example
// +build example

package config

import (
	"log/slog"
	"os"
)

// ExampleUsage demonstrates how to use the paths package throughout the application
func ExampleUsage() {
	// Always get paths from the centralized GetPaths() function
	paths, err := GetPaths()
	if err != nil {
		slog.Error("Failed to get paths", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure all directories exist at startup
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to ensure directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log all resolved paths for debugging
	paths.LogPathResolution()

	// Example 1: Upload handler saving a dropped spreadsheet
	uploadPath := paths.GetUploadPath("P0012_S3_injection_log.xlsx")
	slog.Info("Upload will be saved to", slog.String("path", uploadPath))

	// Example 2: Web-triggered analysis writing its reports
	summaryPath := paths.GetReportPath("grout_injection_summary.csv")
	slog.Info("Summary report will be generated at", slog.String("path", summaryPath))

	// Example 3: Logger writing the application log
	logPath := paths.GetLogPath("app.log")
	slog.Info("Application log is at", slog.String("path", logPath))

	// Example 4: Static frontend assets
	indexPath := paths.GetWebFilePath("index.html")
	slog.Info("Frontend entry point", slog.String("path", indexPath))
}

// Migration Guide:
//
// OLD CODE (problematic):
//   summaryPath := filepath.Join(os.Getwd(), "grout_injection_summary.csv")
//   uploadPath := "data/uploads/file.xlsx"
//
// NEW CODE (correct):
//   paths, _ := config.GetPaths()
//   summaryPath := paths.GetReportPath("grout_injection_summary.csv")
//   uploadPath := paths.GetUploadPath("file.xlsx")
//
// Benefits:
// 1. All paths relative to executable, not working directory
// 2. Consistent across all components
// 3. Cross-platform path handling
// 4. Centralized logging and debugging
// 5. Easy to test and mock
