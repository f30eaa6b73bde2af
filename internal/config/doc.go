// Package config provides centralized configuration management for the
// grout injection analysis system. It handles loading configuration
// from multiple sources, validation, and provides a type-safe API for
// accessing configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//	1. Environment variables (highest priority)
//	2. config.yaml beside the executable
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern GROUT_* for namespacing:
//
//	GROUT_SERVER_PORT=8080
//	GROUT_LOGGING_LEVEL=info
//	GROUT_LOGGING_OUTPUT=both
//	GROUT_UPLOAD_MAX_SIZE_BYTES=52428800
//
// # Path Management
//
// The package provides centralized path management through the Paths
// type, which handles all file system paths relative to the executable
// location:
//
//	paths, err := config.GetPaths()
//	uploadPath := paths.GetUploadPath("P0012_S3_log.xlsx")
//	reportPath := paths.GetReportPath("grout_injection_summary.csv")
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Values are within acceptable ranges
//	- Logging always stays structured JSON
//	- Required directories exist or can be created
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
