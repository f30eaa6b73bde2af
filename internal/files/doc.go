// Package files provides file system discovery utilities for the
// grout injection analysis application.
//
// Discovery finds injection log spreadsheets and generated report
// files on disk and derives the hole/stage selections the web UI
// offers. Files whose names do not follow the hole naming convention
// are skipped with a log line rather than failing the scan.
//
// Example usage:
//
//	// Create a discovery instance
//	discovery := files.NewDiscovery("/path/to/base")
//
//	// Find all injection log spreadsheets
//	logs, err := discovery.FindSpreadsheetFiles("data/uploads")
//
//	// Derive the selector entries for the UI
//	selections, err := discovery.Selections("data/uploads")
package files
