// Package shared provides common utilities and test helpers used across the
// GroutFlow codebase. It serves as a central location for shared
// functionality that doesn't belong to any specific domain or architectural
// layer.
//
// # Structure
//
// The package is organized into the following components:
//
// - testutil: Testing utilities including log capture, fixtures, and assertions
//
// # Usage Guidelines
//
// This package should only contain:
//
// 1. Test utilities used by multiple packages
// 2. Generic helper functions with no domain-specific logic
// 3. Common constants or types used across packages
//
// It should NOT contain:
//
// 1. Business logic or analysis code
// 2. Circular dependencies with other internal packages
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - A buffered slog handler that records structured log output for assertions
//   - Sensor log fixture writers that produce workbook and CSV exports
//   - Custom assertions for captured log records
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//
//	    runThing(logger)
//
//	    testutil.AssertLogContains(t, handler, slog.LevelInfo, "thing finished")
//	}
package shared
