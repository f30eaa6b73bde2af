// Package app provides application initialization and lifecycle management
// for the grout analysis web service. It handles the orchestration of all
// major components including configuration loading, service initialization,
// and graceful shutdown procedures.
//
// # Architecture
//
// The app package follows a dependency injection pattern where all components
// are wired together at startup. This ensures loose coupling and testability.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and observability
//	3. Wire discovery, loader, assembler and report writer
//	4. Build the run manager, register the pipeline steps, start the job queue
//	5. Initialize services with their dependencies
//	6. Set up HTTP handlers and middleware
//	7. Configure and start the HTTP server
//	8. Set up graceful shutdown handlers
//
// # Usage
//
// The main entry point is typically:
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The package handles SIGINT and SIGTERM signals to ensure:
//
//	- Active requests are completed
//	- Queued analysis runs drain or time out
//	- WebSocket connections are closed cleanly
//	- Final metrics are flushed
//
// # Configuration
//
// The app package relies on the config package for all configuration
// needs. It supports both environment variables and configuration files.
//
// # Error Handling
//
// All initialization errors are returned to the caller for proper
// handling. The app does not call os.Exit() directly, allowing
// the main function to control the exit process.
package app
