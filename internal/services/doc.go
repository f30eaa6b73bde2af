// Package services implements the business logic layer between the
// HTTP handlers and the analysis machinery. Handlers stay thin:
// everything that reads injection logs, builds charts, or talks to the
// run manager goes through a service here.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Dependency injection for loose coupling and testability
//	2. Context propagation for cancellation and tracing
//	3. Domain-focused methods that encapsulate the analysis rules
//	4. Structured logging and metrics as cross-cutting concerns
//
// # Available Services
//
//	- AnalysisService: selection listing, chart building, log uploads
//	- ReportService: generated CSV listing, download, run manifest
//	- OperationService: run submission, status, cancellation
//	- HealthService: health, readiness, and system statistics
//
// # Error Handling
//
// Services return sentinel errors handlers map to HTTP problems:
//
//	- ErrInvalidInput for malformed requests (400)
//	- ErrOperationNotFound, ErrReportNotFound for missing resources (404)
//	- Domain sentinels from internal/errors pass through unchanged so
//	  the shared RFC 7807 mapping applies
//
// # Testing
//
// Services are tested against real collaborators over temp
// directories; fixture workbooks come from internal/shared/testutil:
//
//	dir := t.TempDir()
//	testutil.CreateWorkbook(t, filepath.Join(dir, "A12_S1.xlsx"), rows)
//	svc := NewAnalysisService(files.NewDiscovery(dir), loader, paths, nil, logger)
package services
