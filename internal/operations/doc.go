// Package operations provides the step-based execution framework that
// orchestrates a full analysis run over a directory of injection logs.
//
// A run moves through four steps with explicit dependencies:
//
//   - scan: discover injection log spreadsheets in the uploads directory
//   - load: parse each log into per-hole sample series
//   - analyze: segment every hole and assemble the summary tables
//   - export: write the summary and mix count CSVs
//
// Core components:
//
// Manager: the orchestrator. It owns run state, enforces the
// one-run-at-a-time rule, applies per-step timeouts and retry policy,
// and reports every transition through the StatusBroadcaster.
//
// Step: one unit of work. Steps declare dependencies and are executed
// in topological order by the Registry.
//
// Registry: step registration plus dependency ordering and validation.
//
// StatusBroadcaster: the single authority for run status. It folds step
// updates into one OperationSnapshot and pushes complete snapshots to
// the WebSocket hub, so the frontend never has to merge partial events.
//
// JobQueue: async submission. The HTTP layer enqueues a run and returns
// immediately; a worker drains the queue and drives the Manager.
//
// Example:
//
//	registry := operations.NewRegistry()
//	registry.Register(operations.NewScanStep(discovery, logger, opts))
//	registry.Register(operations.NewLoadStep(loader, logger, opts))
//	registry.Register(operations.NewAnalyzeStep(assembler, logger, opts))
//	registry.Register(operations.NewExportStep(writer, logger, opts))
//
//	manager := operations.NewManager(hub, registry, operations.NewConfig())
//	resp, err := manager.Execute(ctx, operations.OperationRequest{Mode: operations.ModeFull})
package operations
