package operations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	apperrors "groutflow/internal/errors"
	"groutflow/internal/exporter"
	"groutflow/internal/files"
	"groutflow/internal/report"
	"groutflow/pkg/contracts/domain"
)

// contextKeyManifest is the unexported state key the per-run manifest
// travels under so request parameters cannot collide with it.
const contextKeyManifest = "run_manifest"

// LoadedLog is one parsed injection log, in scan order
type LoadedLog struct {
	Path  string
	Holes []*domain.Hole
}

// AnalyzedLog is the assembled output tables of one injection log
type AnalyzedLog struct {
	Path    string
	Summary *report.Summary
}

// manifestFrom pulls the run manifest out of the operation state
func manifestFrom(state *OperationState) *RunManifest {
	if v, ok := state.GetContext(contextKeyManifest); ok {
		if m, ok := v.(*RunManifest); ok {
			return m
		}
	}
	return nil
}

// stringConfig reads a string configuration value with a fallback
func stringConfig(state *OperationState, key, fallback string) string {
	if v, ok := state.GetConfig(key); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// ScanStep discovers injection log spreadsheets in the uploads
// directory. In single mode it narrows the run to one file.
type ScanStep struct {
	BaseStep
	discovery *files.Discovery
	logger    *slog.Logger
	options   *StepOptions
}

// NewScanStep creates the discovery step
func NewScanStep(discovery *files.Discovery, logger *slog.Logger, options *StepOptions) *ScanStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("step", StepIDScan))
	}

	return &ScanStep{
		BaseStep:  NewBaseStep(StepIDScan, StepNameScan, nil),
		discovery: discovery,
		logger:    logger,
		options:   options,
	}
}

// Execute scans the configured directory for injection logs
func (s *ScanStep) Execute(ctx context.Context, state *OperationState) error {
	stepState := state.GetStep(s.ID())
	logsDir := stringConfig(state, ContextKeyLogsDir, "")

	s.updateProgress(state.ID, stepState, 5, "Scanning for injection logs...")

	found, err := s.discovery.FindSpreadsheetFiles(logsDir)
	if err != nil {
		return fmt.Errorf("scan uploads directory: %w", err)
	}

	if target := stringConfig(state, ContextKeyTargetFile, ""); target != "" {
		found = filterByName(found, target)
		if len(found) == 0 {
			return NewValidationError(s.ID(), fmt.Sprintf("log file %s not found in uploads directory", target))
		}
	}

	if len(found) == 0 {
		return WrapError(apperrors.ErrNothingToAnalyze, s.ID(), "no injection logs in uploads directory")
	}

	paths := make([]string, 0, len(found))
	names := make([]string, 0, len(found))
	var totalSize int64
	for _, f := range found {
		paths = append(paths, f.Path)
		names = append(names, f.Name)
		totalSize += f.Size
	}

	state.SetContext(ContextKeyInputFiles, paths)
	state.SetContext(ContextKeyFilesFound, len(paths))
	stepState.SetMetadata("files_found", len(paths))

	if manifest := manifestFrom(state); manifest != nil {
		manifest.AddData(DataTypeInjectionLogs, &DataInfo{
			Type:      DataTypeInjectionLogs,
			Location:  logsDir,
			ItemCount: len(names),
			TotalSize: totalSize,
			Items:     names,
			CreatedBy: s.ID(),
		})
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "injection logs discovered",
			slog.String("operation_id", state.ID),
			slog.String("dir", logsDir),
			slog.Int("files", len(paths)))
	}

	s.updateProgress(state.ID, stepState, 100, fmt.Sprintf("Found %d injection logs", len(paths)))
	return nil
}

// ProducedOutputs returns the spreadsheet list scanning produces
func (s *ScanStep) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{Type: DataTypeInjectionLogs, Location: "data/uploads", Pattern: "*.xlsx"},
	}
}

// CanRun always returns true; scanning has no inputs
func (s *ScanStep) CanRun(manifest *RunManifest) bool {
	return true
}

func (s *ScanStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// filterByName keeps entries whose base name matches target
func filterByName(found []files.FileInfo, target string) []files.FileInfo {
	base := filepath.Base(target)
	var kept []files.FileInfo
	for _, f := range found {
		if strings.EqualFold(f.Name, base) {
			kept = append(kept, f)
		}
	}
	return kept
}

// LoadStep parses every discovered log into per-hole sample series.
// A file that fails to parse is logged and skipped; the run only fails
// when no file yields usable data.
type LoadStep struct {
	BaseStep
	loader  LogLoader
	logger  *slog.Logger
	options *StepOptions
}

// LogLoader is what LoadStep needs from the dataprocessing package
type LogLoader interface {
	LoadFile(ctx context.Context, path string) ([]*domain.Hole, error)
}

// NewLoadStep creates the parsing step
func NewLoadStep(loader LogLoader, logger *slog.Logger, options *StepOptions) *LoadStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("step", StepIDLoad))
	}

	return &LoadStep{
		BaseStep: NewBaseStep(StepIDLoad, StepNameLoad, []string{StepIDScan}),
		loader:   loader,
		logger:   logger,
		options:  options,
	}
}

// Validate checks that the scan step left a file list behind
func (s *LoadStep) Validate(state *OperationState) error {
	if _, ok := state.GetContext(ContextKeyInputFiles); !ok {
		return fmt.Errorf("no input file list in state, run the scan step first")
	}
	return nil
}

// Execute loads each file in scan order with per-file error isolation
func (s *LoadStep) Execute(ctx context.Context, state *OperationState) error {
	stepState := state.GetStep(s.ID())

	pathsVal, _ := state.GetContext(ContextKeyInputFiles)
	paths, ok := pathsVal.([]string)
	if !ok {
		return NewValidationError(s.ID(), "input file list has unexpected type")
	}

	tracker := NewProgressTracker(s.ID(), len(paths))
	failures := &ErrorList{}
	loaded := make([]LoadedLog, 0, len(paths))
	totalHoles := 0

	for i, path := range paths {
		select {
		case <-ctx.Done():
			return NewCancellationError(s.ID())
		default:
		}

		name := filepath.Base(path)
		progress := scaleProgress(i, len(paths))
		stepState.SetMetadata("current_file", name)
		s.updateProgress(state.ID, stepState, progress,
			fmt.Sprintf("Loading %s (%d/%d, ETA %s)", name, i+1, len(paths), tracker.GetETA()))

		holes, err := s.loader.LoadFile(ctx, path)
		if err != nil {
			failures.Add(WrapError(err, s.ID(), fmt.Sprintf("load %s", name)))
			if s.logger != nil {
				s.logger.WarnContext(ctx, "injection log skipped",
					slog.String("operation_id", state.ID),
					slog.String("file", name),
					slog.String("error", err.Error()))
			}
			tracker.Increment(name)
			continue
		}

		loaded = append(loaded, LoadedLog{Path: path, Holes: holes})
		totalHoles += len(holes)
		tracker.Increment(name)
	}

	if len(loaded) == 0 {
		return WrapError(apperrors.ErrLogEmpty, s.ID(),
			fmt.Sprintf("none of the %d injection logs contained usable data", len(paths)))
	}

	state.SetContext(ContextKeyLoadedLogs, loaded)
	state.SetContext(ContextKeyFilesAnalyzed, len(loaded))
	stepState.SetMetadata("files_loaded", len(loaded))
	stepState.SetMetadata("files_skipped", len(failures.Errors))
	stepState.SetMetadata("holes", totalHoles)

	if manifest := manifestFrom(state); manifest != nil {
		manifest.AddData(DataTypeHoleSeries, &DataInfo{
			Type:      DataTypeHoleSeries,
			ItemCount: totalHoles,
			CreatedBy: s.ID(),
			Metadata: map[string]interface{}{
				"files_loaded":  len(loaded),
				"files_skipped": len(failures.Errors),
			},
		})
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "sensor data loaded",
			slog.String("operation_id", state.ID),
			slog.Int("files_loaded", len(loaded)),
			slog.Int("files_skipped", len(failures.Errors)),
			slog.Int("holes", totalHoles))
	}

	message := fmt.Sprintf("Loaded %d of %d logs (%d holes)", len(loaded), len(paths), totalHoles)
	s.updateProgress(state.ID, stepState, 100, message)
	return nil
}

// RequiredInputs declares the scanned file list dependency
func (s *LoadStep) RequiredInputs() []DataRequirement {
	return []DataRequirement{
		{Type: DataTypeInjectionLogs, MinCount: 1},
	}
}

// ProducedOutputs returns the in-memory hole series
func (s *LoadStep) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{Type: DataTypeHoleSeries},
	}
}

// CanRun requires scanned injection logs in the manifest
func (s *LoadStep) CanRun(manifest *RunManifest) bool {
	return requirementsMet(manifest, s.RequiredInputs())
}

func (s *LoadStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// AnalyzeStep segments every hole of every loaded log and assembles
// the two output tables per file.
type AnalyzeStep struct {
	BaseStep
	assembler TableAssembler
	logger    *slog.Logger
	options   *StepOptions
}

// TableAssembler is what AnalyzeStep needs from the report package
type TableAssembler interface {
	Assemble(ctx context.Context, holes []*domain.Hole) (*report.Summary, error)
}

// NewAnalyzeStep creates the regime detection step
func NewAnalyzeStep(assembler TableAssembler, logger *slog.Logger, options *StepOptions) *AnalyzeStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("step", StepIDAnalyze))
	}

	return &AnalyzeStep{
		BaseStep:  NewBaseStep(StepIDAnalyze, StepNameAnalyze, []string{StepIDLoad}),
		assembler: assembler,
		logger:    logger,
		options:   options,
	}
}

// Validate checks that the load step left hole series behind
func (s *AnalyzeStep) Validate(state *OperationState) error {
	if _, ok := state.GetContext(ContextKeyLoadedLogs); !ok {
		return fmt.Errorf("no loaded logs in state, run the load step first")
	}
	return nil
}

// Execute assembles the summary tables for each loaded log
func (s *AnalyzeStep) Execute(ctx context.Context, state *OperationState) error {
	stepState := state.GetStep(s.ID())

	loadedVal, _ := state.GetContext(ContextKeyLoadedLogs)
	loaded, ok := loadedVal.([]LoadedLog)
	if !ok {
		return NewValidationError(s.ID(), "loaded log list has unexpected type")
	}

	analyzed := make([]AnalyzedLog, 0, len(loaded))
	totalRows := 0

	for i, log := range loaded {
		select {
		case <-ctx.Done():
			return NewCancellationError(s.ID())
		default:
		}

		name := filepath.Base(log.Path)
		progress := scaleProgress(i, len(loaded))
		stepState.SetMetadata("current_file", name)
		s.updateProgress(state.ID, stepState, progress,
			fmt.Sprintf("Analyzing %s (%d/%d)", name, i+1, len(loaded)))

		summary, err := s.assembler.Assemble(ctx, log.Holes)
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "analysis skipped for file",
					slog.String("operation_id", state.ID),
					slog.String("file", name),
					slog.String("error", err.Error()))
			}
			continue
		}

		analyzed = append(analyzed, AnalyzedLog{Path: log.Path, Summary: summary})
		totalRows += len(summary.Rows)
	}

	if len(analyzed) == 0 {
		return WrapError(apperrors.ErrNothingToAnalyze, s.ID(), "no log produced analysis tables")
	}

	state.SetContext(ContextKeyAnalyzedLogs, analyzed)
	state.SetContext(ContextKeySummaryRows, totalRows)
	stepState.SetMetadata("files_analyzed", len(analyzed))
	stepState.SetMetadata("summary_rows", totalRows)

	if manifest := manifestFrom(state); manifest != nil {
		manifest.AddData(DataTypeAnalysisTables, &DataInfo{
			Type:      DataTypeAnalysisTables,
			ItemCount: len(analyzed),
			CreatedBy: s.ID(),
			Metadata: map[string]interface{}{
				"summary_rows": totalRows,
			},
		})
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "regimes detected",
			slog.String("operation_id", state.ID),
			slog.Int("files_analyzed", len(analyzed)),
			slog.Int("summary_rows", totalRows))
	}

	s.updateProgress(state.ID, stepState, 100,
		fmt.Sprintf("Analyzed %d logs (%d summary rows)", len(analyzed), totalRows))
	return nil
}

// RequiredInputs declares the hole series dependency
func (s *AnalyzeStep) RequiredInputs() []DataRequirement {
	return []DataRequirement{
		{Type: DataTypeHoleSeries, MinCount: 1},
	}
}

// ProducedOutputs returns the assembled tables
func (s *AnalyzeStep) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{Type: DataTypeAnalysisTables},
	}
}

// CanRun requires loaded hole series in the manifest
func (s *AnalyzeStep) CanRun(manifest *RunManifest) bool {
	return requirementsMet(manifest, s.RequiredInputs())
}

func (s *AnalyzeStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// ExportStep writes the report CSVs. In the default mode it folds all
// analyzed logs into one summary and one mix count table under the
// reports directory; with beside_input set it writes each log's tables
// next to the log itself.
type ExportStep struct {
	BaseStep
	writer      ReportPersister
	besideInput bool
	logger      *slog.Logger
	options     *StepOptions
}

// ReportPersister is what ExportStep needs from the exporter package
type ReportPersister interface {
	WriteReports(ctx context.Context, sourcePath string, rows []domain.SummaryRow, counts domain.MixCount) ([]string, error)
	WriteReportsTo(ctx context.Context, destDir string, rows []domain.SummaryRow, counts domain.MixCount) ([]string, error)
}

// NewExportStep creates the report writing step
func NewExportStep(writer ReportPersister, logger *slog.Logger, options *StepOptions) *ExportStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("step", StepIDExport))
	}

	return &ExportStep{
		BaseStep: NewBaseStep(StepIDExport, StepNameExport, []string{StepIDAnalyze}),
		writer:   writer,
		logger:   logger,
		options:  options,
	}
}

// SetBesideInput switches per-file output next to each log
func (s *ExportStep) SetBesideInput(beside bool) {
	s.besideInput = beside
}

// Validate checks that the analyze step left tables behind
func (s *ExportStep) Validate(state *OperationState) error {
	if _, ok := state.GetContext(ContextKeyAnalyzedLogs); !ok {
		return fmt.Errorf("no analysis tables in state, run the analyze step first")
	}
	return nil
}

// Execute writes the summary and mix count CSVs
func (s *ExportStep) Execute(ctx context.Context, state *OperationState) error {
	stepState := state.GetStep(s.ID())

	analyzedVal, _ := state.GetContext(ContextKeyAnalyzedLogs)
	analyzed, ok := analyzedVal.([]AnalyzedLog)
	if !ok {
		return NewValidationError(s.ID(), "analysis table list has unexpected type")
	}

	s.updateProgress(state.ID, stepState, 10, "Writing reports...")

	var written []string
	var err error
	if s.besideInput {
		written, err = s.writePerFile(ctx, state, stepState, analyzed)
	} else {
		written, err = s.writeCombined(ctx, state, analyzed)
	}
	if err != nil {
		return WrapError(err, s.ID(), "write reports")
	}

	state.SetContext(ContextKeyOutputFiles, written)
	stepState.SetMetadata("output_files", written)

	if manifest := manifestFrom(state); manifest != nil {
		names := make([]string, 0, len(written))
		for _, w := range written {
			names = append(names, filepath.Base(w))
		}
		manifest.AddData(DataTypeReportFiles, &DataInfo{
			Type:      DataTypeReportFiles,
			Location:  stringConfig(state, ContextKeyReportsDir, ""),
			ItemCount: len(written),
			Items:     names,
			CreatedBy: s.ID(),
		})
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "reports written",
			slog.String("operation_id", state.ID),
			slog.Int("files", len(written)))
	}

	s.updateProgress(state.ID, stepState, 100, fmt.Sprintf("Wrote %d report files", len(written)))
	return nil
}

// writeCombined folds every analyzed log into one pair of tables under
// the reports directory.
func (s *ExportStep) writeCombined(ctx context.Context, state *OperationState, analyzed []AnalyzedLog) ([]string, error) {
	reportsDir := stringConfig(state, ContextKeyReportsDir, "")
	if reportsDir == "" {
		return nil, fmt.Errorf("no reports directory configured")
	}

	var rows []domain.SummaryRow
	counts := domain.NewMixCount()
	for _, a := range analyzed {
		rows = append(rows, a.Summary.Rows...)
		for mix, n := range a.Summary.Counts {
			counts[mix] += n
		}
	}

	return s.writer.WriteReportsTo(ctx, reportsDir, rows, counts)
}

// writePerFile writes each log's tables next to the log itself
func (s *ExportStep) writePerFile(ctx context.Context, state *OperationState, stepState *StepState, analyzed []AnalyzedLog) ([]string, error) {
	var written []string
	for i, a := range analyzed {
		select {
		case <-ctx.Done():
			return written, NewCancellationError(s.ID())
		default:
		}

		name := filepath.Base(a.Path)
		s.updateProgress(state.ID, stepState, scaleProgress(i, len(analyzed)),
			fmt.Sprintf("Writing reports for %s (%d/%d)", name, i+1, len(analyzed)))

		paths, err := s.writer.WriteReports(ctx, a.Path, a.Summary.Rows, a.Summary.Counts)
		if err != nil {
			return written, fmt.Errorf("reports for %s: %w", name, err)
		}
		written = append(written, paths...)
	}
	return written, nil
}

// RequiredInputs declares the analysis table dependency
func (s *ExportStep) RequiredInputs() []DataRequirement {
	return []DataRequirement{
		{Type: DataTypeAnalysisTables, MinCount: 1},
	}
}

// ProducedOutputs returns the report CSVs
func (s *ExportStep) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{Type: DataTypeReportFiles, Location: "data/reports", Pattern: "*.csv"},
	}
}

// CanRun requires assembled analysis tables in the manifest
func (s *ExportStep) CanRun(manifest *RunManifest) bool {
	return requirementsMet(manifest, s.RequiredInputs())
}

func (s *ExportStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// scaleProgress maps item i of n onto a 5..95 band so 0 and 100 stay
// reserved for step start and completion.
func scaleProgress(i, n int) int {
	if n <= 0 {
		return 95
	}
	return 5 + (90*i)/n
}

// NewDefaultRegistry wires the four standard steps into a registry
func NewDefaultRegistry(discovery *files.Discovery, loader LogLoader, assembler TableAssembler, writer *exporter.ReportWriter, logger *slog.Logger, options *StepOptions) (*Registry, error) {
	registry := NewRegistry()

	steps := []Step{
		NewScanStep(discovery, logger, options),
		NewLoadStep(loader, logger, options),
		NewAnalyzeStep(assembler, logger, options),
		NewExportStep(writer, logger, options),
	}
	for _, step := range steps {
		if err := registry.Register(step); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
