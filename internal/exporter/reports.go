package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"groutflow/pkg/contracts/domain"
)

// Report file names, written beside the input file.
const (
	SummaryFileName  = "grout_injection_summary.csv"
	MixCountFileName = "mix_count_summary.csv"
)

// ReportWriter persists the two output tables of one analyzed file.
type ReportWriter struct {
	csv    *CSVWriter
	logger *slog.Logger
}

// NewReportWriter creates a report writer. A nil logger falls back to
// the process default.
func NewReportWriter(logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{csv: NewCSVWriter(logger), logger: logger}
}

// SummaryPath returns where the summary table for a source file goes.
func SummaryPath(sourcePath string) string {
	return filepath.Join(filepath.Dir(sourcePath), SummaryFileName)
}

// MixCountPath returns where the mix count table for a source file
// goes.
func MixCountPath(sourcePath string) string {
	return filepath.Join(filepath.Dir(sourcePath), MixCountFileName)
}

// WriteReports writes the summary and mix count tables next to the
// source file and returns the paths actually written.
func (rw *ReportWriter) WriteReports(ctx context.Context, sourcePath string, rows []domain.SummaryRow, counts domain.MixCount) ([]string, error) {
	return rw.WriteReportsTo(ctx, filepath.Dir(sourcePath), rows, counts)
}

// WriteReportsTo writes both tables into an explicit destination
// directory and returns the paths actually written. A destination
// locked by another program (the report open in Excel is the common
// case) is logged as a warning and that output is skipped; any other
// write failure aborts.
func (rw *ReportWriter) WriteReportsTo(ctx context.Context, destDir string, rows []domain.SummaryRow, counts domain.MixCount) ([]string, error) {
	var written []string

	summaryPath := filepath.Join(destDir, SummaryFileName)
	if err := rw.writeSummary(summaryPath, rows); err != nil {
		if !isLockedDestination(err) {
			return written, fmt.Errorf("write summary report: %w", err)
		}
		rw.logger.WarnContext(ctx, "summary destination is locked by another process, skipping",
			slog.String("path", summaryPath),
			slog.String("error", err.Error()))
	} else {
		written = append(written, summaryPath)
		rw.logger.InfoContext(ctx, "summary report written",
			slog.String("path", summaryPath),
			slog.Int("rows", len(rows)))
	}

	mixCountPath := filepath.Join(destDir, MixCountFileName)
	if err := rw.csv.WriteCSV(mixCountPath, WriteOptions{
		Headers:   domain.MixCountHeaders,
		Records:   counts.Rows(),
		BOMPrefix: true,
	}); err != nil {
		if !isLockedDestination(err) {
			return written, fmt.Errorf("write mix count report: %w", err)
		}
		rw.logger.WarnContext(ctx, "mix count destination is locked by another process, skipping",
			slog.String("path", mixCountPath),
			slog.String("error", err.Error()))
	} else {
		written = append(written, mixCountPath)
		rw.logger.InfoContext(ctx, "mix count report written",
			slog.String("path", mixCountPath),
			slog.Int("segments", counts.Total()))
	}

	return written, nil
}

// writeSummary streams the rows so arbitrarily long campaigns do not
// buffer the whole table twice.
func (rw *ReportWriter) writeSummary(path string, rows []domain.SummaryRow) error {
	stream, err := rw.csv.CreateStreamWriter(path, domain.SummaryHeaders, true)
	if err != nil {
		return err
	}

	for i := range rows {
		if err := stream.WriteRecord(rows[i].CSVRow()); err != nil {
			stream.Close()
			return err
		}
	}
	return stream.Close()
}
