package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"groutflow/internal/config"
	"groutflow/internal/exporter"
	"groutflow/internal/files"
	"groutflow/internal/operations"
	"groutflow/pkg/contracts/domain"
)

// ReportService serves the analysis outputs: listing generated CSVs,
// streaming them for download, and exposing the last run's manifest.
type ReportService struct {
	discovery *files.Discovery
	paths     *config.Paths
	logger    *slog.Logger
}

// NewReportService creates a report service over the shared discovery
func NewReportService(discovery *files.Discovery, paths *config.Paths, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		discovery: discovery,
		paths:     paths,
		logger:    logger,
	}
}

// Reports lists the generated report CSVs, newest first. A missing
// reports directory just means nothing has been analyzed yet.
func (s *ReportService) Reports(ctx context.Context) ([]domain.ReportFile, error) {
	found, err := s.discovery.FindReportFiles(s.paths.ReportsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.ReportFile{}, nil
		}
		return nil, fmt.Errorf("scan reports directory: %w", err)
	}

	reports := make([]domain.ReportFile, 0, len(found))
	for _, f := range found {
		reports = append(reports, domain.ReportFile{
			Name:     f.Name,
			Path:     f.Name,
			Kind:     reportKind(f.Name),
			Size:     f.Size,
			Modified: f.ModTime,
		})
	}

	s.logger.DebugContext(ctx, "reports scanned",
		slog.String("dir", s.paths.ReportsDir),
		slog.Int("count", len(reports)))
	return reports, nil
}

// Download streams one report file to the response. The filename is
// resolved against the reports directory only; anything that escapes
// it is rejected before touching the filesystem.
func (s *ReportService) Download(ctx context.Context, w http.ResponseWriter, r *http.Request, filename string) error {
	cleaned := filepath.Clean(filepath.FromSlash(filename))
	path := filepath.Join(s.paths.ReportsDir, cleaned)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve report path: %w", err)
	}
	absDir, err := filepath.Abs(s.paths.ReportsDir)
	if err != nil {
		return fmt.Errorf("resolve reports directory: %w", err)
	}
	if !strings.HasPrefix(absPath, absDir) {
		s.logger.WarnContext(ctx, "report download outside reports directory",
			slog.String("requested", filename),
			slog.String("resolved", absPath))
		return fmt.Errorf("%w: %s", ErrInvalidPath, filename)
	}

	if _, err := os.Stat(absPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrReportNotFound, filename)
		}
		return fmt.Errorf("stat report: %w", err)
	}

	s.logger.InfoContext(ctx, "report download",
		slog.String("file", filepath.Base(cleaned)))

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(cleaned)))
	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, absPath)
	return nil
}

// Manifest returns the audit record of the most recent analysis run
func (s *ReportService) Manifest(ctx context.Context) (*operations.RunManifest, error) {
	path := filepath.Join(s.paths.ReportsDir, operations.ManifestFileName)
	manifest, err := operations.LoadManifestFromFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("read run manifest: %w", err)
	}
	return manifest, nil
}

// reportKind maps the fixed output filenames to their report kind
func reportKind(name string) domain.ReportKind {
	switch name {
	case exporter.SummaryFileName:
		return domain.ReportKindSummary
	case exporter.MixCountFileName:
		return domain.ReportKindMixCount
	}
	return ""
}
