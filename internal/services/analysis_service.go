package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"groutflow/internal/chartdata"
	"groutflow/internal/config"
	"groutflow/internal/dataprocessing"
	apperrors "groutflow/internal/errors"
	"groutflow/internal/files"
	"groutflow/internal/infrastructure"
	"groutflow/pkg/contracts/domain"
)

// AnalysisService answers the read side of the web UI: which hole and
// stage selections exist, and the chart data behind each view. Every
// chart call reloads the backing spreadsheet, so results always
// reflect the files currently on disk.
type AnalysisService struct {
	discovery *files.Discovery
	loader    *dataprocessing.Loader
	paths     *config.Paths
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger
}

// NewAnalysisService creates an analysis service over the shared
// discovery and loader
func NewAnalysisService(discovery *files.Discovery, loader *dataprocessing.Loader, paths *config.Paths, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		discovery: discovery,
		loader:    loader,
		paths:     paths,
		metrics:   metrics,
		logger:    logger,
	}
}

// Selections lists the hole and stage pairs available for charting,
// sorted by hole then stage
func (s *AnalysisService) Selections(ctx context.Context) ([]domain.Selection, error) {
	selections, err := s.discovery.Selections(s.paths.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("scan uploads directory: %w", err)
	}
	if selections == nil {
		selections = []domain.Selection{}
	}

	s.logger.DebugContext(ctx, "selections scanned",
		slog.String("dir", s.paths.UploadsDir),
		slog.Int("count", len(selections)))
	return selections, nil
}

// Chart loads the selected log and builds the requested view over it.
// The concrete return type depends on the view; handlers render it
// straight to JSON.
func (s *AnalysisService) Chart(ctx context.Context, req domain.ChartRequest) (interface{}, error) {
	start := time.Now()

	stage, err := parseStage(req.Stage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sel, path, ok := s.discovery.FindSelection(s.paths.UploadsDir, req.HoleID, stage)
	if !ok {
		return nil, fmt.Errorf("%w: hole %s stage %d", apperrors.ErrLogNotFound, req.HoleID, stage)
	}

	holes, err := s.loader.LoadFile(ctx, path)
	if err != nil {
		if errors.Is(err, dataprocessing.ErrNoUsableData) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrLogEmpty, sel.Filename)
		}
		return nil, fmt.Errorf("load %s: %w", sel.Filename, err)
	}
	hole := matchHole(holes, sel.HoleID)

	metric := req.Metric
	if metric == "" {
		metric = domain.MetricFlow
	}

	var chart interface{}
	switch req.View {
	case domain.ChartViewTimeseries:
		chart = chartdata.Timeseries(sel, hole)
	case domain.ChartViewScatter:
		chart = chartdata.Scatter(sel, hole)
	case domain.ChartViewHistogram:
		chart, err = chartdata.Histogram(sel, hole, metric)
	case domain.ChartViewBox:
		chart, err = chartdata.Box(sel, hole, metric)
	default:
		return nil, fmt.Errorf("%w: unknown chart view %q", ErrInvalidInput, req.View)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	infrastructure.RecordChartRequest(ctx, s.metrics, req.View, metric, time.Since(start))
	s.logger.InfoContext(ctx, "chart built",
		slog.String("hole", sel.HoleID),
		slog.String("stage", sel.StageLabel()),
		slog.String("view", req.View),
		slog.Duration("duration", time.Since(start)))
	return chart, nil
}

// SaveUpload stores one uploaded injection log in the uploads
// directory. The filename must follow the hole/stage naming convention
// so the run steps and chart endpoints can find it later.
func (s *AnalysisService) SaveUpload(ctx context.Context, filename string, r io.Reader) (domain.Selection, int64, error) {
	base := filepath.Base(filename)

	ext := strings.ToLower(filepath.Ext(base))
	if ext != ".xlsx" && ext != ".xlsm" && ext != ".csv" {
		return domain.Selection{}, 0, fmt.Errorf("%w: %s", ErrInvalidFileType, ext)
	}

	sel, err := domain.ParseSelectionName(base)
	if err != nil {
		return domain.Selection{}, 0, fmt.Errorf("%w: %v", apperrors.ErrLogNameInvalid, err)
	}

	if err := os.MkdirAll(s.paths.UploadsDir, 0o755); err != nil {
		return domain.Selection{}, 0, fmt.Errorf("create uploads directory: %w", err)
	}

	dest := s.paths.GetUploadPath(base)
	f, err := os.Create(dest)
	if err != nil {
		return domain.Selection{}, 0, fmt.Errorf("create upload file: %w", err)
	}
	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(dest)
		return domain.Selection{}, 0, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.Selection{}, 0, fmt.Errorf("close upload: %w", err)
	}

	if s.metrics != nil {
		s.metrics.UploadBytesReceived.Add(ctx, written)
	}
	s.logger.InfoContext(ctx, "upload stored",
		slog.String("file", base),
		slog.String("hole", sel.HoleID),
		slog.String("stage", sel.StageLabel()),
		slog.Int64("bytes", written))
	return sel, written, nil
}

// parseStage accepts both the bare stage number and the S-prefixed
// label used in filenames and chart titles
func parseStage(raw string) (int, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(raw, "S"), "s")
	stage, err := strconv.Atoi(trimmed)
	if err != nil || stage < 0 {
		return 0, fmt.Errorf("stage %q is not a number or S-label", raw)
	}
	return stage, nil
}

// matchHole picks the hole matching the selection's ID. Loggers
// sometimes write the hole column in a different case than the
// filename; when nothing matches at all, the first hole in the file is
// charted rather than nothing.
func matchHole(holes []*domain.Hole, holeID string) *domain.Hole {
	for _, h := range holes {
		if strings.EqualFold(h.ID, holeID) {
			return h
		}
	}
	return holes[0]
}
