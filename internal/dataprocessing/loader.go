// Package dataprocessing loads raw grout injection sensor logs into
// typed, ordered samples grouped by hole. It understands the two
// export layouts produced by the logging hardware and treats cell
// level coercion failures as missing values rather than errors.
package dataprocessing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"groutflow/pkg/contracts/domain"
)

// toa5Marker is the first cell of the datalogger export variant. When
// present, the real column names sit on the second row and the two
// rows after them carry units and aggregation codes, which are
// dropped.
const toa5Marker = "TOA5"

// metadataRowsAfterHeader is the fixed number of rows discarded after
// the promoted header row in the marker variant.
const metadataRowsAfterHeader = 2

// ErrNoUsableData reports a source table whose layout cannot be
// understood (unknown headers, required column missing, no data
// rows). Callers treat the file as absent.
var ErrNoUsableData = errors.New("no usable data in source table")

// timestampLayouts lists the accepted TIMESTAMP cell formats, tried in
// order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Loader reads sensor spreadsheets into holes.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader. A nil logger falls back to the process
// default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// LoadFile reads one sensor export and returns its holes in file
// encounter order, each hole's samples sorted by timestamp. The format
// is chosen by extension: .xlsx/.xlsm via excelize, .csv via
// encoding/csv.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]*domain.Hole, error) {
	var rows [][]string
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = l.readWorkbook(path)
	case ".csv":
		rows, err = l.readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	holes, err := l.buildHoles(ctx, path, rows)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "loaded sensor file",
		slog.String("file", filepath.Base(path)),
		slog.Int("holes", len(holes)))
	return holes, nil
}

// readWorkbook pulls all rows of the first sheet.
func (l *Loader) readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets: %w", ErrNoUsableData)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// readCSV reads the whole file; records may have ragged lengths, the
// row parser pads by column index.
func (l *Loader) readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

// normalizeTable resolves the header layout. Plain exports carry the
// column names on the first row. Datalogger exports open with the
// TOA5 environment row; the names sit on the next row and the two
// metadata rows after them are dropped.
func normalizeTable(rows [][]string) (headers []string, data [][]string, err error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty table: %w", ErrNoUsableData)
	}

	if strings.TrimSpace(cellAt(rows[0], 0)) == toa5Marker {
		if len(rows) < 2+metadataRowsAfterHeader {
			return nil, nil, fmt.Errorf("datalogger export truncated before data: %w", ErrNoUsableData)
		}
		return rows[1], rows[2+metadataRowsAfterHeader:], nil
	}
	return rows[0], rows[1:], nil
}

// buildColumnMap locates every required column by exact header name.
func buildColumnMap(headers []string) (map[string]int, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.TrimSpace(h)] = i
	}

	columns := make(map[string]int, len(domain.RequiredColumns))
	for _, name := range domain.RequiredColumns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("required column %q missing: %w", name, ErrNoUsableData)
		}
		columns[name] = pos
	}
	return columns, nil
}

// buildHoles parses data rows into samples and groups them by hole in
// encounter order. Rows whose timestamp, hole id or mix code cannot be
// read are skipped with a log line; measurement cells that fail
// coercion become NaN and stay.
func (l *Loader) buildHoles(ctx context.Context, path string, rows [][]string) ([]*domain.Hole, error) {
	headers, data, err := normalizeTable(rows)
	if err != nil {
		return nil, err
	}
	columns, err := buildColumnMap(headers)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.Sample)
	var orderedIDs []string
	skipped := 0

	for rowNum, row := range data {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("load canceled: %w", ctx.Err())
		default:
		}

		sample, ok := l.parseRow(row, columns)
		if !ok {
			skipped++
			l.logger.DebugContext(ctx, "skipping unreadable row",
				slog.String("file", filepath.Base(path)),
				slog.Int("row", rowNum+1))
			continue
		}

		if _, seen := grouped[sample.HoleID]; !seen {
			orderedIDs = append(orderedIDs, sample.HoleID)
		}
		grouped[sample.HoleID] = append(grouped[sample.HoleID], sample)
	}

	if len(orderedIDs) == 0 {
		return nil, fmt.Errorf("no readable data rows (skipped %d): %w", skipped, ErrNoUsableData)
	}
	if skipped > 0 {
		l.logger.WarnContext(ctx, "skipped unreadable rows",
			slog.String("file", filepath.Base(path)),
			slog.Int("skipped", skipped))
	}

	holes := make([]*domain.Hole, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		samples := grouped[id]
		sort.SliceStable(samples, func(i, j int) bool {
			return samples[i].Timestamp.Before(samples[j].Timestamp)
		})
		hole, err := domain.NewHole(id, samples)
		if err != nil {
			return nil, fmt.Errorf("group hole %s: %w", id, err)
		}
		holes = append(holes, hole)
	}
	return holes, nil
}

// parseRow converts one data row. ok is false when the structural
// cells (hole id, timestamp, mix code) cannot be read; measurement
// cells degrade to NaN individually.
func (l *Loader) parseRow(row []string, columns map[string]int) (domain.Sample, bool) {
	holeID := strings.TrimSpace(cellAt(row, columns[domain.ColHoleNum]))
	if holeID == "" {
		return domain.Sample{}, false
	}

	ts, err := parseTimestamp(cellAt(row, columns[domain.ColTimestamp]))
	if err != nil {
		return domain.Sample{}, false
	}

	mixCode, err := parseIntCell(cellAt(row, columns[domain.ColMixNum]))
	if err != nil {
		return domain.Sample{}, false
	}
	mix, err := domain.ParseMix(mixCode)
	if err != nil {
		return domain.Sample{}, false
	}

	return domain.Sample{
		Timestamp:   ts,
		HoleID:      holeID,
		StageTop:    parseFloatCell(cellAt(row, columns[domain.ColStageTop])),
		StageBottom: parseFloatCell(cellAt(row, columns[domain.ColStageBottom])),
		Mix:         mix,
		Flow:        parseFloatCell(cellAt(row, columns[domain.ColFlow])),
		EffPressure: parseFloatCell(cellAt(row, columns[domain.ColEffPressure])),
		Lugeon:      parseFloatCell(cellAt(row, columns[domain.ColLugeon])),
		MarshGrout:  parseFloatCell(cellAt(row, columns[domain.ColMarshGrout])),
		Volume:      parseFloatCell(cellAt(row, columns[domain.ColVolume])),
	}, true
}

// cellAt tolerates short rows from ragged CSV records and trailing
// empty cells trimmed by excelize.
func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseFloatCell coerces a measurement cell, returning NaN on any
// failure so the value is excluded from statistics downstream.
func parseFloatCell(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseIntCell reads an integer cell, accepting the float renderings
// spreadsheets produce for numeric columns ("2", "2.0").
func parseIntCell(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty cell")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	n := int(math.Round(f))
	if math.Abs(f-float64(n)) > 1e-9 {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return n, nil
}
