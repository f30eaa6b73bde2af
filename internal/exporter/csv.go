// Package exporter writes the analysis output tables as CSV. Reports
// land next to the source sensor file, so the destination may be held
// open by a spreadsheet program; that case degrades to a warning
// instead of failing the run.
package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// CSVWriter writes delimited report files.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a writer. A nil logger falls back to the
// process default.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures one CSV write.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // UTF-8 BOM so Excel opens the file correctly
}

// WriteCSV writes a complete file at the given absolute path.
func (w *CSVWriter) WriteCSV(path string, options WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// StreamWriter writes one record at a time, for summaries too large to
// buffer.
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter opens a stream targeting the given path and
// writes the header row immediately.
func (w *CSVWriter) CreateStreamWriter(path string, headers []string, bom bool) (*StreamWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if bom {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteRecord appends one record to the stream.
func (sw *StreamWriter) WriteRecord(record []string) error {
	if err := sw.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes and closes the stream.
func (sw *StreamWriter) Close() error {
	sw.writer.Flush()
	if err := sw.writer.Error(); err != nil {
		sw.file.Close()
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := sw.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// isLockedDestination recognizes a destination held by another
// process. Permission denials cover the POSIX side; Windows surfaces a
// file open in Excel as a sharing violation, which Go reports only as
// message text.
func isLockedDestination(err error) bool {
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		msg := strings.ToLower(pathErr.Err.Error())
		return strings.Contains(msg, "being used by another process") ||
			strings.Contains(msg, "sharing violation")
	}
	return false
}
