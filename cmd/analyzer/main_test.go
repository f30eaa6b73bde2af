package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groutflow/internal/exporter"
	"groutflow/internal/validation"
)

var sensorHeaders = []string{
	"holeNum", "stageTop", "stageBottom", "TIMESTAMP", "mixNum",
	"flow", "effPressure", "Lugeon", "vmarshGrout", "volume",
}

func dataRow(hole, ts, mix, flow string) []string {
	return []string{hole, "12.5", "17.5", ts, mix, flow, "4.2", "1.1", "35", "120"}
}

func validSensorRows() [][]string {
	return [][]string{
		sensorHeaders,
		dataRow("P0012", "2024-03-11 08:00:00", "1", "10"),
		dataRow("P0012", "2024-03-11 08:01:00", "1", "11"),
		dataRow("P0012", "2024-03-11 08:02:00", "1", "12"),
		dataRow("P0012", "2024-03-11 08:03:00", "2", "14"),
		dataRow("P0012", "2024-03-11 08:04:00", "2", "15"),
	}
}

func writeCSV(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDirectoryBatch(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "P0012_S3_inj.csv", validSensorRows())
	// Valid table but a name outside the hole/stage convention: skipped.
	writeCSV(t, dir, "observations.csv", validSensorRows())
	// Not a spreadsheet at all: never scanned.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("field notes"), 0644))

	err := run(context.Background(), testLogger(), dir, "")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, exporter.SummaryFileName))
	assert.FileExists(t, filepath.Join(dir, exporter.MixCountFileName))
}

func TestRunSingleFileWithDestination(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	path := writeCSV(t, inDir, "P0012_S3_inj.csv", validSensorRows())

	err := run(context.Background(), testLogger(), path, outDir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, exporter.SummaryFileName))
	assert.FileExists(t, filepath.Join(outDir, exporter.MixCountFileName))
	assert.NoFileExists(t, filepath.Join(inDir, exporter.SummaryFileName))
}

func TestRunSummaryHasRows(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "P0012_S3_inj.csv", validSensorRows())

	require.NoError(t, run(context.Background(), testLogger(), path, ""))

	f, err := os.Open(filepath.Join(dir, exporter.SummaryFileName))
	require.NoError(t, err)
	defer f.Close()

	content, err := io.ReadAll(f)
	require.NoError(t, err)

	// One water segment plus one terminal mix segment, after the header.
	lines := 0
	for _, b := range content {
		if b == '\n' {
			lines++
		}
	}
	assert.GreaterOrEqual(t, lines, 3)
}

func TestRunIsolatesBadFiles(t *testing.T) {
	dir := t.TempDir()
	// Matching name, but the table is unreadable.
	writeCSV(t, dir, "Q0031_S1_inj.csv", [][]string{
		{"wrong", "headers"},
		{"1", "2"},
	})
	writeCSV(t, dir, "P0012_S3_inj.csv", validSensorRows())

	err := run(context.Background(), testLogger(), dir, "")
	require.NoError(t, err)

	// The good file still produced its reports.
	assert.FileExists(t, filepath.Join(dir, exporter.SummaryFileName))
}

func TestRunMissingInput(t *testing.T) {
	err := run(context.Background(), testLogger(), "/non/existent/P0012_S3_inj.csv", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat input path")
}

func TestRunRejectsUnsupportedSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("field notes"), 0644))

	err := run(context.Background(), testLogger(), path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a supported spreadsheet")
}

func TestRunCanceledBeforeWork(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "P0012_S3_inj.csv", validSensorRows())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, run(ctx, testLogger(), dir, ""))
	assert.NoFileExists(t, filepath.Join(dir, exporter.SummaryFileName))
}

func TestCollectInputs(t *testing.T) {
	validator := validation.NewFileValidator(testLogger())

	t.Run("directory scan filters extensions", func(t *testing.T) {
		dir := t.TempDir()
		writeCSV(t, dir, "P0012_S3_inj.csv", validSensorRows())
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

		inputs, err := collectInputs(testLogger(), validator, dir)
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		assert.Equal(t, "P0012_S3_inj.csv", inputs[0].Name)
	})

	t.Run("single file passes validation", func(t *testing.T) {
		dir := t.TempDir()
		path := writeCSV(t, dir, "P0012_S3_inj.csv", validSensorRows())

		inputs, err := collectInputs(testLogger(), validator, path)
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		assert.Equal(t, path, inputs[0].Path)
	})

	t.Run("generated reports are not rescanned", func(t *testing.T) {
		dir := t.TempDir()
		writeCSV(t, dir, "P0012_S3_inj.csv", validSensorRows())
		require.NoError(t, run(context.Background(), testLogger(), dir, ""))

		inputs, err := collectInputs(testLogger(), validator, dir)
		require.NoError(t, err)
		require.Len(t, inputs, 1, "report CSVs beside the input must not become inputs")
	})
}
