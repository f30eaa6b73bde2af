package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groutflow/internal/config"
	"groutflow/internal/exporter"
	"groutflow/internal/files"
	"groutflow/internal/operations"
	"groutflow/internal/shared/testutil"
	"groutflow/pkg/contracts/domain"
)

func newReportService(t *testing.T) (*ReportService, *config.Paths) {
	t.Helper()

	dataDir := t.TempDir()
	paths := &config.Paths{
		DataDir:    dataDir,
		UploadsDir: filepath.Join(dataDir, "uploads"),
		ReportsDir: filepath.Join(dataDir, "reports"),
	}
	require.NoError(t, os.MkdirAll(paths.ReportsDir, 0o755))

	logger, _ := testutil.NewTestLogger(t)
	return NewReportService(files.NewDiscovery(dataDir), paths, logger), paths
}

func writeReport(t *testing.T, paths *config.Paths, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(paths.ReportsDir, name), []byte(content), 0o644))
}

func TestReportServiceReports(t *testing.T) {
	svc, paths := newReportService(t)

	writeReport(t, paths, exporter.SummaryFileName, "holeNum,stage\n")
	writeReport(t, paths, exporter.MixCountFileName, "holeNum,mixes\n")
	writeReport(t, paths, "A12_S1.xlsx", "an injection log, not a report")

	// Stagger times so newest-first ordering is observable
	older := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(paths.ReportsDir, exporter.MixCountFileName), older, older))

	reports, err := svc.Reports(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 2)
	assert.Equal(t, exporter.SummaryFileName, reports[0].Name)
	assert.Equal(t, domain.ReportKindSummary, reports[0].Kind)
	assert.Equal(t, int64(len("holeNum,stage\n")), reports[0].Size)
	assert.Equal(t, exporter.MixCountFileName, reports[1].Name)
	assert.Equal(t, domain.ReportKindMixCount, reports[1].Kind)
}

func TestReportServiceReportsNothingAnalyzedYet(t *testing.T) {
	svc, paths := newReportService(t)
	require.NoError(t, os.RemoveAll(paths.ReportsDir))

	reports, err := svc.Reports(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
}

func TestReportServiceDownload(t *testing.T) {
	svc, paths := newReportService(t)
	writeReport(t, paths, exporter.SummaryFileName, "holeNum,stage\nA12,1\n")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reports/download", nil)

	err := svc.Download(context.Background(), rec, req, exporter.SummaryFileName)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), exporter.SummaryFileName)
	assert.Equal(t, "holeNum,stage\nA12,1\n", rec.Body.String())
}

func TestReportServiceDownloadRejectsTraversal(t *testing.T) {
	svc, paths := newReportService(t)

	secret := filepath.Join(paths.DataDir, "secret.csv")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o644))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reports/download", nil)

	err := svc.Download(context.Background(), rec, req, "../secret.csv")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestReportServiceDownloadNotFound(t *testing.T) {
	svc, _ := newReportService(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reports/download", nil)

	err := svc.Download(context.Background(), rec, req, "missing.csv")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestReportServiceManifest(t *testing.T) {
	svc, paths := newReportService(t)

	manifest := operations.NewRunManifest("op-manifest", operations.ModeFull)
	manifest.RecordStepStart(operations.StepIDScan, operations.StepNameScan)
	manifest.RecordStepCompletion(operations.StepIDScan, nil, nil)
	require.NoError(t, manifest.SaveToFile(filepath.Join(paths.ReportsDir, operations.ManifestFileName)))

	loaded, err := svc.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "op-manifest", loaded.OperationID)
	assert.True(t, loaded.IsStepCompleted(operations.StepIDScan))
}

func TestReportServiceManifestMissing(t *testing.T) {
	svc, _ := newReportService(t)

	_, err := svc.Manifest(context.Background())
	assert.ErrorIs(t, err, ErrManifestNotFound)
}
