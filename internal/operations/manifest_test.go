package operations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunManifest(t *testing.T) {
	manifest := NewRunManifest("op-1", ModeFull)

	assert.Equal(t, "op-1", manifest.OperationID)
	assert.Equal(t, ModeFull, manifest.Mode)
	assert.Equal(t, "pending", manifest.Status)
	assert.NotNil(t, manifest.AvailableData)
	assert.Empty(t, manifest.CompletedSteps)
	assert.False(t, manifest.StartTime.IsZero())
}

func TestManifestDataTracking(t *testing.T) {
	manifest := NewRunManifest("op-1", ModeFull)

	assert.False(t, manifest.HasData(DataTypeInjectionLogs))
	_, ok := manifest.GetData(DataTypeInjectionLogs)
	assert.False(t, ok)

	manifest.AddData(DataTypeInjectionLogs, &DataInfo{
		Type:      DataTypeInjectionLogs,
		Location:  "/data/uploads",
		ItemCount: 3,
		Items:     []string{"A12_S1.xlsx", "A12_S2.xlsx", "B03_S1.xlsx"},
		CreatedBy: StepIDScan,
	})

	assert.True(t, manifest.HasData(DataTypeInjectionLogs))
	info, ok := manifest.GetData(DataTypeInjectionLogs)
	require.True(t, ok)
	assert.Equal(t, 3, info.ItemCount)
	assert.Equal(t, StepIDScan, info.CreatedBy)
	assert.False(t, info.CreatedAt.IsZero(), "AddData stamps creation time")
}

func TestManifestStepRecords(t *testing.T) {
	manifest := NewRunManifest("op-1", ModeFull)

	manifest.RecordStepStart(StepIDScan, StepNameScan)
	require.Len(t, manifest.CompletedSteps, 1)
	assert.Equal(t, "running", manifest.CompletedSteps[0].Status)
	assert.False(t, manifest.IsStepCompleted(StepIDScan))

	// A retry re-enters the same record instead of appending another
	manifest.RecordStepStart(StepIDScan, StepNameScan)
	assert.Len(t, manifest.CompletedSteps, 1)

	manifest.RecordStepCompletion(StepIDScan, []string{DataTypeInjectionLogs}, map[string]interface{}{
		"files_found": 3,
	})
	require.Len(t, manifest.CompletedSteps, 1)
	record := manifest.CompletedSteps[0]
	assert.Equal(t, "completed", record.Status)
	assert.Equal(t, []string{DataTypeInjectionLogs}, record.OutputData)
	assert.Equal(t, 3, record.Metadata["files_found"])
	assert.NotEmpty(t, record.Duration)
	assert.True(t, manifest.IsStepCompleted(StepIDScan))
}

func TestManifestStepFailure(t *testing.T) {
	manifest := NewRunManifest("op-1", ModeFull)
	manifest.SetStatus("running")

	manifest.RecordStepStart(StepIDLoad, StepNameLoad)
	manifest.RecordStepFailure(StepIDLoad, errors.New("no usable rows"))

	require.Len(t, manifest.CompletedSteps, 1)
	assert.Equal(t, "failed", manifest.CompletedSteps[0].Status)
	assert.Equal(t, "no usable rows", manifest.CompletedSteps[0].Error)
	assert.Equal(t, "failed", manifest.Status)
	assert.Contains(t, manifest.Error, "step load failed")
	assert.False(t, manifest.IsStepCompleted(StepIDLoad))
}

func TestManifestGetProgress(t *testing.T) {
	manifest := NewRunManifest("op-1", ModeFull)
	assert.Equal(t, 0, manifest.GetProgress())

	manifest.RecordStepStart(StepIDScan, StepNameScan)
	manifest.RecordStepCompletion(StepIDScan, nil, nil)
	manifest.RecordStepStart(StepIDLoad, StepNameLoad)
	manifest.RecordStepCompletion(StepIDLoad, nil, nil)

	// Two of the four pipeline steps done
	assert.Equal(t, 50, manifest.GetProgress())
}

func TestManifestScanDataDirectory(t *testing.T) {
	manifest := NewRunManifest("op-1", ModeFull)

	err := manifest.ScanDataDirectory(DataTypeInjectionLogs, "/nonexistent/dir", "*.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory does not exist")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A12_S1.xlsx"), []byte("abcd"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B03_S2.xlsx"), []byte("efgh"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644))

	require.NoError(t, manifest.ScanDataDirectory(DataTypeInjectionLogs, dir, "*.xlsx"))

	info, ok := manifest.GetData(DataTypeInjectionLogs)
	require.True(t, ok)
	assert.Equal(t, 2, info.ItemCount)
	assert.ElementsMatch(t, []string{"A12_S1.xlsx", "B03_S2.xlsx"}, info.Items)
	assert.Equal(t, int64(8), info.TotalSize)
	assert.Equal(t, dir, info.Location)
}

func TestManifestSaveAndLoad(t *testing.T) {
	manifest := NewRunManifest("op-save", ModeSingle)
	manifest.LogsDir = "/data/uploads"
	manifest.ReportsDir = "/data/reports"
	manifest.RecordStepStart(StepIDScan, StepNameScan)
	manifest.RecordStepCompletion(StepIDScan, []string{DataTypeInjectionLogs}, nil)
	manifest.AddData(DataTypeInjectionLogs, &DataInfo{Type: DataTypeInjectionLogs, ItemCount: 1})
	manifest.SetStatus("completed")

	path := filepath.Join(t.TempDir(), ManifestFileName)
	require.NoError(t, manifest.SaveToFile(path))

	loaded, err := LoadManifestFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "op-save", loaded.OperationID)
	assert.Equal(t, ModeSingle, loaded.Mode)
	assert.Equal(t, "completed", loaded.Status)
	assert.True(t, loaded.IsStepCompleted(StepIDScan))
	assert.True(t, loaded.HasData(DataTypeInjectionLogs))

	_, err = LoadManifestFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestManifestClone(t *testing.T) {
	manifest := NewRunManifest("op-clone", ModeFull)
	manifest.AddData(DataTypeInjectionLogs, &DataInfo{Type: DataTypeInjectionLogs, ItemCount: 2})
	manifest.RecordStepStart(StepIDScan, StepNameScan)

	clone := manifest.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, manifest.OperationID, clone.OperationID)
	assert.True(t, clone.HasData(DataTypeInjectionLogs))

	// Mutating the clone leaves the original alone
	clone.AddData(DataTypeHoleSeries, &DataInfo{Type: DataTypeHoleSeries})
	clone.RecordStepCompletion(StepIDScan, nil, nil)
	assert.False(t, manifest.HasData(DataTypeHoleSeries))
	assert.False(t, manifest.IsStepCompleted(StepIDScan))
}
