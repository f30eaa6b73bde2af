package operations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	config := NewConfig()

	assert.Equal(t, ExecutionModeSequential, config.ExecutionMode)
	assert.False(t, config.ContinueOnError)
	assert.Equal(t, 1, config.MaxConcurrency)
	assert.True(t, config.SaveManifest)

	assert.Equal(t, DefaultScanTimeout, config.GetStepTimeout(StepIDScan))
	assert.Equal(t, DefaultLoadTimeout, config.GetStepTimeout(StepIDLoad))
	assert.Equal(t, DefaultAnalyzeTimeout, config.GetStepTimeout(StepIDAnalyze))
	assert.Equal(t, DefaultExportTimeout, config.GetStepTimeout(StepIDExport))
	assert.Equal(t, DefaultStepTimeout, config.GetStepTimeout("unknown"))

	assert.Equal(t, 3, config.RetryConfig.MaxAttempts)
}

func TestConfigStepTimeout(t *testing.T) {
	config := &Config{}
	config.SetStepTimeout(StepIDLoad, 2*time.Minute)

	assert.Equal(t, 2*time.Minute, config.GetStepTimeout(StepIDLoad))
	assert.Equal(t, DefaultStepTimeout, config.GetStepTimeout(StepIDScan))
}

func TestConfigStepConfig(t *testing.T) {
	config := NewConfig()

	_, ok := config.GetStepConfig(StepIDScan)
	assert.False(t, ok)

	config.SetStepConfig(StepIDScan, ScanStepConfig{TargetFile: "A12_S1.xlsx"})

	raw, ok := config.GetStepConfig(StepIDScan)
	require.True(t, ok)
	scanConfig, ok := raw.(ScanStepConfig)
	require.True(t, ok)
	assert.Equal(t, "A12_S1.xlsx", scanConfig.TargetFile)
}

func TestConfigBuilder(t *testing.T) {
	retry := RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}

	config := NewConfigBuilder().
		WithExecutionMode(ExecutionModeSequential).
		WithStepTimeout(StepIDExport, 90*time.Second).
		WithRetryConfig(retry).
		WithContinueOnError(true).
		WithMaxConcurrency(2).
		WithSaveManifest(false).
		WithStepConfig(StepIDExport, ExportStepConfig{BesideInput: true}).
		Build()

	assert.Equal(t, 90*time.Second, config.GetStepTimeout(StepIDExport))
	assert.Equal(t, 1, config.RetryConfig.MaxAttempts)
	assert.True(t, config.ContinueOnError)
	assert.Equal(t, 2, config.MaxConcurrency)
	assert.False(t, config.SaveManifest)

	raw, ok := config.GetStepConfig(StepIDExport)
	require.True(t, ok)
	exportConfig, ok := raw.(ExportStepConfig)
	require.True(t, ok)
	assert.True(t, exportConfig.BesideInput)
}

func TestNewRetryConfig(t *testing.T) {
	retry := NewRetryConfig()

	assert.Equal(t, 3, retry.MaxAttempts)
	assert.Equal(t, 1*time.Second, retry.InitialDelay)
	assert.Equal(t, 30*time.Second, retry.MaxDelay)
	assert.Equal(t, 2.0, retry.Multiplier)
}
