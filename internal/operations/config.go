package operations

import (
	"time"
)

// Config represents the run execution configuration
type Config struct {
	// Execution mode (sequential or parallel)
	ExecutionMode ExecutionMode `json:"execution_mode"`

	// Step-specific timeouts
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// Retry configuration for steps
	RetryConfig RetryConfig `json:"retry_config"`

	// Whether to continue when a step fails
	ContinueOnError bool `json:"continue_on_error"`

	// Maximum concurrent steps (for parallel execution)
	MaxConcurrency int `json:"max_concurrency"`

	// Whether to save the run manifest beside the reports
	SaveManifest bool `json:"save_manifest"`

	// Custom step configurations
	StepConfigs map[string]interface{} `json:"step_configs"`
}

// NewConfig returns the default run configuration
func NewConfig() *Config {
	return &Config{
		ExecutionMode: ExecutionModeSequential,
		StepTimeouts: map[string]time.Duration{
			StepIDScan:    DefaultScanTimeout,
			StepIDLoad:    DefaultLoadTimeout,
			StepIDAnalyze: DefaultAnalyzeTimeout,
			StepIDExport:  DefaultExportTimeout,
		},
		RetryConfig:     NewRetryConfig(),
		ContinueOnError: false,
		MaxConcurrency:  1,
		SaveManifest:    true,
		StepConfigs:     make(map[string]interface{}),
	}
}

// GetStepTimeout returns the timeout for a specific step
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok {
		return timeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific step
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}

// GetStepConfig returns the configuration for a specific step
func (c *Config) GetStepConfig(stepID string) (interface{}, bool) {
	if c.StepConfigs == nil {
		return nil, false
	}
	config, ok := c.StepConfigs[stepID]
	return config, ok
}

// SetStepConfig sets the configuration for a specific step
func (c *Config) SetStepConfig(stepID string, config interface{}) {
	if c.StepConfigs == nil {
		c.StepConfigs = make(map[string]interface{})
	}
	c.StepConfigs[stepID] = config
}

// StepConfig represents configuration for individual steps
type StepConfig struct {
	// Step identification
	ID string `json:"id"`

	// Step type
	Type string `json:"type"`

	// Step dependencies
	Dependencies []string `json:"dependencies,omitempty"`

	// Whether this step is enabled
	Enabled bool `json:"enabled"`

	// Whether to skip this step on failure
	SkipOnFailure bool `json:"skip_on_failure"`

	// Custom timeout for this step
	Timeout time.Duration `json:"timeout"`

	// Retry configuration override
	RetryConfig *RetryConfig `json:"retry_config,omitempty"`

	// Step-specific parameters
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ScanStepConfig configures the injection log discovery step
type ScanStepConfig struct {
	StepConfig
	LogsDir    string `json:"logs_dir"`
	TargetFile string `json:"target_file,omitempty"`
}

// LoadStepConfig configures the sensor data loading step
type LoadStepConfig struct {
	StepConfig
	StrictColumns bool `json:"strict_columns"`
}

// AnalyzeStepConfig configures the regime detection step
type AnalyzeStepConfig struct {
	StepConfig
}

// ExportStepConfig configures the report writing step
type ExportStepConfig struct {
	StepConfig
	ReportsDir  string `json:"reports_dir"`
	BesideInput bool   `json:"beside_input"`
}

// ConfigBuilder provides a fluent interface for building run configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithExecutionMode sets the execution mode
func (b *ConfigBuilder) WithExecutionMode(mode ExecutionMode) *ConfigBuilder {
	b.config.ExecutionMode = mode
	return b
}

// WithStepTimeout sets the timeout for a step
func (b *ConfigBuilder) WithStepTimeout(stepID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStepTimeout(stepID, timeout)
	return b
}

// WithRetryConfig sets the retry configuration
func (b *ConfigBuilder) WithRetryConfig(config RetryConfig) *ConfigBuilder {
	b.config.RetryConfig = config
	return b
}

// WithContinueOnError sets whether to continue on errors
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// WithMaxConcurrency sets the maximum concurrency
func (b *ConfigBuilder) WithMaxConcurrency(maxConcurrency int) *ConfigBuilder {
	b.config.MaxConcurrency = maxConcurrency
	return b
}

// WithSaveManifest controls whether the run manifest is written
func (b *ConfigBuilder) WithSaveManifest(save bool) *ConfigBuilder {
	b.config.SaveManifest = save
	return b
}

// WithStepConfig sets the configuration for a step
func (b *ConfigBuilder) WithStepConfig(stepID string, config interface{}) *ConfigBuilder {
	b.config.SetStepConfig(stepID, config)
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
