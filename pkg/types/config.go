// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ExtractionConfig holds settings for the criteria extraction stage.
type ExtractionConfig struct {
	// MinStatementLength drops shorter lines as noise (default 10).
	MinStatementLength int `json:"min_statement_length" yaml:"min_statement_length" mapstructure:"min_statement_length"`

	// StopAtSection ends the exclusion block at the next protocol section
	// heading (study procedures, treatment plan, ...) instead of end of text.
	StopAtSection bool `json:"stop_at_section" yaml:"stop_at_section" mapstructure:"stop_at_section"`

	// CacheSize is the number of documents whose criteria are kept in memory (default 64).
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
}

// ScreeningConfig holds settings for Pareto selection and candidate screening.
type ScreeningConfig struct {
	// ParetoLimit is the number of criteria in the pre-screen set (default 8).
	ParetoLimit int `json:"pareto_limit" yaml:"pareto_limit" mapstructure:"pareto_limit"`

	// Workers is the number of candidates screened concurrently (default 1).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// AIConfig holds shared settings for collaborators that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ReviewConfig holds settings for escalating needs-review verdicts to an LLM.
type ReviewConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Enabled turns escalation on for screen runs.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ConfidenceThreshold is the minimum reviewer confidence for an override (default 0.70).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold"`

	// Timeout bounds each API request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// StoreConfig holds settings for the run store.
type StoreConfig struct {
	// Dir contains prescreen.db.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// MetricsConfig holds settings for the Prometheus textfile output.
type MetricsConfig struct {
	// TextfilePath, when set, receives the metrics of each screen run.
	TextfilePath string `json:"textfile_path" yaml:"textfile_path" mapstructure:"textfile_path"`
}

// PipelineConfig groups all configuration for the prescreen CLI.
type PipelineConfig struct {
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Screening  ScreeningConfig  `json:"screening" yaml:"screening" mapstructure:"screening"`
	Review     ReviewConfig     `json:"review" yaml:"review" mapstructure:"review"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// DefaultConfig returns the configuration used when no file or flag overrides it.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		Extraction: ExtractionConfig{
			MinStatementLength: 10,
			CacheSize:          64,
		},
		Screening: ScreeningConfig{
			ParetoLimit: 8,
			Workers:     1,
		},
		Review: ReviewConfig{
			AIConfig: AIConfig{
				Model:      "claude-sonnet-4-5",
				MaxRetries: 3,
			},
			ConfidenceThreshold: 0.70,
			Timeout:             60 * time.Second,
		},
		Store: StoreConfig{
			Dir: "results",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
