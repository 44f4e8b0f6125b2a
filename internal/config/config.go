// Package config provides configuration loading and validation for the CLI
// and the control daemon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config represents settings that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Inference service
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=local gemini"` // Inference provider
	Endpoint string `json:"endpoint,omitempty" validate:"omitempty,url"`                // Local provider base URL
	Model    string `json:"model,omitempty"`                                            // Model identifier
	APIKey   string `json:"api_key,omitempty"`                                          // Gemini API key

	// Pipeline behavior
	Categories     []string `json:"categories,omitempty" validate:"omitempty,dive,oneof=image formfield link"` // Defect categories to process
	Concurrency    int      `json:"concurrency,omitempty" validate:"min=-1"`                                   // Max simultaneous node workers (-1 = unbounded)
	MaxRetries     int      `json:"max_retries,omitempty" validate:"min=0,max=10"`                             // Retries for transient inference failures
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" validate:"min=0"`                                // Per-request inference timeout

	// Behavior
	UseBrowser    bool `json:"use_browser,omitempty"`                      // Drive a headless browser instead of static parsing
	Verbose       bool `json:"verbose,omitempty"`                          // Print detailed run reports
	SettleDelayMS int  `json:"settle_delay_ms,omitempty" validate:"min=0"` // Residual settle wait in browser mode (0 = built-in default)

	// Daemon
	Listen    string `json:"listen,omitempty" validate:"omitempty,hostname_port"`                  // Control daemon bind address
	LogLevel  string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"` // Logger level
	LogFormat string `json:"log_format,omitempty" validate:"omitempty,oneof=json console"`         // Logger output format
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Provider == "" {
		result.Provider = defaults.Provider
	}
	if result.Endpoint == "" {
		result.Endpoint = defaults.Endpoint
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Listen == "" {
		result.Listen = defaults.Listen
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}

	// Slice fields: use default if empty
	if len(result.Categories) == 0 {
		result.Categories = defaults.Categories
	}

	// Int fields: use default if zero
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.MaxRetries == 0 {
		result.MaxRetries = defaults.MaxRetries
	}
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.SettleDelayMS == 0 {
		result.SettleDelayMS = defaults.SettleDelayMS
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
