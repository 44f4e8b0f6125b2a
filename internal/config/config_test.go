package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	// Create temp config file
	content := `{
		"provider": "local",
		"endpoint": "http://localhost:1234",
		"model": "qwen2.5-vl-7b",
		"categories": ["image", "link"],
		"concurrency": 4,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "local", cfg.Provider)
	assert.Equal(t, "http://localhost:1234", cfg.Endpoint)
	assert.Equal(t, "qwen2.5-vl-7b", cfg.Model)
	assert.Equal(t, []string{"image", "link"}, cfg.Categories)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	content := `{ invalid json }`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := &Config{
		Provider: "anthropic",
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Provider")
}

func TestValidate_BadEndpoint(t *testing.T) {
	cfg := &Config{
		Endpoint: "not a url",
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Endpoint")
}

func TestValidate_UnknownCategory(t *testing.T) {
	cfg := &Config{
		Categories: []string{"image", "video"},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Categories")
}

func TestValidate_NegativeValues(t *testing.T) {
	cfg := &Config{
		Concurrency: -2,
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Concurrency")
}

func TestValidate_UnboundedConcurrency(t *testing.T) {
	cfg := &Config{
		Concurrency: -1,
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		Provider:       "local",
		Endpoint:       "http://localhost:1234",
		Categories:     []string{"image", "formfield", "link"},
		Concurrency:    4,
		MaxRetries:     2,
		TimeoutSeconds: 60,
		Listen:         "127.0.0.1:8787",
		LogLevel:       "info",
		LogFormat:      "console",
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_ZeroValueConfig(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestMergeWithDefaults(t *testing.T) {
	defaults := Config{
		Provider:       "local",
		Endpoint:       "http://localhost:1234",
		Model:          "qwen2.5-vl-7b",
		Categories:     []string{"image", "formfield", "link"},
		Concurrency:    4,
		MaxRetries:     2,
		TimeoutSeconds: 60,
		Listen:         "127.0.0.1:8787",
	}

	partial := Config{
		Model:       "llava-1.6",
		Concurrency: 8,
	}

	merged := partial.MergeWithDefaults(defaults)

	// Custom values should be preserved
	assert.Equal(t, "llava-1.6", merged.Model)
	assert.Equal(t, 8, merged.Concurrency)

	// Default values should fill in empty fields
	assert.Equal(t, "local", merged.Provider)
	assert.Equal(t, "http://localhost:1234", merged.Endpoint)
	assert.Equal(t, []string{"image", "formfield", "link"}, merged.Categories)
	assert.Equal(t, 2, merged.MaxRetries)
	assert.Equal(t, 60, merged.TimeoutSeconds)
	assert.Equal(t, "127.0.0.1:8787", merged.Listen)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{
		Model:      "moondream2",
		Categories: []string{"link"},
	}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "moondream2", merged.Model)
	assert.Equal(t, []string{"link"}, merged.Categories)
}
