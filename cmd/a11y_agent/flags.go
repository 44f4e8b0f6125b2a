package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/a11y-remediator/internal/config"
)

// Shared configuration flags, registered on the root command so every
// subcommand accepts them. Values are merged with the config file and
// built-in defaults in resolveConfig.
var (
	flagConfigPath  string
	flagProvider    string
	flagEndpoint    string
	flagModel       string
	flagAPIKey      string
	flagCategories  []string
	flagConcurrency int
	flagMaxRetries  int
	flagTimeout     int
	flagSettleDelay int
	flagUseBrowser  bool
	flagVerbose     bool
	flagLogLevel    string
	flagLogFormat   string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	pf.StringVar(&flagProvider, "provider", "", "Inference provider: local or gemini")
	pf.StringVar(&flagEndpoint, "endpoint", "", "Local provider base URL (optional, defaults to A11Y_ENDPOINT env var)")
	pf.StringVar(&flagModel, "model", "", "Model identifier (optional, defaults to A11Y_MODEL env var)")
	pf.StringVar(&flagAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	pf.StringSliceVar(&flagCategories, "categories", nil, "Defect categories to process: image, formfield, link")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "Max simultaneous node workers (-1 = unbounded)")
	pf.IntVar(&flagMaxRetries, "max-retries", 0, "Retries for transient inference failures")
	pf.IntVar(&flagTimeout, "timeout", 0, "Per-request inference timeout in seconds")
	pf.IntVar(&flagSettleDelay, "settle-delay", 0, "Residual settle wait in browser mode, milliseconds")
	pf.BoolVar(&flagUseBrowser, "use-browser", false, "Drive a headless browser instead of static parsing (requires Chrome)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Print detailed run reports")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: json or console")
}

// resolveConfig builds the effective configuration for a command.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	// Step 1: Load config file if provided
	var cfg config.Config
	if flagConfigPath != "" {
		loaded, err := config.LoadConfig(flagConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = flagProvider
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = flagEndpoint
	}
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("categories") {
		cfg.Categories = flagCategories
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = flagConcurrency
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = flagMaxRetries
	}
	if flags.Changed("timeout") {
		cfg.TimeoutSeconds = flagTimeout
	}
	if flags.Changed("settle-delay") {
		cfg.SettleDelayMS = flagSettleDelay
	}
	if flags.Changed("use-browser") {
		cfg.UseBrowser = flagUseBrowser
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}

	// Step 3: Environment fallbacks for values still unset
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv("A11Y_ENDPOINT")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("A11Y_MODEL")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	// Step 4: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.Config{
		Provider:       "local",
		Endpoint:       "http://localhost:1234",
		Model:          "qwen2.5-vl-7b",
		Categories:     []string{"image", "formfield", "link"},
		Concurrency:    4,
		MaxRetries:     2,
		TimeoutSeconds: 60,
		Listen:         "127.0.0.1:8787",
		LogLevel:       "info",
		LogFormat:      "console",
	})

	// Step 5: Validate the merged configuration
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	// Step 6: Provider-specific requirements
	if cfg.Provider == "gemini" && cfg.APIKey == "" {
		return cfg, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required for the gemini provider")
	}

	return cfg, nil
}
