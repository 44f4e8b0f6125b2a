package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/logging"
	"github.com/jonathan/a11y-remediator/internal/pipeline"
	"github.com/jonathan/a11y-remediator/internal/server"
	"github.com/jonathan/a11y-remediator/internal/status"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control daemon for a document session",
	Long: `Opens the target document and starts an HTTP daemon that controls its
remediation: POST /enable and POST /disable toggle the pipeline, GET
/status/stream delivers per-node lifecycle events over SSE, GET /health and
GET /metrics expose liveness and Prometheus metrics. Disabling (and daemon
shutdown) restores the document to its authored state.`,
	RunE: runServe,
}

var (
	serveHTML   string
	serveURL    string
	serveListen string
)

func init() {
	serveCmd.Flags().StringVar(&serveHTML, "html", "", "Path to an HTML file to open a session on (mutually exclusive with --url)")
	serveCmd.Flags().StringVar(&serveURL, "url", "", "Page URL to open a session on (mutually exclusive with --html)")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Bind address for the daemon")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = serveListen
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if serveHTML == "" && serveURL == "" {
		return fmt.Errorf("either --html or --url must be provided")
	}
	if serveHTML != "" && serveURL != "" {
		return fmt.Errorf("--html and --url are mutually exclusive; provide only one")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync() //nolint:errcheck

	doc, closeDoc, err := openDocument(ctx, cfg, serveHTML, serveURL, logger)
	if err != nil {
		return err
	}
	defer closeDoc() //nolint:errcheck

	registry := prometheus.NewRegistry()
	broadcaster := status.NewBroadcaster()
	sink := status.Fanout{
		status.NewLogSink(logger),
		status.NewMetricsSink(registry),
		broadcaster,
	}

	runner, client, err := buildRunner(ctx, cfg, sink, logger)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	categories := make([]classify.Category, 0, len(cfg.Categories))
	for _, name := range cfg.Categories {
		categories = append(categories, classify.Category(name))
	}

	ctrl := pipeline.NewController(doc, categories, runner, sink, logger)

	srv, err := server.New(server.Config{
		Addr:        cfg.Listen,
		Controller:  ctrl,
		Broadcaster: broadcaster,
		Metrics:     registry,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("session open", zap.String("title", doc.Title()), zap.String("url", doc.URL()))

	return srv.Start()
}
