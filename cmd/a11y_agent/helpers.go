package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/a11y-remediator/internal/browser"
	"github.com/jonathan/a11y-remediator/internal/capture"
	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/config"
	"github.com/jonathan/a11y-remediator/internal/dom"
	"github.com/jonathan/a11y-remediator/internal/fetch"
	"github.com/jonathan/a11y-remediator/internal/inference"
	"github.com/jonathan/a11y-remediator/internal/pipeline"
	"github.com/jonathan/a11y-remediator/internal/status"
)

// openDocument loads the remediation target: a local HTML file, a fetched
// URL snapshot, or a live browser session when browser mode is enabled.
// The close function releases browser resources; it is a no-op for static
// documents.
func openDocument(ctx context.Context, cfg config.Config, htmlPath, pageURL string, logger *zap.Logger) (dom.Document, func() error, error) {
	noop := func() error { return nil }

	if htmlPath != "" {
		f, err := os.Open(htmlPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open HTML file: %w", err)
		}
		defer f.Close()
		doc, err := dom.ParseHTML(f, "")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", htmlPath, err)
		}
		return doc, noop, nil
	}

	if cfg.UseBrowser {
		live, err := browser.Open(ctx, pageURL, browser.Options{
			SettleDelay: time.Duration(cfg.SettleDelayMS) * time.Millisecond,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return live, live.Close, nil
	}

	doc, err := fetch.Document(ctx, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	return doc, noop, nil
}

// buildRunner assembles the inference client, capture renderer and
// pipeline runner from the merged configuration. The caller owns the
// returned client and must close it.
func buildRunner(ctx context.Context, cfg config.Config, sink status.Sink, logger *zap.Logger) (*pipeline.Runner, inference.Client, error) {
	client, err := inference.NewClient(ctx, inference.Options{
		Provider: cfg.Provider,
		Endpoint: cfg.Endpoint,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		Retry: inference.RetryPolicy{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: 500 * time.Millisecond,
			BackoffFactor:  2.0,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	runner, err := pipeline.NewRunner(pipeline.RunnerOptions{
		Client:      client,
		Renderer:    capture.NewRenderer(capture.Options{Logger: logger}),
		Sink:        sink,
		Logger:      logger,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		client.Close() //nolint:errcheck
		return nil, nil, err
	}
	return runner, client, nil
}

// capabilities resolves the configured category names to their pipeline
// capability sets, in the configured order.
func capabilities(names []string) ([]pipeline.Capability, error) {
	caps := make([]pipeline.Capability, 0, len(names))
	for _, name := range names {
		capability, err := pipeline.For(classify.Category(name))
		if err != nil {
			return nil, err
		}
		caps = append(caps, capability)
	}
	return caps, nil
}

// writeDocument serializes the document to the given path, or stdout when
// the path is empty.
func writeDocument(doc dom.Document, path string) error {
	renderer, ok := doc.(dom.Renderer)
	if !ok {
		return fmt.Errorf("document backend cannot serialize its tree")
	}

	if path == "" {
		return renderer.Render(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := renderer.Render(f); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("failed to write document: %w", err)
	}
	return f.Close()
}
