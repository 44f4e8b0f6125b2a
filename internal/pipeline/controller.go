package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/a11y-remediator/internal/apply"
	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
	"github.com/jonathan/a11y-remediator/internal/status"
)

// Controller owns pipeline activation for one document session. Enabling
// starts a background run over the configured categories; disabling
// cancels it, waits for in-flight workers to drain, then reverts every
// pipeline-authored mutation. Each run carries its own cancellation
// context, so a result racing a disable is rejected deterministically
// instead of landing on a deactivated document.
type Controller struct {
	doc        dom.Document
	categories []classify.Category
	runner     *Runner
	sink       status.Sink
	logger     *zap.Logger

	mu      sync.Mutex
	enabled bool
	runID   string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewController binds a controller to a document.
func NewController(doc dom.Document, categories []classify.Category, runner *Runner, sink status.Sink, logger *zap.Logger) *Controller {
	if len(categories) == 0 {
		categories = classify.Categories()
	}
	if sink == nil {
		sink = status.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		doc:        doc,
		categories: categories,
		runner:     runner,
		sink:       sink,
		logger:     logger,
	}
}

// Enable starts remediation if it is not already active and returns the
// run identifier. Enabling an active controller is a no-op returning the
// current run.
func (c *Controller) Enable() (string, error) {
	c.mu.Lock()
	if c.enabled {
		id := c.runID
		c.mu.Unlock()
		return id, nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	runID := uuid.NewString()
	done := make(chan struct{})
	c.enabled = true
	c.runID = runID
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for _, cat := range c.categories {
			if runCtx.Err() != nil {
				return
			}
			if _, err := c.runner.Run(runCtx, c.doc, cat, runID); err != nil {
				if runCtx.Err() != nil {
					return
				}
				c.logger.Warn("category run failed",
					zap.String("run_id", runID),
					zap.String("category", string(cat)),
					zap.Error(err))
			}
		}
	}()
	return runID, nil
}

// Disable cancels the active run, waits for it to drain, and reverts
// pipeline-authored content. It returns the number of nodes restored.
// Disabling an inactive controller is a no-op.
func (c *Controller) Disable(ctx context.Context) (int, error) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return 0, nil
	}
	runID := c.runID
	cancel := c.cancel
	done := c.done
	c.enabled = false
	c.runID = ""
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	reverted, err := apply.Revert(c.doc)
	c.logger.Info("teardown complete", zap.String("run_id", runID), zap.Int("reverted", reverted))
	c.sink.Publish(status.Stamp(status.Event{
		Type:    status.EventSucceeded,
		RunID:   runID,
		Phase:   "teardown",
		Message: "pipeline-authored content reverted",
	}))
	return reverted, err
}

// Enabled reports whether remediation is active.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// State is the controller's externally visible condition.
type State struct {
	Enabled    bool     `json:"enabled"`
	RunID      string   `json:"run_id,omitempty"`
	Categories []string `json:"categories"`
}

// State returns a snapshot for status reporting.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	cats := make([]string, len(c.categories))
	for i, cat := range c.categories {
		cats[i] = string(cat)
	}
	return State{Enabled: c.enabled, RunID: c.runID, Categories: cats}
}

// Wait blocks until the active run finishes or ctx expires. It returns
// immediately when nothing is running.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
