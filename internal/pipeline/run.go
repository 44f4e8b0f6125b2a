// Package pipeline provides the high-level orchestration for the
// remediation process: a two-phase run per category, fanning out over
// classified nodes with bounded concurrency and an explicit settle barrier
// between mutation and re-inspection.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/a11y-remediator/internal/capture"
	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
	"github.com/jonathan/a11y-remediator/internal/inference"
	"github.com/jonathan/a11y-remediator/internal/schemas"
	"github.com/jonathan/a11y-remediator/internal/status"
)

// Node result states.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// NodeResult is one node's outcome within a phase.
type NodeResult struct {
	Handle  string          `json:"handle"`
	Status  string          `json:"status"`
	Fields  []string        `json:"applied_fields,omitempty"`
	Summary string          `json:"summary,omitempty"`
	Err     string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MissingNode is a node the classifier queued for generation, reported
// without remediating it (audit mode).
type MissingNode struct {
	Handle string `json:"handle"`
	Reason string `json:"reason"`
}

// RunReport summarizes one category run.
type RunReport struct {
	RunID      string            `json:"run_id"`
	Category   classify.Category `json:"category"`
	Title      string            `json:"title,omitempty"`
	URL        string            `json:"url,omitempty"`
	Candidates int               `json:"candidates"`
	Skipped    int               `json:"skipped"`
	Missing    []MissingNode     `json:"missing,omitempty"`
	Generated  []NodeResult      `json:"generated,omitempty"`
	Analyzed   []NodeResult      `json:"analyzed,omitempty"`
	Started    time.Time         `json:"started"`
	Finished   time.Time         `json:"finished"`
}

// Failures counts failed node results across both phases.
func (r *RunReport) Failures() int {
	count := 0
	for _, res := range r.Generated {
		if res.Status == StatusFailed {
			count++
		}
	}
	for _, res := range r.Analyzed {
		if res.Status == StatusFailed {
			count++
		}
	}
	return count
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Client   inference.Client
	Renderer *capture.Renderer
	Sink     status.Sink
	Logger   *zap.Logger
	// Concurrency caps simultaneous node workers within a phase; zero or
	// negative means unbounded.
	Concurrency int
}

// Runner executes category runs against a document.
type Runner struct {
	client      inference.Client
	renderer    *capture.Renderer
	sink        status.Sink
	logger      *zap.Logger
	concurrency int
}

// NewRunner creates a runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("inference client is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("capture renderer is required")
	}
	sink := opts.Sink
	if sink == nil {
		sink = status.Discard{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		client:      opts.Client,
		renderer:    opts.Renderer,
		sink:        sink,
		logger:      logger,
		concurrency: opts.Concurrency,
	}, nil
}

// Run executes both phases for one category: generation over every node
// the classifier queues, a settle barrier, then re-classification and
// analysis over the full population including just-remediated nodes.
// Per-node failures are recorded in the report; only cancellation and a
// failed settle abort the run.
func (r *Runner) Run(ctx context.Context, doc dom.Document, cat classify.Category, runID string) (*RunReport, error) {
	capability, err := For(cat)
	if err != nil {
		return nil, err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With(zap.String("run_id", runID), zap.String("category", string(cat)))
	report := r.newReport(doc, cat, runID)
	r.publishRun(report, status.EventStarted, "remediation run started")

	findings := capability.Partition(doc)
	var generate []classify.Finding
	for _, f := range findings {
		switch f.Status {
		case classify.NeedsGeneration:
			generate = append(generate, f)
		case classify.Skip:
			report.Skipped++
		}
	}
	report.Candidates = len(findings)
	logger.Info("generation fan-out",
		zap.Int("candidates", len(findings)),
		zap.Int("queued", len(generate)),
		zap.Int("skipped", report.Skipped))

	report.Generated = r.fanOut(ctx, doc, capability, schemas.PhaseGenerate, generate, runID, logger)
	if err := ctx.Err(); err != nil {
		return r.abort(report, err)
	}

	// Barrier: every mutation above must be visible to the re-partition
	// below before analysis fans out.
	if err := doc.Settle(ctx); err != nil {
		r.publishRun(report, status.EventFailed, fmt.Sprintf("settle failed: %v", err))
		return report, fmt.Errorf("document settle failed: %w", err)
	}

	var analyze []classify.Finding
	for _, f := range capability.Partition(doc) {
		if f.Status == classify.NeedsAnalysis {
			analyze = append(analyze, f)
		}
	}
	logger.Info("analysis fan-out", zap.Int("queued", len(analyze)))

	report.Analyzed = r.fanOut(ctx, doc, capability, schemas.PhaseAnalyze, analyze, runID, logger)
	if err := ctx.Err(); err != nil {
		return r.abort(report, err)
	}

	report.Finished = time.Now().UTC()
	r.publishRun(report, status.EventSucceeded,
		fmt.Sprintf("remediated %d nodes, analyzed %d, %d failures",
			len(report.Generated), len(report.Analyzed), report.Failures()))
	return report, nil
}

// Audit runs the analysis phase only: nothing is mutated. Nodes that would
// need generation are reported as missing.
func (r *Runner) Audit(ctx context.Context, doc dom.Document, cat classify.Category, runID string) (*RunReport, error) {
	capability, err := For(cat)
	if err != nil {
		return nil, err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With(zap.String("run_id", runID), zap.String("category", string(cat)))
	report := r.newReport(doc, cat, runID)
	r.publishRun(report, status.EventStarted, "audit run started")

	var analyze []classify.Finding
	findings := capability.Partition(doc)
	for _, f := range findings {
		switch f.Status {
		case classify.NeedsGeneration:
			report.Missing = append(report.Missing, MissingNode{Handle: f.Node.Handle(), Reason: f.Reason})
		case classify.NeedsAnalysis:
			analyze = append(analyze, f)
		case classify.Skip:
			report.Skipped++
		}
	}
	report.Candidates = len(findings)
	logger.Info("audit fan-out",
		zap.Int("candidates", len(findings)),
		zap.Int("missing", len(report.Missing)),
		zap.Int("queued", len(analyze)))

	report.Analyzed = r.fanOut(ctx, doc, capability, schemas.PhaseAnalyze, analyze, runID, logger)
	if err := ctx.Err(); err != nil {
		return r.abort(report, err)
	}

	report.Finished = time.Now().UTC()
	r.publishRun(report, status.EventSucceeded,
		fmt.Sprintf("audited %d nodes, %d missing, %d failures",
			len(report.Analyzed), len(report.Missing), report.Failures()))
	return report, nil
}

// fanOut processes findings concurrently, bounded by the configured
// concurrency. Per-node failures land in the results; only cancellation
// stops the fan-out early.
func (r *Runner) fanOut(ctx context.Context, doc dom.Document, capability Capability, phase schemas.Phase, findings []classify.Finding, runID string, logger *zap.Logger) []NodeResult {
	if len(findings) == 0 {
		return nil
	}
	results := make([]NodeResult, len(findings))
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, f := range findings {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = NodeResult{Handle: f.Node.Handle(), Status: StatusFailed, Err: "run cancelled"}
				return err
			}
			results[i] = r.processNode(gctx, doc, capability, phase, f, runID, logger)
			return nil
		})
	}
	// The only group error is cancellation, which the caller checks.
	_ = g.Wait()
	return results
}

// processNode runs the four-stage node pipeline: context extraction,
// capture, inference, then apply (generation) or report (analysis).
func (r *Runner) processNode(ctx context.Context, doc dom.Document, capability Capability, phase schemas.Phase, f classify.Finding, runID string, logger *zap.Logger) NodeResult {
	started := time.Now()
	handle := f.Node.Handle()
	result := NodeResult{Handle: handle, Status: StatusFailed}
	r.publish(status.Event{
		Type:     status.EventStarted,
		RunID:    runID,
		Category: string(capability.Category),
		Phase:    string(phase),
		Node:     handle,
		Message:  f.Reason,
	})

	pageContext := capability.ExtractContext(doc, f.Node)
	bundle := r.renderer.Capture(ctx, doc, capability.Category, f.Node)
	if bundle.Degraded != nil {
		logger.Debug("capture degraded",
			zap.String("node", handle),
			zap.String("stage", bundle.Degraded.Stage))
	}

	system, user, err := capability.Instruction(phase, pageContext)
	if err != nil {
		return r.fail(result, runID, capability, phase, "instruction", started, err)
	}
	schema, err := capability.Schema(phase)
	if err != nil {
		return r.fail(result, runID, capability, phase, "schema", started, err)
	}

	res, err := r.client.Infer(ctx, inference.Request{
		Category:    capability.Category,
		Phase:       phase,
		System:      system,
		Instruction: user,
		Bundle:      bundle,
		Schema:      schema,
	})
	if err != nil {
		return r.fail(result, runID, capability, phase, "inference", started, err)
	}

	// A result that lands after cancellation is rejected here, before it
	// can touch the tree or the report.
	if err := ctx.Err(); err != nil {
		return r.fail(result, runID, capability, phase, "superseded", started, err)
	}

	switch phase {
	case schemas.PhaseGenerate:
		outcome := capability.Apply(doc, f.Node, res.Payload)
		if !outcome.Success {
			return r.fail(result, runID, capability, phase, "apply", started, fmt.Errorf("%s", outcome.ErrorDetail))
		}
		result.Fields = outcome.AppliedFields
	case schemas.PhaseAnalyze:
		summary, err := capability.Report(res.Payload)
		if err != nil {
			return r.fail(result, runID, capability, phase, "report", started, err)
		}
		result.Summary = summary
		result.Payload = res.Payload
	}

	result.Status = StatusSucceeded
	r.publish(status.Event{
		Type:     status.EventSucceeded,
		RunID:    runID,
		Category: string(capability.Category),
		Phase:    string(phase),
		Node:     handle,
		Fields:   result.Fields,
		Message:  result.Summary,
		Elapsed:  time.Since(started),
	})
	return result
}

func (r *Runner) fail(result NodeResult, runID string, capability Capability, phase schemas.Phase, stage string, started time.Time, err error) NodeResult {
	result.Status = StatusFailed
	result.Err = fmt.Sprintf("%s: %v", stage, err)
	r.publish(status.Event{
		Type:     status.EventFailed,
		RunID:    runID,
		Category: string(capability.Category),
		Phase:    string(phase),
		Node:     result.Handle,
		Stage:    stage,
		Error:    result.Err,
		Elapsed:  time.Since(started),
	})
	return result
}

func (r *Runner) newReport(doc dom.Document, cat classify.Category, runID string) *RunReport {
	return &RunReport{
		RunID:    runID,
		Category: cat,
		Title:    doc.Title(),
		URL:      doc.URL(),
		Started:  time.Now().UTC(),
	}
}

func (r *Runner) abort(report *RunReport, err error) (*RunReport, error) {
	report.Finished = time.Now().UTC()
	r.publishRun(report, status.EventFailed, fmt.Sprintf("run aborted: %v", err))
	return report, err
}

func (r *Runner) publishRun(report *RunReport, t status.EventType, message string) {
	r.publish(status.Event{
		Type:     t,
		RunID:    report.RunID,
		Category: string(report.Category),
		Message:  message,
	})
}

func (r *Runner) publish(e status.Event) {
	r.sink.Publish(status.Stamp(e))
}
