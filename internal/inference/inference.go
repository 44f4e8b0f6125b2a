// Package inference submits multi-modal, schema-constrained requests to the
// model service and exposes validated structured results. Two providers
// implement the same contract: the OpenAI-compatible local endpoint (the
// default) and Gemini. Responses are parsed and re-validated against the
// request schema before a result is returned; a payload that merely arrived
// is never trusted.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/a11y-remediator/internal/capture"
	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/schemas"
)

// Providers.
const (
	ProviderLocal  = "local"
	ProviderGemini = "gemini"
)

// Sampling defaults. Low temperature keeps output near-repeatable for
// identical input; the contract assumes near-repeatable, not identical.
const (
	DefaultTemperature     = 0.2
	DefaultMaxOutputTokens = 1000
	DefaultTimeout         = 60 * time.Second
)

// Request carries one inference call: the instruction pair, the capture
// bundle as ordered image parts, and the output schema the service must
// conform to.
type Request struct {
	Category    classify.Category
	Phase       schemas.Phase
	System      string
	Instruction string
	Bundle      capture.Bundle
	Schema      schemas.Schema
}

// Result is a schema-validated response payload. Payload is guaranteed to
// be a JSON object conforming to the request schema.
type Result struct {
	Payload json.RawMessage
	Model   string
}

// ErrorKind partitions inference failures by what went wrong and whether a
// retry can help.
type ErrorKind string

// Error kinds. network and http_status are transient and retryable;
// schema_violation and parse_failure indicate a request-shape problem and
// are terminal.
const (
	ErrNetwork         ErrorKind = "network"
	ErrHTTPStatus      ErrorKind = "http_status"
	ErrSchemaViolation ErrorKind = "schema_violation"
	ErrParseFailure    ErrorKind = "parse_failure"
)

// Error is the inference failure taxonomy. A schema_violation means the
// transport succeeded but the content violates the contract; a
// parse_failure means the payload was not valid structured data at all.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("inference error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("inference error (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether retrying the identical request can succeed.
func (e *Error) Retryable() bool {
	return e.Kind == ErrNetwork || e.Kind == ErrHTTPStatus
}

// Client is an abstraction over inference providers.
type Client interface {
	// Infer submits one request and returns the validated result.
	Infer(ctx context.Context, req Request) (*Result, error)
	// Model returns the configured model identifier.
	Model() string
	// Close releases any resources held by the client.
	Close() error
}

// Options configures a client.
type Options struct {
	Provider string
	// Endpoint is the local provider's base URL.
	Endpoint string
	Model    string
	// APIKey authenticates the Gemini provider.
	APIKey          string
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration
	Retry           RetryPolicy
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

func (o *Options) fillDefaults() {
	if o.Temperature <= 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retry == (RetryPolicy{}) {
		o.Retry = DefaultRetryPolicy()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// NewClient creates an inference client for the configured provider.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	switch opts.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, opts)
	case ProviderLocal, "":
		return NewLocalClient(opts)
	default:
		return nil, fmt.Errorf("unknown inference provider %q", opts.Provider)
	}
}

// cleanJSONBlock removes markdown code block wrappers some models emit
// around JSON content.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
