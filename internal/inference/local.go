package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DefaultEndpoint is where OpenAI-compatible local servers conventionally
// listen.
const DefaultEndpoint = "http://localhost:1234"

// LocalClient speaks the OpenAI chat completions protocol against a locally
// hosted model server. Structured output is requested through the
// json_schema response format in strict mode, and the returned payload is
// still re-validated locally.
type LocalClient struct {
	endpoint    string
	model       string
	temperature float32
	maxTokens   int
	retry       RetryPolicy
	client      *http.Client
	logger      *zap.Logger
}

// NewLocalClient creates a client for an OpenAI-compatible endpoint.
func NewLocalClient(opts Options) (*LocalClient, error) {
	opts.fillDefaults()
	endpoint := strings.TrimSuffix(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &LocalClient{
		endpoint:    endpoint,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxOutputTokens,
		retry:       opts.Retry,
		client:      httpClient,
		logger:      opts.Logger,
	}, nil
}

// Wire types for the chat completions request.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float32         `json:"temperature"`
	Stream         bool            `json:"stream"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is a plain string for system messages and a part list for
	// multi-modal user messages.
	Content any `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Infer submits the request, retrying transient failures per the policy.
func (c *LocalClient) Infer(ctx context.Context, req Request) (*Result, error) {
	return withRetry(ctx, c.retry, c.logger, func() (*Result, error) {
		return c.inferOnce(ctx, req)
	})
}

func (c *LocalClient) inferOnce(ctx context.Context, req Request) (*Result, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: userParts(req)},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   req.Schema.Name,
				Strict: true,
				Schema: req.Schema.Document,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      false,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: ErrParseFailure, Message: "failed to encode request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Message: "failed to read response body", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind:       ErrHTTPStatus,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("endpoint returned HTTP %d: %s", resp.StatusCode, snippet(data)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &Error{Kind: ErrParseFailure, Message: "response envelope is not valid JSON", Cause: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Kind: ErrParseFailure, Message: "response contains no choices"}
	}

	content := cleanJSONBlock(parsed.Choices[0].Message.Content)
	if !json.Valid([]byte(content)) {
		return nil, &Error{Kind: ErrParseFailure, Message: "message content is not valid JSON"}
	}
	if err := req.Schema.Validate([]byte(content)); err != nil {
		return nil, &Error{Kind: ErrSchemaViolation, Message: "payload does not conform to the response schema", Cause: err}
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return &Result{Payload: json.RawMessage(content), Model: model}, nil
}

// Model returns the configured model identifier.
func (c *LocalClient) Model() string {
	return c.model
}

// Close is a no-op for the HTTP transport.
func (c *LocalClient) Close() error {
	return nil
}

// userParts assembles the multi-modal user message: instruction text first,
// then the isolated capture, then the context capture.
func userParts(req Request) []contentPart {
	parts := []contentPart{{Type: "text", Text: req.Instruction}}
	for _, img := range [][]byte{req.Bundle.Isolated, req.Bundle.Context} {
		if len(img) == 0 {
			continue
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURLPart{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)},
		})
	}
	return parts
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
