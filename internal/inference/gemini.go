package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient implements the Client interface for Google's Gemini API.
// The same schema documents drive both providers: the JSON Schema object is
// converted to the genai schema form for constrained decoding, and the
// response is still re-validated against the original document.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	retry       RetryPolicy
	logger      *zap.Logger
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, opts Options) (*GeminiClient, error) {
	opts.fillDefaults()
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the gemini provider")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   int32(opts.MaxOutputTokens),
		retry:       opts.Retry,
		logger:      opts.Logger,
	}, nil
}

// Infer submits the request, retrying transient failures per the policy.
func (c *GeminiClient) Infer(ctx context.Context, req Request) (*Result, error) {
	return withRetry(ctx, c.retry, c.logger, func() (*Result, error) {
		return c.inferOnce(ctx, req)
	})
}

func (c *GeminiClient) inferOnce(ctx context.Context, req Request) (*Result, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	model.SetMaxOutputTokens(c.maxTokens)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = genaiSchema(req.Schema.Document)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	parts := []genai.Part{genai.Text(req.Instruction)}
	for _, img := range [][]byte{req.Bundle.Isolated, req.Bundle.Context} {
		if len(img) == 0 {
			continue
		}
		parts = append(parts, genai.ImageData("jpeg", img))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &Error{
				Kind:       ErrHTTPStatus,
				StatusCode: apiErr.Code,
				Message:    fmt.Sprintf("Gemini API returned HTTP %d", apiErr.Code),
				Cause:      err,
			}
		}
		return nil, &Error{Kind: ErrNetwork, Message: "Gemini request failed", Cause: err}
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, &Error{Kind: ErrParseFailure, Message: "failed to extract response text", Cause: err}
	}
	content := cleanJSONBlock(text)
	if !json.Valid([]byte(content)) {
		return nil, &Error{Kind: ErrParseFailure, Message: "response text is not valid JSON"}
	}
	if err := req.Schema.Validate([]byte(content)); err != nil {
		return nil, &Error{Kind: ErrSchemaViolation, Message: "payload does not conform to the response schema", Cause: err}
	}
	return &Result{Payload: json.RawMessage(content), Model: c.model}, nil
}

// Model returns the configured model identifier.
func (c *GeminiClient) Model() string {
	return c.model
}

// Close closes the underlying API connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// extractText pulls the text content out of a Gemini response.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("response candidate has no content")
	}
	var text string
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", fmt.Errorf("response contains no text parts")
	}
	return text, nil
}

// genaiSchema converts a JSON Schema document into the genai schema form.
// Bounds and additionalProperties have no counterpart there and are dropped;
// local re-validation still enforces them.
func genaiSchema(doc map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if desc, ok := doc["description"].(string); ok {
		s.Description = desc
	}
	switch doc["type"] {
	case "object":
		s.Type = genai.TypeObject
		if properties, ok := doc["properties"].(map[string]any); ok {
			s.Properties = make(map[string]*genai.Schema, len(properties))
			for name, sub := range properties {
				if m, ok := sub.(map[string]any); ok {
					s.Properties[name] = genaiSchema(m)
				}
			}
		}
		if required, ok := doc["required"].([]string); ok {
			s.Required = append([]string(nil), required...)
		}
	case "array":
		s.Type = genai.TypeArray
		if items, ok := doc["items"].(map[string]any); ok {
			s.Items = genaiSchema(items)
		}
	case "string":
		s.Type = genai.TypeString
		if values, ok := doc["enum"].([]string); ok {
			s.Enum = append([]string(nil), values...)
		}
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	}
	return s
}
