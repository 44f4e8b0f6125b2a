package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/a11y-remediator/internal/capture"
	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
	"github.com/jonathan/a11y-remediator/internal/inference"
	"github.com/jonathan/a11y-remediator/internal/status"
)

// Schema-conforming stub payloads, keyed by response schema name.
var stubPayloads = map[string]string{
	"image_alt_generation":  `{"classification":"simple_informative","alt_text":"Red ceramic mug product photo","reasoning":"Single clear product subject."}`,
	"image_alt_analysis":    `{"classification":"simple_informative","alt_text_analysis":["describes the visible subject"],"is_sufficient":true}`,
	"form_label_generation": `{"field_purpose":"collect the account email address","input_type":"email","label":"Email address","aria_label":"Email address"}`,
	"form_label_analysis":   `{"accessibility_score":8,"label_quality":"good","placeholder_appropriateness":"not_applicable","issues_found":[],"suggestions":[],"is_accessible":true,"reasoning":"A visible label names the field."}`,
	"link_text_generation":  `{"current_text_analysis":"generic call to action","link_purpose":"open the setup guide","suggested_text":"Read the setup guide","aria_label":"Read the setup guide","improvement_reasoning":"Names the destination."}`,
	"link_text_analysis":    `{"descriptiveness_score":9,"is_descriptive":true,"issues_found":[],"suggested_improvement":"","reasoning":"The text states the target."}`,
}

func modelReply(content string) []byte {
	reply := map[string]any{
		"model": "stub-vlm",
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(reply)
	return data
}

func schemaName(body []byte) string {
	var req struct {
		ResponseFormat struct {
			JSONSchema struct {
				Name string `json:"name"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	_ = json.Unmarshal(body, &req)
	return req.ResponseFormat.JSONSchema.Name
}

// stubModel serves schema-conforming completions, optionally failing the
// named schemas with HTTP 500.
func stubModel(t *testing.T, failing map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		name := schemaName(body)
		if failing[name] {
			http.Error(w, "model overloaded", http.StatusInternalServerError)
			return
		}
		payload, ok := stubPayloads[name]
		if !ok {
			http.Error(w, "unknown schema "+name, http.StatusBadRequest)
			return
		}
		w.Write(modelReply(payload))
	}))
}

type recordingSink struct {
	mu     sync.Mutex
	events []status.Event
}

func (s *recordingSink) Publish(e status.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []status.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]status.Event(nil), s.events...)
}

func newTestRunner(t *testing.T, endpoint string, sink status.Sink, concurrency int) *Runner {
	t.Helper()
	client, err := inference.NewLocalClient(inference.Options{
		Endpoint: endpoint,
		Model:    "stub-vlm",
		Retry:    inference.RetryPolicy{MaxRetries: 0, InitialBackoff: time.Millisecond, BackoffFactor: 1},
	})
	require.NoError(t, err)
	runner, err := NewRunner(RunnerOptions{
		Client:      client,
		Renderer:    capture.NewRenderer(capture.Options{Timeout: 2 * time.Second}),
		Sink:        sink,
		Concurrency: concurrency,
	})
	require.NoError(t, err)
	return runner
}

func parseDoc(t *testing.T, body string) *dom.HTMLDocument {
	t.Helper()
	doc, err := dom.ParseHTMLString("<html><head><title>Store</title></head><body>"+body+"</body></html>", "https://shop.example/")
	require.NoError(t, err)
	return doc
}

const imageFixture = `
	<main>
		<img src="/products/mug.jpg" width="120" height="90">
		<img src="/team/founder.jpg" alt="Founder portrait at the office">
		<img src="/divider.png" role="presentation">
	</main>`

func TestRunner_Run_TwoPhaseImageFlow(t *testing.T) {
	srv := stubModel(t, nil)
	defer srv.Close()

	sink := &recordingSink{}
	runner := newTestRunner(t, srv.URL, sink, 0)
	doc := parseDoc(t, imageFixture)

	report, err := runner.Run(context.Background(), doc, classify.Image, "")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Generated, 1)
	assert.Equal(t, StatusSucceeded, report.Generated[0].Status)
	assert.Equal(t, []string{"alt"}, report.Generated[0].Fields)

	// The remediated image joins the analysis population alongside the
	// authored one.
	assert.Len(t, report.Analyzed, 2)
	for _, res := range report.Analyzed {
		assert.Equal(t, StatusSucceeded, res.Status)
		assert.Contains(t, res.Summary, "sufficient")
		assert.NotEmpty(t, res.Payload)
	}
	assert.Zero(t, report.Failures())

	mug := doc.Query("img")
	alt, ok := mug.Attr("alt")
	require.True(t, ok)
	assert.Equal(t, "Red ceramic mug product photo", alt)
	assert.True(t, classify.IsGenerated(mug))
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.Finished.Before(report.Started))
}

func TestRunner_Run_RewritesVagueLink(t *testing.T) {
	srv := stubModel(t, nil)
	defer srv.Close()

	runner := newTestRunner(t, srv.URL, status.Discard{}, 0)
	doc := parseDoc(t, `
		<a href="/docs/setup">Learn more</a>
		<a href="/pricing">Compare subscription plans</a>`)

	report, err := runner.Run(context.Background(), doc, classify.Link, "")
	require.NoError(t, err)

	require.Len(t, report.Generated, 1)
	link := doc.Query("a")
	assert.Equal(t, "Read the setup guide", link.Text())
	orig, _ := link.Attr(classify.AttrOriginalText)
	assert.Equal(t, "Learn more", orig)

	// Both the rewritten link and the already-descriptive one are analyzed.
	assert.Len(t, report.Analyzed, 2)
}

func TestRunner_Run_GenerationPrecedesAnalysis(t *testing.T) {
	srv := stubModel(t, nil)
	defer srv.Close()

	sink := &recordingSink{}
	runner := newTestRunner(t, srv.URL, sink, 3)
	doc := parseDoc(t, imageFixture)

	_, err := runner.Run(context.Background(), doc, classify.Image, "")
	require.NoError(t, err)

	events := sink.all()
	lastGenerate, firstAnalyze := -1, -1
	started, resolved := 0, 0
	for i, e := range events {
		if e.Node == "" {
			continue
		}
		switch e.Type {
		case status.EventStarted:
			started++
		case status.EventSucceeded, status.EventFailed:
			resolved++
		}
		switch e.Phase {
		case "generate":
			lastGenerate = i
		case "analyze":
			if firstAnalyze == -1 {
				firstAnalyze = i
			}
		}
	}
	require.NotEqual(t, -1, lastGenerate)
	require.NotEqual(t, -1, firstAnalyze)
	assert.Less(t, lastGenerate, firstAnalyze)
	// Every started node event resolves exactly once.
	assert.Equal(t, started, resolved)
}

func TestRunner_Run_PerNodeFailuresAreNonFatal(t *testing.T) {
	srv := stubModel(t, map[string]bool{"form_label_generation": true})
	defer srv.Close()

	runner := newTestRunner(t, srv.URL, status.Discard{}, 0)
	doc := parseDoc(t, `
		<form>
			<input type="email">
			<input type="text">
		</form>`)

	report, err := runner.Run(context.Background(), doc, classify.FormField, "")
	require.NoError(t, err)

	require.Len(t, report.Generated, 2)
	for _, res := range report.Generated {
		assert.Equal(t, StatusFailed, res.Status)
		assert.Contains(t, res.Err, "inference")
	}
	assert.Equal(t, 2, report.Failures())

	// Generation failed, so the fields still lack names and are not in the
	// analysis population.
	assert.Empty(t, report.Analyzed)
	assert.Empty(t, doc.QueryAll("["+classify.AttrGenerated+"]"))
}

func TestRunner_Run_CancelledBeforeStart(t *testing.T) {
	srv := stubModel(t, nil)
	defer srv.Close()

	runner := newTestRunner(t, srv.URL, status.Discard{}, 0)
	doc := parseDoc(t, imageFixture)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runner.Run(ctx, doc, classify.Image, "")
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, doc.QueryAll("["+classify.AttrGenerated+"]"))
}

func TestRunner_Run_BoundsConcurrency(t *testing.T) {
	var inFlight, maxSeen atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			m := maxSeen.Load()
			if cur <= m || maxSeen.CompareAndSwap(m, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		body, _ := io.ReadAll(r.Body)
		inFlight.Add(-1)
		w.Write(modelReply(stubPayloads[schemaName(body)]))
	}))
	defer srv.Close()

	runner := newTestRunner(t, srv.URL, status.Discard{}, 2)
	doc := parseDoc(t, `
		<img src="/a.jpg"><img src="/b.jpg"><img src="/c.jpg">
		<img src="/d.jpg"><img src="/e.jpg"><img src="/f.jpg">`)

	report, err := runner.Run(context.Background(), doc, classify.Image, "")
	require.NoError(t, err)
	assert.Len(t, report.Generated, 6)
	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
}

func TestRunner_Audit_ReportsWithoutMutating(t *testing.T) {
	srv := stubModel(t, nil)
	defer srv.Close()

	runner := newTestRunner(t, srv.URL, status.Discard{}, 0)
	doc := parseDoc(t, imageFixture)

	report, err := runner.Audit(context.Background(), doc, classify.Image, "")
	require.NoError(t, err)

	require.Len(t, report.Missing, 1)
	assert.Contains(t, report.Missing[0].Handle, "img")
	assert.NotEmpty(t, report.Missing[0].Reason)
	assert.Len(t, report.Analyzed, 1)
	assert.Equal(t, 1, report.Skipped)

	// Audit never touches the tree.
	_, hasAlt := doc.Query("img").Attr("alt")
	assert.False(t, hasAlt)
	assert.Empty(t, doc.QueryAll("["+classify.AttrGenerated+"]"))
}

func TestFor_KnownAndUnknownCategories(t *testing.T) {
	for _, cat := range classify.Categories() {
		capability, err := For(cat)
		require.NoError(t, err)
		assert.Equal(t, cat, capability.Category)
		assert.NotNil(t, capability.Partition)
		assert.NotNil(t, capability.ExtractContext)
		assert.NotNil(t, capability.Instruction)
		assert.NotNil(t, capability.Schema)
		assert.NotNil(t, capability.Apply)
		assert.NotNil(t, capability.Report)
	}
	_, err := For(classify.Category("video"))
	require.Error(t, err)
}

func TestAll_FollowsPipelineOrder(t *testing.T) {
	capabilities := All()
	require.Len(t, capabilities, 3)
	assert.Equal(t, classify.Image, capabilities[0].Category)
	assert.Equal(t, classify.FormField, capabilities[1].Category)
	assert.Equal(t, classify.Link, capabilities[2].Category)
}

func TestCapability_ReportSummaries(t *testing.T) {
	tests := []struct {
		name     string
		category classify.Category
		payload  string
		want     string
	}{
		{
			name:     "sufficient image alt",
			category: classify.Image,
			payload:  stubPayloads["image_alt_analysis"],
			want:     "sufficient",
		},
		{
			name:     "insufficient image alt",
			category: classify.Image,
			payload:  `{"classification":"complex_informative","alt_text_analysis":["missing the axis labels"],"is_sufficient":false}`,
			want:     "missing the axis labels",
		},
		{
			name:     "accessible form field",
			category: classify.FormField,
			payload:  stubPayloads["form_label_analysis"],
			want:     "score 8/10",
		},
		{
			name:     "vague link",
			category: classify.Link,
			payload:  `{"descriptiveness_score":3,"is_descriptive":false,"issues_found":["generic phrase"],"suggested_improvement":"Download the annual report","reasoning":"no destination named"}`,
			want:     "Download the annual report",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capability, err := For(tt.category)
			require.NoError(t, err)
			summary, err := capability.Report(json.RawMessage(tt.payload))
			require.NoError(t, err)
			assert.Contains(t, summary, tt.want)
		})
	}
}
