package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/pipeline"
)

func sampleReport() *pipeline.RunReport {
	started := time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC)
	return &pipeline.RunReport{
		RunID:      "run-1",
		Category:   classify.Image,
		Title:      "Storefront",
		URL:        "https://shop.example/",
		Candidates: 4,
		Skipped:    1,
		Generated: []pipeline.NodeResult{
			{
				Handle: "body/main[0]/img[0]",
				Status: pipeline.StatusSucceeded,
				Fields: []string{"alt"},
			},
			{
				Handle: "body/main[0]/img[2]",
				Status: pipeline.StatusFailed,
				Err:    "inference: model overloaded",
			},
		},
		Analyzed: []pipeline.NodeResult{
			{
				Handle:  "body/main[0]/img[1]",
				Status:  pipeline.StatusSucceeded,
				Summary: "alt text sufficient (simple_informative)",
			},
		},
		Started:  started,
		Finished: started.Add(3*time.Second + 500*time.Millisecond),
	}
}

func TestPrintRunOverview(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunOverview(sampleReport())
	output := buf.String()

	assert.Contains(t, output, "REMEDIATION RUN")
	assert.Contains(t, output, "image")
	assert.Contains(t, output, "Storefront")
	assert.Contains(t, output, "Candidates: 4")
	assert.Contains(t, output, "Remediated: 2")
	assert.Contains(t, output, "Failures:   1")
	assert.Contains(t, output, "3.5s")
}

func TestPrintRunOverview_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunOverview(nil)

	assert.Empty(t, buf.String())
}

func TestPrintGenerated(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintGenerated(sampleReport())
	output := buf.String()

	assert.Contains(t, output, "GENERATED CONTENT")
	assert.Contains(t, output, "✓ body/main[0]/img[0]")
	assert.Contains(t, output, "[alt]")
	assert.Contains(t, output, "✗ body/main[0]/img[2]")
	assert.Contains(t, output, "model overloaded")
}

func TestPrintGenerated_TruncatesLongLists(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	report := sampleReport()
	report.Generated = nil
	for i := 0; i < 8; i++ {
		report.Generated = append(report.Generated, pipeline.NodeResult{
			Handle: "body/main[0]/img[0]",
			Status: pipeline.StatusSucceeded,
		})
	}

	p.PrintGenerated(report)
	output := buf.String()

	assert.Contains(t, output, "... and 3 more nodes")
}

func TestPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAnalysis(sampleReport())
	output := buf.String()

	assert.Contains(t, output, "ANALYSIS FINDINGS")
	assert.Contains(t, output, "img[1]")
	assert.Contains(t, output, "alt text sufficient")
}

func TestPrintMissing_WithNodes(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	report := sampleReport()
	report.Missing = []pipeline.MissingNode{
		{Handle: "body/main[0]/img[0]", Reason: "missing alt text"},
	}

	p.PrintMissing(report)
	output := buf.String()

	assert.Contains(t, output, "MISSING ACCESSIBLE CONTENT")
	assert.Contains(t, output, "⚠ body/main[0]/img[0]")
	assert.Contains(t, output, "missing alt text")
}

func TestPrintMissing_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMissing(sampleReport())
	output := buf.String()

	assert.Contains(t, output, "NO MISSING ACCESSIBLE CONTENT")
}

func TestPrintBox_LongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	report := sampleReport()
	report.Title = "A Very Long Page Title That Should Be Truncated To Fit The Box"
	report.URL = "https://shop.example/a/very/deep/path/that/keeps/going/and/going"

	p.PrintRunOverview(report)
	output := buf.String()

	// Should contain box characters
	assert.True(t, strings.Contains(output, "┌"))
	assert.True(t, strings.Contains(output, "└"))
	assert.True(t, strings.Contains(output, "│"))
}
