// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/a11y-remediator/internal/pipeline"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunOverview outputs a human-readable summary of one category run.
func (p *Printer) PrintRunOverview(report *pipeline.RunReport) {
	if report == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Category:  %s\n", report.Category))
	if report.Title != "" {
		sb.WriteString(fmt.Sprintf("Page:      %s\n", report.Title))
	}
	if report.URL != "" {
		sb.WriteString(fmt.Sprintf("URL:       %s\n", report.URL))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Candidates: %d\n", report.Candidates))
	sb.WriteString(fmt.Sprintf("Remediated: %d\n", len(report.Generated)))
	sb.WriteString(fmt.Sprintf("Analyzed:   %d\n", len(report.Analyzed)))
	sb.WriteString(fmt.Sprintf("Skipped:    %d\n", report.Skipped))
	if failures := report.Failures(); failures > 0 {
		sb.WriteString(fmt.Sprintf("Failures:   %d\n", failures))
	}
	if !report.Finished.IsZero() {
		sb.WriteString(fmt.Sprintf("\nDuration:  %.1fs", report.Finished.Sub(report.Started).Seconds()))
	}

	p.printBox("REMEDIATION RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintGenerated outputs the per-node generation results with the fields
// each mutation authored.
func (p *Printer) PrintGenerated(report *pipeline.RunReport) {
	if report == nil || len(report.Generated) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Remediated %d nodes:\n\n", len(report.Generated)))

	count := min(len(report.Generated), maxItemsToShow)
	for i := 0; i < count; i++ {
		res := report.Generated[i]
		handle := res.Handle
		if len(handle) > 45 {
			handle = handle[:42] + "..."
		}
		if res.Status == pipeline.StatusSucceeded {
			sb.WriteString(fmt.Sprintf("✓ %s\n", handle))
			if len(res.Fields) > 0 {
				sb.WriteString(fmt.Sprintf("  [%s]\n", strings.Join(res.Fields, " ")))
			}
		} else {
			sb.WriteString(fmt.Sprintf("✗ %s\n", handle))
			detail := res.Err
			if len(detail) > 50 {
				detail = detail[:47] + "..."
			}
			sb.WriteString(fmt.Sprintf("  %s\n", detail))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(report.Generated) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more nodes", len(report.Generated)-maxItemsToShow))
	}

	p.printBox("GENERATED CONTENT", sb.String())
}

// PrintAnalysis outputs the analysis findings for nodes that already carry
// accessible content.
func (p *Printer) PrintAnalysis(report *pipeline.RunReport) {
	if report == nil || len(report.Analyzed) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Analyzed %d nodes:\n\n", len(report.Analyzed)))

	count := min(len(report.Analyzed), maxItemsToShow)
	for i := 0; i < count; i++ {
		res := report.Analyzed[i]
		handle := res.Handle
		if len(handle) > 45 {
			handle = handle[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s\n", handle))

		detail := res.Summary
		if res.Status != pipeline.StatusSucceeded {
			detail = res.Err
		}
		if len(detail) > 50 {
			detail = detail[:47] + "..."
		}
		if detail != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", detail))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(report.Analyzed) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more nodes", len(report.Analyzed)-maxItemsToShow))
	}

	p.printBox("ANALYSIS FINDINGS", sb.String())
}

// PrintMissing outputs the nodes an audit found without accessible content.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintMissing(report *pipeline.RunReport) {
	if report == nil || len(report.Missing) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO MISSING ACCESSIBLE CONTENT")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d nodes needing content:\n\n", len(report.Missing)))

	for i, m := range report.Missing {
		handle := m.Handle
		if len(handle) > 45 {
			handle = handle[:42] + "..."
		}
		reason := m.Reason
		if len(reason) > 45 {
			reason = reason[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("⚠ %s\n", handle))
		sb.WriteString(fmt.Sprintf("  %s\n", reason))
		if i < len(report.Missing)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("MISSING ACCESSIBLE CONTENT", sb.String())
}

// PrintRunReport prints the full verbose block for a remediation run.
func (p *Printer) PrintRunReport(report *pipeline.RunReport) {
	p.PrintRunOverview(report)
	p.PrintGenerated(report)
	p.PrintAnalysis(report)
}

// PrintAuditReport prints the full verbose block for an audit run.
func (p *Printer) PrintAuditReport(report *pipeline.RunReport) {
	p.PrintRunOverview(report)
	p.PrintMissing(report)
	p.PrintAnalysis(report)
}
