// Package classify partitions document nodes into remediation work. For each
// defect category it evaluates deterministic predicates over a node's current
// attributes and text and assigns one of three classifications. Evaluation is
// pure: it never mutates the tree, and re-running it over an unchanged node
// yields the same answer, so each pipeline phase re-classifies from scratch.
package classify

import (
	"fmt"
	"strings"

	"github.com/jonathan/a11y-remediator/internal/dom"
)

// Category is a defect class the pipeline remediates.
type Category string

// Defect categories.
const (
	Image     Category = "image"
	FormField Category = "formfield"
	Link      Category = "link"
)

// Categories returns every defect category in pipeline order.
func Categories() []Category {
	return []Category{Image, FormField, Link}
}

// Classification is a node's disposition for a single pass. It is recomputed
// each phase and never cached, because node state may have mutated between
// phases.
type Classification string

// Classifications.
const (
	NeedsGeneration Classification = "needs_generation"
	NeedsAnalysis   Classification = "needs_analysis"
	Skip            Classification = "skip"
)

// Finding is one node's classification for one pass.
type Finding struct {
	Category Category
	Status   Classification
	Node     dom.Node
	Reason   string
}

// Selector returns the candidate selector for a category.
func Selector(cat Category) string {
	switch cat {
	case Image:
		return "img"
	case FormField:
		return "input, select, textarea"
	case Link:
		return "a[href]"
	}
	return ""
}

// Partition classifies every candidate node of the category, in document
// order.
func Partition(doc dom.Document, cat Category) []Finding {
	nodes := doc.QueryAll(Selector(cat))
	findings := make([]Finding, 0, len(nodes))
	for _, n := range nodes {
		status, reason := Evaluate(doc, cat, n)
		findings = append(findings, Finding{Category: cat, Status: status, Node: n, Reason: reason})
	}
	return findings
}

// Evaluate classifies a single node under the category's rules.
func Evaluate(doc dom.Document, cat Category, n dom.Node) (Classification, string) {
	switch cat {
	case Image:
		return evaluateImage(n)
	case FormField:
		return evaluateFormField(doc, n)
	case Link:
		return evaluateLink(n)
	}
	return Skip, fmt.Sprintf("unknown category %q", cat)
}

func evaluateImage(n dom.Node) (Classification, string) {
	if IsGenerated(n) {
		return NeedsAnalysis, "pipeline-generated description"
	}
	if role, _ := n.Attr("role"); role == "presentation" || role == "none" {
		return Skip, "decorative role"
	}
	if hidden, _ := n.Attr("aria-hidden"); hidden == "true" {
		return Skip, "hidden from assistive technology"
	}
	alt, has := n.Attr("alt")
	if !has {
		return NeedsGeneration, "missing alt text"
	}
	alt = strings.TrimSpace(alt)
	if alt == "" {
		return Skip, "authored empty alt"
	}
	if IsGenericAlt(alt) {
		return NeedsGeneration, "generic alt text"
	}
	return NeedsAnalysis, "existing alt text"
}

func evaluateFormField(doc dom.Document, n dom.Node) (Classification, string) {
	if n.Tag() == "input" {
		typ, _ := n.Attr("type")
		if isNonLabelable(typ) {
			return Skip, "non-labelable input type"
		}
	}
	if IsGenerated(n) {
		return NeedsAnalysis, "pipeline-generated label"
	}
	if name := AccessibleName(doc, n); name != "" {
		return NeedsAnalysis, "has accessible name"
	}
	// Placeholder text is deliberately not consulted: it disappears on
	// input and is never a substitute for a label.
	return NeedsGeneration, "no accessible name"
}

func evaluateLink(n dom.Node) (Classification, string) {
	text := n.Text()
	if text == "" {
		if aria, _ := n.Attr("aria-label"); strings.TrimSpace(aria) != "" {
			text = aria
		} else if len(n.Find("img, svg")) > 0 {
			return Skip, "icon-only link"
		} else {
			return Skip, "empty link text"
		}
	}
	if IsGenerated(n) {
		return NeedsAnalysis, "pipeline-generated text"
	}
	if IsVagueLinkText(text) {
		return NeedsGeneration, "vague link text"
	}
	return NeedsAnalysis, "existing link text"
}

// AccessibleName resolves the field's accessible name from aria-label,
// aria-labelledby, a referencing label element, or a wrapping label. It
// returns "" when none yields visible text.
func AccessibleName(doc dom.Document, n dom.Node) string {
	if v, _ := n.Attr("aria-label"); strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if ids, _ := n.Attr("aria-labelledby"); ids != "" {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if ref := doc.Query(fmt.Sprintf("[id=%q]", id)); ref != nil {
				if t := ref.Text(); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	if id, _ := n.Attr("id"); id != "" {
		if label := doc.Query(fmt.Sprintf("label[for=%q]", id)); label != nil && visibleText(label) != "" {
			return visibleText(label)
		}
	}
	if label := n.Closest("label"); label != nil && visibleText(label) != "" {
		return visibleText(label)
	}
	return ""
}

func visibleText(n dom.Node) string {
	if n.Style("display") == "none" || n.Style("visibility") == "hidden" {
		return ""
	}
	return n.Text()
}
