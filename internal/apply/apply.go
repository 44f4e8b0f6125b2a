// Package apply mutates target nodes with generated remediation content and
// supports reverting those mutations. Every mutation records, in the
// provenance marker, exactly which fields the pipeline authored; teardown
// follows those records and never touches author-supplied content.
package apply

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
	"github.com/jonathan/a11y-remediator/internal/schemas"
)

// Outcome reports one node's apply step. A failed outcome carries the
// detail inline; it never aborts sibling processing.
type Outcome struct {
	Node          dom.Node
	Success       bool
	AppliedFields []string
	ErrorDetail   string
}

// Error represents a failure while mutating a single node.
type Error struct {
	Handle  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("apply error for %s: %s: %v", e.Handle, e.Message, e.Cause)
	}
	return fmt.Sprintf("apply error for %s: %s", e.Handle, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Failure builds a failed outcome from a mutation error.
func Failure(n dom.Node, msg string, err error) Outcome {
	detail := msg
	if err != nil {
		detail = fmt.Sprintf("%s: %v", msg, err)
	}
	return Outcome{Node: n, ErrorDetail: detail}
}

// Image sets the generated description on an image. A decorative
// classification always applies an empty description, whatever text the
// payload carries. An authored generic description is preserved for
// teardown before being overwritten.
func Image(n dom.Node, res schemas.ImageGeneration) Outcome {
	alt := strings.TrimSpace(res.AltText)
	if res.Decorative() {
		alt = ""
	}
	if prev, ok := n.Attr("alt"); ok && prev != "" && !classify.IsGenerated(n) {
		if _, has := n.Attr(classify.AttrOriginalText); !has {
			if err := n.SetAttr(classify.AttrOriginalText, prev); err != nil {
				return Failure(n, "preserve original alt", err)
			}
		}
	}
	if err := n.SetAttr("alt", alt); err != nil {
		return Failure(n, "set alt", err)
	}
	if err := markGenerated(n, "alt"); err != nil {
		return Failure(n, "record provenance", err)
	}
	return Outcome{Node: n, Success: true, AppliedFields: []string{"alt"}}
}

// FormField associates a name with an unlabeled field. A visible label
// element is preferred; the aria-label attribute is the fallback when the
// payload carries no label text. A field that gained an accessible name
// since classification is left untouched, so re-applying is a no-op.
func FormField(doc dom.Document, n dom.Node, res schemas.FormLabelGeneration) Outcome {
	if classify.AccessibleName(doc, n) != "" {
		return Outcome{Node: n, Success: true}
	}

	if label := strings.TrimSpace(res.Label); label != "" {
		fields := []string{"label"}
		id, ok := n.Attr("id")
		if !ok || id == "" {
			id = "a11y-field-" + uuid.NewString()
			if err := n.SetAttr("id", id); err != nil {
				return Failure(n, "assign field id", err)
			}
			fields = append(fields, "id")
		}
		attrs := map[string]string{"for": id, classify.AttrLabel: "true"}
		if _, err := n.InsertElement(dom.BeforeBegin, "label", attrs, label); err != nil {
			return Failure(n, "insert label element", err)
		}
		if err := markGenerated(n, fields...); err != nil {
			return Failure(n, "record provenance", err)
		}
		return Outcome{Node: n, Success: true, AppliedFields: fields}
	}

	if aria := strings.TrimSpace(res.AriaLabel); aria != "" {
		if err := n.SetAttr("aria-label", aria); err != nil {
			return Failure(n, "set aria-label", err)
		}
		if err := markGenerated(n, "aria-label"); err != nil {
			return Failure(n, "record provenance", err)
		}
		return Outcome{Node: n, Success: true, AppliedFields: []string{"aria-label"}}
	}

	return Outcome{Node: n, ErrorDetail: "generation produced neither label nor aria_label text"}
}

// Link rewrites vague link text, keeping the author's text under the
// provenance attribute, and fills aria-label only when the author left it
// empty.
func Link(n dom.Node, res schemas.LinkTextGeneration) Outcome {
	var fields []string

	if text := strings.TrimSpace(res.SuggestedText); text != "" && text != n.Text() {
		if _, has := n.Attr(classify.AttrOriginalText); !has && !classify.IsGenerated(n) {
			if err := n.SetAttr(classify.AttrOriginalText, n.Text()); err != nil {
				return Failure(n, "preserve original text", err)
			}
		}
		if err := n.SetText(text); err != nil {
			return Failure(n, "replace link text", err)
		}
		fields = append(fields, "text")
	}

	if aria := strings.TrimSpace(res.AriaLabel); aria != "" {
		if v, ok := n.Attr("aria-label"); !ok || v == "" {
			if err := n.SetAttr("aria-label", aria); err != nil {
				return Failure(n, "set aria-label", err)
			}
			fields = append(fields, "aria-label")
		}
	}

	if len(fields) == 0 {
		return Outcome{Node: n, Success: true}
	}
	if err := markGenerated(n, fields...); err != nil {
		return Failure(n, "record provenance", err)
	}
	return Outcome{Node: n, Success: true, AppliedFields: fields}
}

// markGenerated merges the authored fields into the provenance marker.
func markGenerated(n dom.Node, fields ...string) error {
	recorded := classify.GeneratedFields(n)
	for _, f := range fields {
		if !slices.Contains(recorded, f) {
			recorded = append(recorded, f)
		}
	}
	return n.SetAttr(classify.AttrGenerated, strings.Join(recorded, ","))
}
