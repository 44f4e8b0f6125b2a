package classify

import (
	"strings"

	"github.com/jonathan/a11y-remediator/internal/dom"
)

// Provenance attribute names. The applier writes them, classification honors
// them: a node carrying AttrGenerated is pipeline-authored and is never
// re-queued for generation, only for analysis.
const (
	// AttrGenerated marks a remediated node. Its value is the
	// comma-joined list of fields the pipeline authored ("alt",
	// "label,id", "text,aria-label"), which is what teardown needs to
	// undo exactly those fields and nothing the page author wrote.
	AttrGenerated = "data-a11y-generated"
	// AttrOriginalText preserves the value a remediation replaced (a
	// link's visible text, an image's generic alt) so teardown can
	// restore it.
	AttrOriginalText = "data-a11y-original-text"
	// AttrLabel marks label elements the pipeline inserted, so teardown
	// can detach them without touching author-supplied labels.
	AttrLabel = "data-a11y-label"
)

// IsGenerated reports whether the node carries pipeline-authored content.
func IsGenerated(n dom.Node) bool {
	v, ok := n.Attr(AttrGenerated)
	return ok && v != ""
}

// GeneratedFields returns the list of fields the pipeline authored on the
// node, empty for untouched nodes.
func GeneratedFields(n dom.Node) []string {
	v, ok := n.Attr(AttrGenerated)
	if !ok || v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
