package apply

import (
	"errors"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
)

// Revert undoes every pipeline-authored mutation in the document: generated
// labels are detached, replaced text and descriptions are restored from the
// preserved originals, and provenance markers are cleared. It returns the
// number of nodes restored. Per-node failures are collected, not fatal.
func Revert(doc dom.Document) (int, error) {
	var errs []error
	count := 0

	for _, label := range doc.QueryAll("[" + classify.AttrLabel + "]") {
		if err := label.Remove(); err != nil {
			errs = append(errs, &Error{Handle: label.Handle(), Message: "detach generated label", Cause: err})
			continue
		}
		count++
	}

	for _, n := range doc.QueryAll("[" + classify.AttrGenerated + "]") {
		if err := revertNode(n); err != nil {
			errs = append(errs, &Error{Handle: n.Handle(), Message: "revert remediation", Cause: err})
			continue
		}
		count++
	}

	return count, errors.Join(errs...)
}

// revertNode undoes exactly the fields recorded in the node's marker.
func revertNode(n dom.Node) error {
	orig, hadOrig := n.Attr(classify.AttrOriginalText)
	for _, field := range classify.GeneratedFields(n) {
		switch field {
		case "alt":
			if hadOrig {
				if err := n.SetAttr("alt", orig); err != nil {
					return err
				}
			} else if err := n.RemoveAttr("alt"); err != nil {
				return err
			}
		case "text":
			if err := n.SetText(orig); err != nil {
				return err
			}
		case "aria-label":
			if err := n.RemoveAttr("aria-label"); err != nil {
				return err
			}
		case "id":
			if err := n.RemoveAttr("id"); err != nil {
				return err
			}
		case "label":
			// the element itself is detached in the label sweep
		}
	}
	if err := n.RemoveAttr(classify.AttrOriginalText); err != nil {
		return err
	}
	return n.RemoveAttr(classify.AttrGenerated)
}
