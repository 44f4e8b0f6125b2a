package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/a11y-remediator/internal/apply"
	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
	"github.com/jonathan/a11y-remediator/internal/pagectx"
	"github.com/jonathan/a11y-remediator/internal/prompts"
	"github.com/jonathan/a11y-remediator/internal/schemas"
)

// Capability is the per-category behavior the generic runner is
// parameterized with. The control flow is identical for every category;
// only these hooks differ.
type Capability struct {
	Category   classify.Category
	PromptFile string

	// Partition classifies every candidate node in document order.
	Partition func(doc dom.Document) []classify.Finding
	// ExtractContext summarizes the node's surroundings for the prompt.
	ExtractContext func(doc dom.Document, n dom.Node) string
	// Instruction renders the system preamble and the phase instruction.
	Instruction func(phase schemas.Phase, pageContext string) (system, user string, err error)
	// Schema returns the response contract for a phase.
	Schema func(phase schemas.Phase) (schemas.Schema, error)
	// Apply decodes a generation payload and mutates the node.
	Apply func(doc dom.Document, n dom.Node, payload json.RawMessage) apply.Outcome
	// Report renders an analysis payload as a one-line finding.
	Report func(payload json.RawMessage) (string, error)
}

var registry = map[classify.Category]Capability{
	classify.Image: {
		Category:       classify.Image,
		PromptFile:     "image.json",
		Partition:      partitionFor(classify.Image),
		ExtractContext: contextFor(classify.Image),
		Instruction:    instructionFor("image.json"),
		Schema:         schemaFor(classify.Image),
		Apply: func(doc dom.Document, n dom.Node, payload json.RawMessage) apply.Outcome {
			var res schemas.ImageGeneration
			if err := json.Unmarshal(payload, &res); err != nil {
				return apply.Failure(n, "decode generation payload", err)
			}
			return apply.Image(n, res)
		},
		Report: func(payload json.RawMessage) (string, error) {
			var res schemas.ImageAnalysis
			if err := json.Unmarshal(payload, &res); err != nil {
				return "", err
			}
			if res.IsSufficient {
				return fmt.Sprintf("alt text sufficient (%s)", res.Classification), nil
			}
			return fmt.Sprintf("alt text insufficient (%s): %s",
				res.Classification, strings.Join(res.AltTextAnalysis, "; ")), nil
		},
	},
	classify.FormField: {
		Category:       classify.FormField,
		PromptFile:     "formfield.json",
		Partition:      partitionFor(classify.FormField),
		ExtractContext: contextFor(classify.FormField),
		Instruction:    instructionFor("formfield.json"),
		Schema:         schemaFor(classify.FormField),
		Apply: func(doc dom.Document, n dom.Node, payload json.RawMessage) apply.Outcome {
			var res schemas.FormLabelGeneration
			if err := json.Unmarshal(payload, &res); err != nil {
				return apply.Failure(n, "decode generation payload", err)
			}
			return apply.FormField(doc, n, res)
		},
		Report: func(payload json.RawMessage) (string, error) {
			var res schemas.FormLabelAnalysis
			if err := json.Unmarshal(payload, &res); err != nil {
				return "", err
			}
			state := "accessible"
			if !res.IsAccessible {
				state = "not accessible"
			}
			msg := fmt.Sprintf("labeling %s: score %d/10 (%s)", state, res.AccessibilityScore, res.LabelQuality)
			if len(res.IssuesFound) > 0 {
				msg += ": " + strings.Join(res.IssuesFound, "; ")
			}
			return msg, nil
		},
	},
	classify.Link: {
		Category:       classify.Link,
		PromptFile:     "link.json",
		Partition:      partitionFor(classify.Link),
		ExtractContext: contextFor(classify.Link),
		Instruction:    instructionFor("link.json"),
		Schema:         schemaFor(classify.Link),
		Apply: func(doc dom.Document, n dom.Node, payload json.RawMessage) apply.Outcome {
			var res schemas.LinkTextGeneration
			if err := json.Unmarshal(payload, &res); err != nil {
				return apply.Failure(n, "decode generation payload", err)
			}
			return apply.Link(n, res)
		},
		Report: func(payload json.RawMessage) (string, error) {
			var res schemas.LinkTextAnalysis
			if err := json.Unmarshal(payload, &res); err != nil {
				return "", err
			}
			if res.IsDescriptive {
				return fmt.Sprintf("link text descriptive: score %d/10", res.DescriptivenessScore), nil
			}
			msg := fmt.Sprintf("link text needs improvement: score %d/10", res.DescriptivenessScore)
			if res.SuggestedImprovement != "" {
				msg += fmt.Sprintf(", suggest %q", res.SuggestedImprovement)
			}
			return msg, nil
		},
	},
}

// For returns the capability set for a category.
func For(cat classify.Category) (Capability, error) {
	capability, ok := registry[cat]
	if !ok {
		return Capability{}, fmt.Errorf("unknown category: %s", cat)
	}
	return capability, nil
}

// All returns every capability in pipeline order.
func All() []Capability {
	capabilities := make([]Capability, 0, len(registry))
	for _, cat := range classify.Categories() {
		capabilities = append(capabilities, registry[cat])
	}
	return capabilities
}

func partitionFor(cat classify.Category) func(dom.Document) []classify.Finding {
	return func(doc dom.Document) []classify.Finding {
		return classify.Partition(doc, cat)
	}
}

func contextFor(cat classify.Category) func(dom.Document, dom.Node) string {
	return func(doc dom.Document, n dom.Node) string {
		return pagectx.Summarize(doc, cat, n)
	}
}

func instructionFor(file string) func(schemas.Phase, string) (string, string, error) {
	return func(phase schemas.Phase, pageContext string) (string, string, error) {
		system, err := prompts.Get(file, "system")
		if err != nil {
			return "", "", err
		}
		user, err := prompts.Instruction(file, string(phase), map[string]string{"Context": pageContext})
		if err != nil {
			return "", "", err
		}
		return system, user, nil
	}
}

func schemaFor(cat classify.Category) func(schemas.Phase) (schemas.Schema, error) {
	return func(phase schemas.Phase) (schemas.Schema, error) {
		return schemas.For(cat, phase)
	}
}
