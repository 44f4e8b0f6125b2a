// Package schemas defines the structured-output contracts the inference
// service must conform to: one named object schema per (category, phase)
// pair, with explicit field types, enumerations and required-field lists.
// Responses are re-validated against these documents before any typed result
// is exposed, so a payload that merely parses is never trusted.
package schemas

import (
	"fmt"

	"github.com/jonathan/a11y-remediator/internal/classify"
)

// Phase selects between generating missing content and analyzing existing
// content.
type Phase string

// Phases.
const (
	PhaseGenerate Phase = "generate"
	PhaseAnalyze  Phase = "analyze"
)

// Schema is one named output contract. Document is a JSON Schema object
// suitable both for strict response-format requests and for local
// re-validation.
type Schema struct {
	Name     string
	Document map[string]any
}

// For returns the schema for a (category, phase) pair.
func For(cat classify.Category, phase Phase) (Schema, error) {
	switch {
	case cat == classify.Image && phase == PhaseGenerate:
		return imageGeneration, nil
	case cat == classify.Image && phase == PhaseAnalyze:
		return imageAnalysis, nil
	case cat == classify.FormField && phase == PhaseGenerate:
		return formLabelGeneration, nil
	case cat == classify.FormField && phase == PhaseAnalyze:
		return formLabelAnalysis, nil
	case cat == classify.Link && phase == PhaseGenerate:
		return linkTextGeneration, nil
	case cat == classify.Link && phase == PhaseAnalyze:
		return linkTextAnalysis, nil
	}
	return Schema{}, fmt.Errorf("no schema for category %q phase %q", cat, phase)
}

// Image classification values.
const (
	ClassificationDecorative         = "decorative"
	ClassificationSimpleInformative  = "simple_informative"
	ClassificationComplexInformative = "complex_informative"
)

var imageClassifications = []string{
	ClassificationDecorative,
	ClassificationSimpleInformative,
	ClassificationComplexInformative,
}

// Label quality values.
const (
	LabelQualityExcellent = "excellent"
	LabelQualityGood      = "good"
	LabelQualityAdequate  = "adequate"
	LabelQualityPoor      = "poor"
	LabelQualityMissing   = "missing"
)

// Placeholder appropriateness values.
const (
	PlaceholderAppropriate   = "appropriate"
	PlaceholderUsedAsLabel   = "used_as_label"
	PlaceholderMissing       = "missing"
	PlaceholderNotApplicable = "not_applicable"
)

var imageGeneration = Schema{
	Name: "image_alt_generation",
	Document: object(props{
		"classification": enum(imageClassifications...),
		"alt_text":       str(),
		"reasoning":      str(),
	}, "classification", "alt_text", "reasoning"),
}

var imageAnalysis = Schema{
	Name: "image_alt_analysis",
	Document: object(props{
		"classification":    enum(imageClassifications...),
		"alt_text_analysis": strArray(),
		"is_sufficient":     boolean(),
	}, "classification", "alt_text_analysis", "is_sufficient"),
}

var formLabelGeneration = Schema{
	Name: "form_label_generation",
	Document: object(props{
		"field_purpose": str(),
		"input_type":    str(),
		"label":         str(),
		"aria_label":    str(),
	}, "field_purpose", "input_type", "label", "aria_label"),
}

var formLabelAnalysis = Schema{
	Name: "form_label_analysis",
	Document: object(props{
		"accessibility_score": score(1, 10),
		"label_quality": enum(LabelQualityExcellent, LabelQualityGood,
			LabelQualityAdequate, LabelQualityPoor, LabelQualityMissing),
		"placeholder_appropriateness": enum(PlaceholderAppropriate,
			PlaceholderUsedAsLabel, PlaceholderMissing, PlaceholderNotApplicable),
		"issues_found":  strArray(),
		"suggestions":   strArray(),
		"is_accessible": boolean(),
		"reasoning":     str(),
	}, "accessibility_score", "label_quality", "placeholder_appropriateness",
		"issues_found", "suggestions", "is_accessible", "reasoning"),
}

var linkTextGeneration = Schema{
	Name: "link_text_generation",
	Document: object(props{
		"current_text_analysis": str(),
		"link_purpose":          str(),
		"suggested_text":        str(),
		"aria_label":            str(),
		"improvement_reasoning": str(),
	}, "current_text_analysis", "link_purpose", "suggested_text",
		"aria_label", "improvement_reasoning"),
}

var linkTextAnalysis = Schema{
	Name: "link_text_analysis",
	Document: object(props{
		"descriptiveness_score": score(1, 10),
		"is_descriptive":        boolean(),
		"issues_found":          strArray(),
		"suggested_improvement": str(),
		"reasoning":             str(),
	}, "descriptiveness_score", "is_descriptive", "issues_found",
		"suggested_improvement", "reasoning"),
}

type props map[string]any

func object(p props, required ...string) map[string]any {
	properties := make(map[string]any, len(p))
	for k, v := range p {
		properties[k] = v
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func str() map[string]any {
	return map[string]any{"type": "string"}
}

func boolean() map[string]any {
	return map[string]any{"type": "boolean"}
}

func strArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func enum(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func score(minVal, maxVal int) map[string]any {
	return map[string]any{"type": "integer", "minimum": minVal, "maximum": maxVal}
}
