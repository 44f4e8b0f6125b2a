package schemas

// Typed results, one per schema. Payloads are unmarshalled into these only
// after Validate accepts them, so required fields are always present and
// type-correct here.

// ImageGeneration is the image_alt_generation result.
type ImageGeneration struct {
	Classification string `json:"classification"`
	AltText        string `json:"alt_text"`
	Reasoning      string `json:"reasoning"`
}

// Decorative reports whether the model classified the image as decorative.
// Decorative is terminal: the applied alt text is empty no matter what
// alt_text literally contains.
func (g ImageGeneration) Decorative() bool {
	return g.Classification == ClassificationDecorative
}

// ImageAnalysis is the image_alt_analysis result.
type ImageAnalysis struct {
	Classification  string   `json:"classification"`
	AltTextAnalysis []string `json:"alt_text_analysis"`
	IsSufficient    bool     `json:"is_sufficient"`
}

// FormLabelGeneration is the form_label_generation result.
type FormLabelGeneration struct {
	FieldPurpose string `json:"field_purpose"`
	InputType    string `json:"input_type"`
	Label        string `json:"label"`
	AriaLabel    string `json:"aria_label"`
}

// FormLabelAnalysis is the form_label_analysis result.
type FormLabelAnalysis struct {
	AccessibilityScore         int      `json:"accessibility_score"`
	LabelQuality               string   `json:"label_quality"`
	PlaceholderAppropriateness string   `json:"placeholder_appropriateness"`
	IssuesFound                []string `json:"issues_found"`
	Suggestions                []string `json:"suggestions"`
	IsAccessible               bool     `json:"is_accessible"`
	Reasoning                  string   `json:"reasoning"`
}

// LinkTextGeneration is the link_text_generation result.
type LinkTextGeneration struct {
	CurrentTextAnalysis  string `json:"current_text_analysis"`
	LinkPurpose          string `json:"link_purpose"`
	SuggestedText        string `json:"suggested_text"`
	AriaLabel            string `json:"aria_label"`
	ImprovementReasoning string `json:"improvement_reasoning"`
}

// LinkTextAnalysis is the link_text_analysis result.
type LinkTextAnalysis struct {
	DescriptivenessScore int      `json:"descriptiveness_score"`
	IsDescriptive        bool     `json:"is_descriptive"`
	IssuesFound          []string `json:"issues_found"`
	SuggestedImprovement string   `json:"suggested_improvement"`
	Reasoning            string   `json:"reasoning"`
}
