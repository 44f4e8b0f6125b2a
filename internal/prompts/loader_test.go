package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("image.json", "generate")
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "alternative text")
	assert.Contains(t, prompt, "{{.Context}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("image.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "generate")
	})
}

func TestEveryCategoryHasSystemAndPhaseTemplates(t *testing.T) {
	ClearCache()

	for _, file := range []string{"image.json", "formfield.json", "link.json"} {
		for _, key := range []string{"system", "generate", "analyze"} {
			prompt, err := Get(file, key)
			require.NoError(t, err, "%s/%s", file, key)
			assert.NotEmpty(t, prompt, "%s/%s", file, key)
			if key != "system" {
				assert.Contains(t, prompt, "{{.Context}}", "%s/%s must embed context", file, key)
			}
		}
	}
}

func TestInstruction_FillsContext(t *testing.T) {
	ClearCache()

	got, err := Instruction("link.json", "generate", map[string]string{
		"Context": "Page: Docs. Current text: here",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "Page: Docs. Current text: here")
	assert.NotContains(t, got, "{{.Context}}")
}

func TestFormat(t *testing.T) {
	template := "Describe {{.Subject}} for {{.Audience}}."
	result := Format(template, map[string]string{
		"Subject":  "the chart",
		"Audience": "screen reader users",
	})
	assert.Equal(t, "Describe the chart for screen reader users.", result)
}

func TestFormat_UnmatchedPlaceholderRemains(t *testing.T) {
	template := "Context: {{.Context}}"
	result := Format(template, map[string]string{})
	assert.Equal(t, template, result)
}

func TestCaching(t *testing.T) {
	ClearCache()

	first, err := Get("formfield.json", "analyze")
	require.NoError(t, err)
	second, err := Get("formfield.json", "analyze")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
