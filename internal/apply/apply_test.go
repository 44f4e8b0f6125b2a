package apply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
	"github.com/jonathan/a11y-remediator/internal/schemas"
)

func parseDoc(t *testing.T, body string) *dom.HTMLDocument {
	t.Helper()
	doc, err := dom.ParseHTMLString("<html><head><title>Shop</title></head><body>"+body+"</body></html>", "https://shop.example/checkout")
	require.NoError(t, err)
	return doc
}

func TestImage_SetsGeneratedAlt(t *testing.T) {
	doc := parseDoc(t, `<img src="/mug.jpg" width="120" height="90">`)
	img := doc.Query("img")
	require.NotNil(t, img)

	outcome := Image(img, schemas.ImageGeneration{
		Classification: schemas.ClassificationSimpleInformative,
		AltText:        "Red ceramic mug on a wooden table",
	})
	require.True(t, outcome.Success)
	assert.Equal(t, []string{"alt"}, outcome.AppliedFields)

	alt, ok := img.Attr("alt")
	require.True(t, ok)
	assert.Equal(t, "Red ceramic mug on a wooden table", alt)
	assert.True(t, classify.IsGenerated(img))
	assert.Equal(t, []string{"alt"}, classify.GeneratedFields(img))
}

func TestImage_DecorativeAlwaysAppliesEmptyAlt(t *testing.T) {
	doc := parseDoc(t, `<img src="/divider.png">`)
	img := doc.Query("img")

	outcome := Image(img, schemas.ImageGeneration{
		Classification: schemas.ClassificationDecorative,
		AltText:        "A wavy divider line between sections",
	})
	require.True(t, outcome.Success)

	alt, ok := img.Attr("alt")
	require.True(t, ok)
	assert.Equal(t, "", alt)
}

func TestImage_PreservesAuthoredGenericAlt(t *testing.T) {
	doc := parseDoc(t, `<img src="/hero.jpg" alt="image">`)
	img := doc.Query("img")

	outcome := Image(img, schemas.ImageGeneration{
		Classification: schemas.ClassificationSimpleInformative,
		AltText:        "Sunrise over the warehouse loading dock",
	})
	require.True(t, outcome.Success)

	alt, _ := img.Attr("alt")
	assert.Equal(t, "Sunrise over the warehouse loading dock", alt)
	orig, ok := img.Attr(classify.AttrOriginalText)
	require.True(t, ok)
	assert.Equal(t, "image", orig)
}

func TestFormField_InsertsLabelReferencingFieldID(t *testing.T) {
	doc := parseDoc(t, `<form><h2>Create Account</h2><input type="email"></form>`)
	input := doc.Query("input")
	require.NotNil(t, input)

	outcome := FormField(doc, input, schemas.FormLabelGeneration{
		FieldPurpose: "collect the account email address",
		InputType:    "email",
		Label:        "Email address",
		AriaLabel:    "Email address",
	})
	require.True(t, outcome.Success)
	assert.Equal(t, []string{"label", "id"}, outcome.AppliedFields)

	id, ok := input.Attr("id")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(id, "a11y-field-"))

	label := doc.Query("label")
	require.NotNil(t, label)
	forAttr, _ := label.Attr("for")
	assert.Equal(t, id, forAttr)
	assert.Equal(t, "Email address", label.Text())
	_, marked := label.Attr(classify.AttrLabel)
	assert.True(t, marked)

	// Label precedes the field it names.
	assert.Less(t, label.Index(), input.Index())

	// Exactly one naming mechanism: the visible label, no aria-label.
	_, hasAria := input.Attr("aria-label")
	assert.False(t, hasAria)
	assert.True(t, classify.IsGenerated(input))
}

func TestFormField_KeepsExistingFieldID(t *testing.T) {
	doc := parseDoc(t, `<form><input type="text" id="company"></form>`)
	input := doc.Query("input")

	outcome := FormField(doc, input, schemas.FormLabelGeneration{Label: "Company name"})
	require.True(t, outcome.Success)
	assert.Equal(t, []string{"label"}, outcome.AppliedFields)

	forAttr, _ := doc.Query("label").Attr("for")
	assert.Equal(t, "company", forAttr)
}

func TestFormField_FallsBackToAriaLabel(t *testing.T) {
	doc := parseDoc(t, `<form><input type="search"></form>`)
	input := doc.Query("input")

	outcome := FormField(doc, input, schemas.FormLabelGeneration{AriaLabel: "Search products"})
	require.True(t, outcome.Success)
	assert.Equal(t, []string{"aria-label"}, outcome.AppliedFields)

	aria, _ := input.Attr("aria-label")
	assert.Equal(t, "Search products", aria)
	assert.Nil(t, doc.Query("label"))
}

func TestFormField_NeverOverwritesAuthorName(t *testing.T) {
	doc := parseDoc(t, `<form><input type="email" aria-label="Work email"></form>`)
	input := doc.Query("input")

	outcome := FormField(doc, input, schemas.FormLabelGeneration{
		Label:     "Email address",
		AriaLabel: "Email address",
	})
	require.True(t, outcome.Success)
	assert.Empty(t, outcome.AppliedFields)

	aria, _ := input.Attr("aria-label")
	assert.Equal(t, "Work email", aria)
	assert.Nil(t, doc.Query("label"))
	assert.False(t, classify.IsGenerated(input))
}

func TestFormField_ReapplyIsNoOp(t *testing.T) {
	doc := parseDoc(t, `<form><input type="email"></form>`)
	input := doc.Query("input")
	result := schemas.FormLabelGeneration{Label: "Email address", AriaLabel: "Email address"}

	first := FormField(doc, input, result)
	require.True(t, first.Success)
	second := FormField(doc, input, result)
	require.True(t, second.Success)
	assert.Empty(t, second.AppliedFields)

	assert.Len(t, doc.QueryAll("label"), 1)
	_, hasAria := input.Attr("aria-label")
	assert.False(t, hasAria)
}

func TestFormField_RejectsEmptyResult(t *testing.T) {
	doc := parseDoc(t, `<form><input type="text"></form>`)
	input := doc.Query("input")

	outcome := FormField(doc, input, schemas.FormLabelGeneration{})
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorDetail, "neither label nor aria_label")
	assert.False(t, classify.IsGenerated(input))
}

func TestLink_ReplacesTextAndPreservesOriginal(t *testing.T) {
	doc := parseDoc(t, `<a href="/pricing">Click here</a>`)
	link := doc.Query("a")

	outcome := Link(link, schemas.LinkTextGeneration{
		SuggestedText: "View pricing details",
		AriaLabel:     "View pricing details",
	})
	require.True(t, outcome.Success)
	assert.Equal(t, []string{"text", "aria-label"}, outcome.AppliedFields)

	assert.Equal(t, "View pricing details", link.Text())
	orig, ok := link.Attr(classify.AttrOriginalText)
	require.True(t, ok)
	assert.Equal(t, "Click here", orig)
	assert.Equal(t, []string{"text", "aria-label"}, classify.GeneratedFields(link))
}

func TestLink_RespectsAuthorAriaLabel(t *testing.T) {
	doc := parseDoc(t, `<a href="/docs" aria-label="Product documentation">Read more</a>`)
	link := doc.Query("a")

	outcome := Link(link, schemas.LinkTextGeneration{
		SuggestedText: "Read the product documentation",
		AriaLabel:     "Documentation",
	})
	require.True(t, outcome.Success)
	assert.Equal(t, []string{"text"}, outcome.AppliedFields)

	aria, _ := link.Attr("aria-label")
	assert.Equal(t, "Product documentation", aria)
}

func TestLink_NoChangeWhenTextAlreadyMatches(t *testing.T) {
	doc := parseDoc(t, `<a href="/pricing" aria-label="View pricing">View pricing details</a>`)
	link := doc.Query("a")

	outcome := Link(link, schemas.LinkTextGeneration{SuggestedText: "View pricing details"})
	require.True(t, outcome.Success)
	assert.Empty(t, outcome.AppliedFields)
	assert.False(t, classify.IsGenerated(link))
}

func TestRevert_RestoresDocument(t *testing.T) {
	doc := parseDoc(t, `
		<img src="/hero.jpg" alt="image">
		<form><input type="email"></form>
		<a href="/pricing">Click here</a>`)

	img := doc.Query("img")
	input := doc.Query("input")
	link := doc.Query("a")

	require.True(t, Image(img, schemas.ImageGeneration{
		Classification: schemas.ClassificationSimpleInformative,
		AltText:        "Warehouse at sunrise",
	}).Success)
	require.True(t, FormField(doc, input, schemas.FormLabelGeneration{Label: "Email address"}).Success)
	require.True(t, Link(link, schemas.LinkTextGeneration{
		SuggestedText: "View pricing details",
		AriaLabel:     "View pricing details",
	}).Success)

	count, err := Revert(doc)
	require.NoError(t, err)
	// Image, field, link, plus the detached label element.
	assert.Equal(t, 4, count)

	alt, _ := img.Attr("alt")
	assert.Equal(t, "image", alt)
	assert.Equal(t, "Click here", link.Text())
	assert.Nil(t, doc.Query("label"))
	assert.Empty(t, doc.QueryAll("["+classify.AttrGenerated+"]"))
	assert.Empty(t, doc.QueryAll("["+classify.AttrOriginalText+"]"))

	_, hasAria := link.Attr("aria-label")
	assert.False(t, hasAria)
	_, hasID := input.Attr("id")
	assert.False(t, hasID)

	again, err := Revert(doc)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestRevert_RemovesGeneratedAltEntirely(t *testing.T) {
	doc := parseDoc(t, `<img src="/chart.png">`)
	img := doc.Query("img")
	require.True(t, Image(img, schemas.ImageGeneration{
		Classification: schemas.ClassificationSimpleInformative,
		AltText:        "Quarterly revenue bar chart",
	}).Success)

	_, err := Revert(doc)
	require.NoError(t, err)
	_, hasAlt := img.Attr("alt")
	assert.False(t, hasAlt)
}

func TestError_Format(t *testing.T) {
	err := &Error{Handle: "body/a[2]", Message: "replace link text", Cause: assert.AnError}
	assert.Contains(t, err.Error(), "apply error for body/a[2]")
	assert.ErrorIs(t, err, assert.AnError)
}
