package pagectx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
)

func TestFormFieldContextIncludesHeadingAndPosition(t *testing.T) {
	doc, err := dom.ParseHTMLString(`<html>
<head><title>Acme Signup</title><meta name="description" content="Create your Acme account"></head>
<body>
  <form>
    <h2>Create Account</h2>
    <input type="email" id="em">
    <input type="password" id="pw">
  </form>
</body></html>`, "")
	require.NoError(t, err)

	email := doc.Query("#em")
	require.NotNil(t, email)
	summary := Summarize(doc, classify.FormField, email)

	assert.Contains(t, summary, "Page: Acme Signup")
	assert.Contains(t, summary, "Create your Acme account")
	assert.Contains(t, summary, "Create Account")
	assert.Contains(t, summary, "Field 1 of 2")
	assert.Contains(t, summary, "Type: email")
	assert.Contains(t, summary, "Within: form")
}

func TestFormFieldContextReportsPreviousLabel(t *testing.T) {
	doc, err := dom.ParseHTMLString(`<html><body>
  <form>
    <label for="name">Full name</label><input type="text" id="name">
    <input type="email" id="em">
  </form>
</body></html>`, "")
	require.NoError(t, err)

	email := doc.Query("#em")
	require.NotNil(t, email)
	summary := Summarize(doc, classify.FormField, email)

	assert.Contains(t, summary, "Field 2 of 2")
	assert.Contains(t, summary, "Previous field: Full name")
}

func TestLinkContextIncludesDestinationAndSiblings(t *testing.T) {
	doc, err := dom.ParseHTMLString(`<html><head><title>Docs</title></head><body>
  <nav><ul>
    <li><a href="/guides">Guides</a></li>
    <li><a href="https://status.example.com/uptime">here</a></li>
    <li><a href="/api">API</a></li>
  </ul></nav>
</body></html>`, "")
	require.NoError(t, err)

	link := doc.QueryAll("a")[1]
	summary := Summarize(doc, classify.Link, link)

	assert.Contains(t, summary, "Current text: here")
	assert.Contains(t, summary, "status.example.com/uptime")
	assert.Contains(t, summary, "Item 2 of 3")
	assert.Contains(t, summary, "Within: nav > ul")
}

func TestImageContextIncludesSourceAndCaption(t *testing.T) {
	doc, err := dom.ParseHTMLString(`<html><head><title>Gallery</title></head><body>
  <figure>
    <img src="/media/spring-launch.png" alt="photo">
    <figcaption>Our spring product launch event</figcaption>
  </figure>
</body></html>`, "")
	require.NoError(t, err)

	img := doc.Query("img")
	require.NotNil(t, img)
	summary := Summarize(doc, classify.Image, img)

	assert.Contains(t, summary, "Source: spring-launch.png")
	assert.Contains(t, summary, "Current alt: photo")
	assert.Contains(t, summary, "Caption: Our spring product launch event")
	assert.Contains(t, summary, "Within: figure")
}

func TestSummaryBoundsHoldOnDeepNoisyDocuments(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	doc, err := dom.ParseHTMLString(`<html>
<head><title>`+long+`</title><meta name="description" content="`+long+`"></head>
<body><h1>`+long+`</h1>
  <section><article><nav><ul><li><form><fieldset>
    <legend>`+long+`</legend>
    <input type="text" id="deep" placeholder="`+long+`">
  </fieldset></form></li></ul></nav></article></section>
</body></html>`, "")
	require.NoError(t, err)

	field := doc.Query("#deep")
	require.NotNil(t, field)
	summary := Summarize(doc, classify.FormField, field)

	assert.LessOrEqual(t, len([]rune(summary)), 400)
	assert.True(t, strings.HasSuffix(summary, "..."))

	// Ancestry is capped, so the outermost section never appears.
	within := summary[strings.Index(summary, "Within: "):]
	within = within[:strings.Index(within, ". ")]
	assert.LessOrEqual(t, strings.Count(within, ">"), 4)
}

func TestSummarizeDoesNotMutate(t *testing.T) {
	doc, err := dom.ParseHTMLString(`<html><body><a href="/x">here</a></body></html>`, "")
	require.NoError(t, err)
	link := doc.Query("a")
	require.NotNil(t, link)

	_ = Summarize(doc, classify.Link, link)
	assert.Equal(t, "here", link.Text())
	_, hasMarker := link.Attr("data-a11y-generated")
	assert.False(t, hasMarker)
}
