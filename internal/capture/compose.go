package capture

import (
	"image"
	"image/color"
	"image/draw"
	"net/url"
	"path"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
)

// Synthetic composition for the static backend, which has no renderer to
// screenshot. Context captures draw nearby elements as boxes, annotate the
// ones carrying label-like text at their relative positions, and outline
// the target; placeholders embed the element's metadata as drawn text.

const (
	// annotatedSelector lists elements whose text is drawn into context
	// captures.
	annotatedSelector = "label, legend, h1, h2, h3, h4, h5, h6, button, a, p, li, figcaption"
	// outlinedSelector lists elements drawn as plain boxes.
	outlinedSelector = "img, input, select, textarea"

	placeholderW = 400
	placeholderH = 300

	glyphW     = 7
	lineHeight = 16
)

var (
	colorCanvas    = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	colorBoxFill   = color.RGBA{0xF2, 0xF4, 0xF7, 0xFF}
	colorBorder    = color.RGBA{0x98, 0xA2, 0xB3, 0xFF}
	colorText      = color.RGBA{0x1D, 0x29, 0x39, 0xFF}
	colorHighlight = color.RGBA{0xF7, 0x90, 0x09, 0xFF}
	colorFallback  = color.RGBA{0xED, 0xF0, 0xF3, 0xFF}
)

// composeContext renders the region around the target: nearby media and
// fields as boxes, label-bearing elements as text at their relative
// positions, and a highlight outline around the target itself.
func composeContext(doc dom.Document, target dom.Node, region dom.Rect) image.Image {
	scale := min(float64(MaxWidth)/region.W, float64(MaxHeight)/region.H, 1.0)
	w := max(int(region.W*scale), 1)
	h := max(int(region.H*scale), 1)
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(canvas, canvas.Bounds(), colorCanvas)

	toCanvas := func(r dom.Rect) image.Rectangle {
		return image.Rect(
			int((r.X-region.X)*scale),
			int((r.Y-region.Y)*scale),
			int((r.X+r.W-region.X)*scale),
			int((r.Y+r.H-region.Y)*scale),
		)
	}

	for _, n := range doc.QueryAll(outlinedSelector) {
		b := n.Bounds()
		if b.Empty() || !b.Intersects(region) {
			continue
		}
		box := toCanvas(b)
		fillRect(canvas, box, colorBoxFill)
		strokeRect(canvas, box, colorBorder, 1)
	}

	for _, n := range doc.QueryAll(annotatedSelector) {
		b := n.Bounds()
		if b.Empty() || !b.Intersects(region) {
			continue
		}
		text := n.Text()
		if text == "" {
			continue
		}
		box := toCanvas(b)
		maxChars := max(box.Dx()/glyphW, 4)
		drawText(canvas, box.Min.X+2, box.Min.Y+11, truncateLabel(text, maxChars), colorText)
	}

	strokeRect(canvas, toCanvas(target.Bounds()), colorHighlight, 3)
	return canvas
}

// composeElement renders a form field or link in isolation: its box with
// identifying text, sized from its synthesized bounds.
func composeElement(n dom.Node) image.Image {
	b := n.Bounds()
	w := min(max(int(b.W), 160), MaxWidth)
	h := min(max(int(b.H), 48), MaxHeight)
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(canvas, canvas.Bounds(), colorCanvas)

	inner := image.Rect(2, 2, w-2, h-2)
	fillRect(canvas, inner, colorBoxFill)
	strokeRect(canvas, inner, colorBorder, 1)

	maxChars := max((w-20)/glyphW, 4)
	drawText(canvas, 10, 18, truncateLabel(elementTitle(n), maxChars), colorText)
	if detail := elementDetail(n); detail != "" {
		drawText(canvas, 10, 18+lineHeight, truncateLabel(detail, maxChars), colorText)
	}
	return canvas
}

// placeholderImage is the deterministic fallback for any failed render
// path: a flat card embedding the element's metadata.
func placeholderImage(meta placeholderMeta) image.Image {
	canvas := image.NewRGBA(image.Rect(0, 0, placeholderW, placeholderH))
	fillRect(canvas, canvas.Bounds(), colorFallback)
	strokeRect(canvas, canvas.Bounds(), colorBorder, 2)

	y := 40
	for _, line := range []string{meta.kind, meta.source, meta.description} {
		if line == "" {
			continue
		}
		drawText(canvas, 16, y, truncateLabel(line, (placeholderW-32)/glyphW), colorText)
		y += lineHeight + 4
	}
	return canvas
}

type placeholderMeta struct {
	kind        string
	source      string
	description string
}

func metadataFor(cat classify.Category, n dom.Node) placeholderMeta {
	meta := placeholderMeta{kind: string(cat) + " <" + n.Tag() + ">"}
	if typ, _ := n.Attr("type"); typ != "" {
		meta.kind += " type=" + typ
	}
	if src, _ := n.Attr("src"); src != "" {
		meta.source = sourceName(src)
	} else if href, _ := n.Attr("href"); href != "" {
		meta.source = truncateLabel(href, 40)
	}
	switch {
	case hasAttr(n, "alt"):
		alt, _ := n.Attr("alt")
		meta.description = truncateLabel(alt, 60)
	case hasAttr(n, "aria-label"):
		aria, _ := n.Attr("aria-label")
		meta.description = truncateLabel(aria, 60)
	default:
		meta.description = truncateLabel(n.Text(), 60)
	}
	return meta
}

func hasAttr(n dom.Node, name string) bool {
	v, ok := n.Attr(name)
	return ok && strings.TrimSpace(v) != ""
}

func sourceName(src string) string {
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		return truncateLabel(path.Base(u.Path), 40)
	}
	return truncateLabel(src, 40)
}

func elementTitle(n dom.Node) string {
	switch n.Tag() {
	case "input":
		typ, _ := n.Attr("type")
		if typ == "" {
			typ = "text"
		}
		return "input type=" + typ
	case "a":
		href, _ := n.Attr("href")
		return "link " + href
	default:
		return n.Tag()
	}
}

func elementDetail(n dom.Node) string {
	if t := n.Text(); t != "" {
		return t
	}
	if ph, _ := n.Attr("placeholder"); ph != "" {
		return "placeholder: " + ph
	}
	if v, _ := n.Attr("value"); v != "" {
		return "value: " + v
	}
	return ""
}

func truncateLabel(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(runes[:maxChars])
	}
	return string(runes[:maxChars-3]) + "..."
}

func fillRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.Color, thickness int) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	t := thickness
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func drawText(dst *image.RGBA, x, y int, s string, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
