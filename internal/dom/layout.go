package dom

import (
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Synthesized layout for the static backend. No layout engine runs over a
// parsed tree, so geometry is derived deterministically: leaf elements are
// stacked vertically in document order, indented by depth, and containers
// span the union of their children. Sizes come from width/height attributes
// and inline styles where present, per-tag defaults otherwise. The result
// is coarse but stable, which is all the capture compositor needs.

const (
	layoutGutter = 8.0
	layoutIndent = 24.0
	layoutRowGap = 8.0
	layoutMaxW   = 600.0
)

func (d *HTMLDocument) ensureLayout() {
	if d.layout != nil && d.layoutFor == d.layoutGen {
		return
	}
	d.layout = make(map[*xhtml.Node]Rect)
	body := d.doc.Find("body")
	if body.Length() > 0 {
		cursor := layoutGutter
		d.layoutNode(body.Nodes[0], 0, &cursor)
	}
	d.layoutFor = d.layoutGen
}

func (d *HTMLDocument) layoutNode(n *xhtml.Node, depth int, cursor *float64) (Rect, bool) {
	tag := strings.ToLower(n.Data)
	if skipLayout(tag) || isHiddenNode(n) {
		return Rect{}, false
	}

	var kids []*xhtml.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode {
			kids = append(kids, c)
		}
	}

	if isReplaced(tag) || len(kids) == 0 {
		w, h := sizeFor(n)
		r := Rect{X: layoutGutter + layoutIndent*float64(depth), Y: *cursor, W: w, H: h}
		*cursor += h + layoutRowGap
		d.layout[n] = r
		return r, true
	}

	var span Rect
	laid := false
	for _, c := range kids {
		cr, ok := d.layoutNode(c, depth+1, cursor)
		if !ok {
			continue
		}
		if !laid {
			span = cr
			laid = true
		} else {
			span = unionRect(span, cr)
		}
	}
	if !laid {
		r := Rect{X: layoutGutter + layoutIndent*float64(depth), Y: *cursor}
		d.layout[n] = r
		return r, false
	}
	r := span.Expand(4)
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	d.layout[n] = r
	return r, true
}

func unionRect(a, b Rect) Rect {
	x1 := min(a.X, b.X)
	y1 := min(a.Y, b.Y)
	x2 := max(a.X+a.W, b.X+b.W)
	y2 := max(a.Y+a.H, b.Y+b.H)
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

func skipLayout(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template", "meta", "link", "title", "br":
		return true
	}
	return false
}

func isReplaced(tag string) bool {
	switch tag {
	case "img", "svg", "picture", "video", "canvas", "iframe", "embed", "object",
		"input", "textarea", "select", "button", "hr":
		return true
	}
	return false
}

func isHiddenNode(n *xhtml.Node) bool {
	var style, typ string
	hidden := false
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "style":
			style = a.Val
		case "type":
			typ = strings.ToLower(a.Val)
		case "hidden":
			hidden = true
		}
	}
	if hidden {
		return true
	}
	if strings.ToLower(n.Data) == "input" && typ == "hidden" {
		return true
	}
	props := parseInlineStyle(style)
	if props["display"] == "none" || props["visibility"] == "hidden" {
		return true
	}
	return false
}

func sizeFor(n *xhtml.Node) (w, h float64) {
	tag := strings.ToLower(n.Data)
	switch tag {
	case "img", "svg", "picture", "video", "canvas", "iframe", "embed", "object":
		w, h = 320, 240
	case "textarea":
		w, h = 240, 96
	case "input", "select":
		w, h = 240, 32
	case "button":
		w, h = 120, 36
	case "h1":
		w, h = layoutMaxW, 40
	case "h2":
		w, h = layoutMaxW, 34
	case "h3":
		w, h = layoutMaxW, 28
	case "h4", "h5", "h6":
		w, h = layoutMaxW, 24
	case "hr":
		w, h = layoutMaxW, 2
	case "a", "span", "label", "b", "i", "strong", "em", "small", "code":
		tw := 8*float64(len(rawText(n))) + 16
		w, h = min(max(tw, 40), layoutMaxW), 20
	default:
		w, h = layoutMaxW, 22
	}

	var attrW, attrH, style string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "width":
			attrW = a.Val
		case "height":
			attrH = a.Val
		case "style":
			style = a.Val
		}
	}
	if v, ok := parseDim(attrW); ok {
		w = v
	}
	if v, ok := parseDim(attrH); ok {
		h = v
	}
	props := parseInlineStyle(style)
	if v, ok := parseDim(props["width"]); ok {
		w = v
	}
	if v, ok := parseDim(props["height"]); ok {
		h = v
	}
	return w, h
}

// parseDim accepts bare numbers and px values; percentages and other units
// fall back to tag defaults.
func parseDim(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if s == "" || strings.HasSuffix(s, "%") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func rawText(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(c *xhtml.Node) {
		for ; c != nil; c = c.NextSibling {
			if c.Type == xhtml.TextNode {
				b.WriteString(c.Data)
			}
			walk(c.FirstChild)
		}
	}
	walk(n.FirstChild)
	return strings.TrimSpace(b.String())
}
