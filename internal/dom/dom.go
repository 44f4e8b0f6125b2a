// Package dom defines the host-document capability interface the remediation
// pipeline operates against. The pipeline never assumes a concrete document
// API: it reads attributes, geometry and text through these interfaces and
// issues mutations back through them. Two backends implement the contract:
// the static HTML backend in this package (goquery over a parsed tree) and
// the live-browser backend in internal/browser (chromedp over a real page).
package dom

import (
	"context"
	"io"
)

// InsertPosition selects where InsertElement places a new element relative
// to the receiver, mirroring the host runtime's insertAdjacent positions.
type InsertPosition string

// Insert positions.
const (
	BeforeBegin InsertPosition = "beforebegin"
	AfterBegin  InsertPosition = "afterbegin"
	BeforeEnd   InsertPosition = "beforeend"
	AfterEnd    InsertPosition = "afterend"
)

// Rect is an element's bounding geometry in page coordinates.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Expand grows the rect by margin on every side. The result may have
// negative origin; callers clamp against the surface they draw on.
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		X: r.X - margin,
		Y: r.Y - margin,
		W: r.W + 2*margin,
		H: r.H + 2*margin,
	}
}

// Intersects reports whether two rects overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Node is a reference to a single mutable element in the host document.
// The pipeline does not own the element; the handle stays valid across
// attribute and text mutations but not across removal.
type Node interface {
	// Handle returns a stable, position-derived identity for the element,
	// e.g. "body/form[0]/input[2]". It identifies position, not content.
	Handle() string
	// Tag returns the lowercase element name.
	Tag() string

	Attr(name string) (string, bool)
	SetAttr(name, value string) error
	RemoveAttr(name string) error

	// Text returns the element's visible text content, whitespace-collapsed.
	Text() string
	SetText(text string) error

	// Bounds returns the element's bounding geometry. Static documents
	// synthesize a deterministic layout; live documents report the real
	// box model.
	Bounds() Rect
	// Style returns a computed style property. Static documents resolve
	// inline styles only.
	Style(prop string) string

	Parent() Node
	Children() []Node
	// Index is the element's position among its parent's element children.
	Index() int
	Closest(selector string) Node
	Find(selector string) []Node

	// InsertElement creates a new element with the given attributes and
	// text and inserts it at pos relative to the receiver, returning a
	// handle to the new element.
	InsertElement(pos InsertPosition, tag string, attrs map[string]string, text string) (Node, error)
	Remove() error
}

// Document is the queryable, mutable tree the pipeline runs against.
type Document interface {
	// QueryAll returns every element matching the CSS selector, in
	// document order.
	QueryAll(selector string) []Node
	// Query returns the first match or nil.
	Query(selector string) Node
	Title() string
	// URL returns the document's base URL, used to resolve relative
	// media sources. May be empty for file-loaded documents.
	URL() string
	// Settle blocks until mutations issued so far are visible to
	// subsequent queries. It is the explicit barrier between the
	// generation and analysis phases.
	Settle(ctx context.Context) error
}

// Renderer is implemented by documents that can serialize their current
// tree back to HTML.
type Renderer interface {
	Render(w io.Writer) error
}

// RegionCapturer is implemented by documents that can rasterize an
// arbitrary page region natively. The capture renderer prefers this over
// its synthetic compositor when available.
type RegionCapturer interface {
	CaptureRegion(ctx context.Context, region Rect) ([]byte, error)
}
