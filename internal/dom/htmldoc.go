package dom

import (
	"context"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// HTMLDocument is the static backend: a parsed HTML tree queried and
// mutated in-process. Geometry is synthesized (see layout.go) since no
// layout engine runs here. All methods are safe for concurrent use; the
// underlying tree is guarded by a single lock because fan-out workers
// touch disjoint nodes of one shared document.
type HTMLDocument struct {
	mu      sync.RWMutex
	doc     *goquery.Document
	baseURL string

	layout    map[*xhtml.Node]Rect
	layoutGen int
	layoutFor int
}

// ParseHTML parses an HTML document from r. baseURL is used to resolve
// relative media sources during capture and may be empty.
func ParseHTML(r io.Reader, baseURL string) (*HTMLDocument, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{doc: gq, baseURL: baseURL, layoutGen: 1}, nil
}

// ParseHTMLString parses an HTML document held in memory.
func ParseHTMLString(s, baseURL string) (*HTMLDocument, error) {
	return ParseHTML(strings.NewReader(s), baseURL)
}

// QueryAll returns every element matching selector in document order.
func (d *HTMLDocument) QueryAll(selector string) []Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sel := d.doc.Find(selector)
	nodes := make([]Node, 0, sel.Length())
	for i := 0; i < sel.Length(); i++ {
		nodes = append(nodes, &htmlNode{d: d, sel: sel.Eq(i)})
	}
	return nodes
}

// Query returns the first element matching selector, or nil.
func (d *HTMLDocument) Query(selector string) Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return &htmlNode{d: d, sel: sel}
}

// Title returns the document title, whitespace-collapsed.
func (d *HTMLDocument) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return collapseSpace(d.doc.Find("title").First().Text())
}

// URL returns the base URL the document was loaded from.
func (d *HTMLDocument) URL() string {
	return d.baseURL
}

// Settle is a no-op barrier for the static backend: mutations are applied
// synchronously, so they are already visible to subsequent queries. It
// still honors cancellation so run teardown behaves uniformly.
func (d *HTMLDocument) Settle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Render serializes the current tree, including applied mutations.
func (d *HTMLDocument) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := goquery.Render(w, d.doc.Selection); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

func (d *HTMLDocument) invalidateLayout() {
	d.layoutGen++
}

// htmlNode wraps a single-element goquery selection. Mutations go through
// the owning document's lock.
type htmlNode struct {
	d   *HTMLDocument
	sel *goquery.Selection
}

func (n *htmlNode) raw() *xhtml.Node {
	return n.sel.Nodes[0]
}

// Handle walks the ancestor chain and encodes the element's position,
// e.g. "body/form[0]/input[2]".
func (n *htmlNode) Handle() string {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	var parts []string
	for cur := n.raw(); cur != nil && cur.Type == xhtml.ElementNode; cur = cur.Parent {
		if cur.Data == "html" {
			break
		}
		idx := 0
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == xhtml.ElementNode {
				idx++
			}
		}
		if cur.Data == "body" || cur.Data == "head" {
			parts = append(parts, cur.Data)
		} else {
			parts = append(parts, fmt.Sprintf("%s[%d]", cur.Data, idx))
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func (n *htmlNode) Tag() string {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	return strings.ToLower(n.raw().Data)
}

func (n *htmlNode) Attr(name string) (string, bool) {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	return n.sel.Attr(name)
}

func (n *htmlNode) SetAttr(name, value string) error {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	n.sel.SetAttr(name, value)
	n.d.invalidateLayout()
	return nil
}

func (n *htmlNode) RemoveAttr(name string) error {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	n.sel.RemoveAttr(name)
	n.d.invalidateLayout()
	return nil
}

func (n *htmlNode) Text() string {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	return collapseSpace(n.sel.Text())
}

func (n *htmlNode) SetText(text string) error {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	n.sel.SetText(text)
	n.d.invalidateLayout()
	return nil
}

func (n *htmlNode) Bounds() Rect {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	n.d.ensureLayout()
	return n.d.layout[n.raw()]
}

// Style resolves inline styles only; the static backend has no cascade.
func (n *htmlNode) Style(prop string) string {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	inline, _ := n.sel.Attr("style")
	return parseInlineStyle(inline)[strings.ToLower(prop)]
}

func (n *htmlNode) Parent() Node {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	p := n.sel.Parent()
	if p.Length() == 0 {
		return nil
	}
	return &htmlNode{d: n.d, sel: p}
}

func (n *htmlNode) Children() []Node {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	ch := n.sel.Children()
	out := make([]Node, 0, ch.Length())
	for i := 0; i < ch.Length(); i++ {
		out = append(out, &htmlNode{d: n.d, sel: ch.Eq(i)})
	}
	return out
}

func (n *htmlNode) Index() int {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	return n.sel.Index()
}

func (n *htmlNode) Closest(selector string) Node {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	c := n.sel.Closest(selector)
	if c.Length() == 0 {
		return nil
	}
	return &htmlNode{d: n.d, sel: c}
}

func (n *htmlNode) Find(selector string) []Node {
	n.d.mu.RLock()
	defer n.d.mu.RUnlock()
	sel := n.sel.Find(selector)
	out := make([]Node, 0, sel.Length())
	for i := 0; i < sel.Length(); i++ {
		out = append(out, &htmlNode{d: n.d, sel: sel.Eq(i)})
	}
	return out
}

func (n *htmlNode) InsertElement(pos InsertPosition, tag string, attrs map[string]string, text string) (Node, error) {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()

	markup := buildElement(tag, attrs, text)
	var inserted *goquery.Selection
	switch pos {
	case BeforeBegin:
		n.sel.BeforeHtml(markup)
		inserted = n.sel.Prev()
	case AfterEnd:
		n.sel.AfterHtml(markup)
		inserted = n.sel.Next()
	case AfterBegin:
		n.sel.PrependHtml(markup)
		inserted = n.sel.Children().First()
	case BeforeEnd:
		n.sel.AppendHtml(markup)
		inserted = n.sel.Children().Last()
	default:
		return nil, fmt.Errorf("insert element: unknown position %q", pos)
	}
	if inserted.Length() == 0 || !strings.EqualFold(inserted.Nodes[0].Data, tag) {
		return nil, fmt.Errorf("insert element: %s at %s did not attach", tag, pos)
	}
	n.d.invalidateLayout()
	return &htmlNode{d: n.d, sel: inserted}, nil
}

func (n *htmlNode) Remove() error {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	n.sel.Remove()
	n.d.invalidateLayout()
	return nil
}

func buildElement(tag string, attrs map[string]string, text string) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(tag)
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attrs[k]))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	b.WriteString(html.EscapeString(text))
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseInlineStyle splits a style attribute into lowercase property/value
// pairs. Malformed declarations are skipped.
func parseInlineStyle(style string) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
