// Package pagectx assembles the bounded textual context sent alongside each
// capture. The summary pulls page metadata, structural ancestry, positional
// facts and neighboring text together; every part is truncated before
// concatenation and the whole summary is truncated again, so prompt size
// stays predictable no matter how deep or noisy the document is.
package pagectx

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
)

const (
	partCap      = 80
	totalCap     = 400
	maxAncestors = 5
)

var structuralTags = map[string]bool{
	"form": true, "fieldset": true, "section": true, "article": true,
	"nav": true, "header": true, "footer": true, "aside": true,
	"main": true, "ul": true, "ol": true, "table": true, "figure": true,
}

// Summarize derives the context summary for one node. It reads the tree and
// never mutates it.
func Summarize(doc dom.Document, cat classify.Category, n dom.Node) string {
	var parts []string
	add := func(label, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			parts = append(parts, label+": "+truncate(value, partCap))
		}
	}

	add("Page", doc.Title())
	add("Description", metaContent(doc, "description"))
	add("Heading", queryText(doc, "h1"))
	if anc := ancestry(n); len(anc) > 0 {
		parts = append(parts, "Within: "+strings.Join(anc, " > "))
	}

	switch cat {
	case classify.Image:
		imageFacts(n, add)
	case classify.FormField:
		formFieldFacts(doc, n, add)
	case classify.Link:
		linkFacts(n, add)
	}

	return truncate(strings.Join(parts, ". "), totalCap)
}

func imageFacts(n dom.Node, add func(string, string)) {
	if src, _ := n.Attr("src"); src != "" {
		add("Source", path.Base(src))
	}
	if alt, _ := n.Attr("alt"); alt != "" {
		add("Current alt", alt)
	}
	if fig := n.Closest("figure"); fig != nil {
		if caps := fig.Find("figcaption"); len(caps) > 0 {
			add("Caption", caps[0].Text())
		}
	}
}

func formFieldFacts(doc dom.Document, n dom.Node, add func(string, string)) {
	if typ, _ := n.Attr("type"); typ != "" {
		add("Type", typ)
	} else {
		add("Type", n.Tag())
	}
	if ph, _ := n.Attr("placeholder"); ph != "" {
		add("Placeholder", ph)
	}

	form := n.Closest("form")
	if form == nil {
		return
	}
	if h := formHeading(form); h != "" {
		add("Form heading", h)
	}
	fields := form.Find("input, select, textarea")
	pos := -1
	for i, f := range fields {
		if f.Handle() == n.Handle() {
			pos = i
			break
		}
	}
	if pos >= 0 {
		add("Position", fmt.Sprintf("Field %d of %d", pos+1, len(fields)))
		if pos > 0 {
			if prev := classify.AccessibleName(doc, fields[pos-1]); prev != "" {
				add("Previous field", prev)
			}
		}
	}
}

func linkFacts(n dom.Node, add func(string, string)) {
	add("Current text", n.Text())
	if href, _ := n.Attr("href"); href != "" {
		add("Destination", destination(href))
	}
	if item := n.Closest("li"); item != nil {
		if list := item.Closest("ul, ol"); list != nil {
			items := list.Find("li")
			for i, li := range items {
				if li.Handle() == item.Handle() {
					add("Position", fmt.Sprintf("Item %d of %d", i+1, len(items)))
					break
				}
			}
		}
	}
	if parent := n.Parent(); parent != nil {
		if t := parent.Text(); t != n.Text() {
			add("Surrounding text", t)
		}
	}
}

// ancestry lists enclosing structural elements, outermost first.
func ancestry(n dom.Node) []string {
	var tags []string
	for cur := n.Parent(); cur != nil && len(tags) < maxAncestors; cur = cur.Parent() {
		tag := cur.Tag()
		if tag == "body" || tag == "html" {
			break
		}
		if structuralTags[tag] {
			tags = append(tags, tag)
		}
	}
	for i, j := 0, len(tags)-1; i < j; i, j = i+1, j-1 {
		tags[i], tags[j] = tags[j], tags[i]
	}
	return tags
}

// formHeading prefers a heading or legend inside the form over page-level
// headings, which are already reported separately.
func formHeading(form dom.Node) string {
	for _, sel := range []string{"legend", "h1", "h2", "h3"} {
		if hs := form.Find(sel); len(hs) > 0 {
			if t := hs[0].Text(); t != "" {
				return t
			}
		}
	}
	return ""
}

func metaContent(doc dom.Document, name string) string {
	if m := doc.Query(fmt.Sprintf("meta[name=%q]", name)); m != nil {
		c, _ := m.Attr("content")
		return c
	}
	return ""
}

func queryText(doc dom.Document, selector string) string {
	if n := doc.Query(selector); n != nil {
		return n.Text()
	}
	return ""
}

func destination(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.Host == "" {
		return u.Path
	}
	return u.Host + u.Path
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
