package dom

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hupe1980/embedmesh/core"
)

// GridSelector locates the list container.
const GridSelector = ".replies-grid"

// Page is the list screen of a Document. It implements core.SlotProvider.
type Page struct {
	doc *Document
}

var _ core.SlotProvider = (*Page)(nil)

// Page returns the list screen view of the document.
func (d *Document) Page() *Page {
	return &Page{doc: d}
}

// Mount replaces the grid content with one card per target, in order.
func (p *Page) Mount(targets []core.Target) error {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	grid := p.doc.tree.Find(GridSelector).First()
	if grid.Length() == 0 {
		return fmt.Errorf("mount: no %s element", GridSelector)
	}

	var b strings.Builder
	for _, t := range targets {
		b.WriteString(`<article class="reply-card"><div class="reply-embed">`)
		fmt.Fprintf(&b, `<div class="tweet-embed" data-tweet-id="%s"`, html.EscapeString(t.PrimaryID))
		if t.ContextID != "" {
			fmt.Fprintf(&b, ` data-original-id="%s"`, html.EscapeString(t.ContextID))
		}
		b.WriteString(`></div></div></article>`)
	}
	grid.SetHtml(b.String())
	return nil
}

// Slot resolves the mounted slot for key.
func (p *Page) Slot(key core.TargetKey) (core.Slot, bool) {
	s, ok := p.Lookup(key)
	if !ok {
		return nil, false
	}
	return s, true
}

// Lookup is Slot with the concrete type.
func (p *Page) Lookup(key core.TargetKey) (*Slot, bool) {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	sel := p.doc.tree.Find(GridSelector + " .tweet-embed[data-tweet-id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("data-tweet-id", "") == key.PrimaryID && s.AttrOr("data-original-id", "") == key.ContextID
	}).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return &Slot{doc: p.doc, id: key.String(), sel: sel}, true
}

// Targets reads the mounted targets back in document order.
func (p *Page) Targets() []core.Target {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	var out []core.Target
	p.doc.tree.Find(GridSelector + " .tweet-embed[data-tweet-id]").Each(func(_ int, s *goquery.Selection) {
		out = append(out, core.Target{
			PrimaryID: s.AttrOr("data-tweet-id", ""),
			ContextID: s.AttrOr("data-original-id", ""),
		})
	})
	return out
}
