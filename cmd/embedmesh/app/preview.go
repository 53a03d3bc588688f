package app

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hupe1980/embedmesh"
	"github.com/hupe1980/embedmesh/config"
	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/host/dom"
	"github.com/hupe1980/embedmesh/logging"
	"github.com/hupe1980/embedmesh/oembed"
	"github.com/hupe1980/embedmesh/renderer"
	"github.com/hupe1980/embedmesh/view"
)

// previewer renders one page of items into a fresh in-memory document.
type previewer struct {
	cfg    *config.Config
	loader dom.Loader
	logger logging.Logger
}

// newPreviewer renders rich embeds through the oEmbed endpoint when online,
// otherwise the script never loads and every slot gets its placeholder.
func newPreviewer(cfg *config.Config, online bool, logger logging.Logger) *previewer {
	p := &previewer{cfg: cfg, logger: logging.OrNoOp(logger)}
	if online {
		p.loader = oembed.Loader(func(o *oembed.Options) {
			o.Endpoint = cfg.OEmbed.Endpoint
			o.HTTPClient = &http.Client{Timeout: cfg.OEmbed.Timeout}
			o.StatusURLPrefix = cfg.Renderer.StatusURLPrefix
			o.Logger = logger
		})
	}
	return p
}

// Render mounts the visible set of state, renders it and returns the page
// markup including the pagination strip.
func (p *previewer) Render(ctx context.Context, items []core.Item, state view.State) (string, error) {
	doc, err := dom.New(func(o *dom.Options) {
		o.Loader = p.loader
		o.Logger = p.logger
	})
	if err != nil {
		return "", err
	}

	page := doc.Page()
	mesh := embedmesh.New(doc, page, embedmesh.WithConfig(p.cfg), func(o *embedmesh.Options) {
		o.Logger = p.logger
		o.Scheduler = renderer.SchedulerFunc(func(fn func()) { fn() })
		o.OrchestratorConfig.RepollDelays = nil
	})
	defer mesh.Close()

	// the first pass only fixes the state; nothing is listed yet
	mesh.Update(ctx, state)
	sel := view.Select(items, mesh.Orchestrator().State())
	if err := page.Mount(sel.Targets); err != nil {
		return "", err
	}

	mesh.SetItems(ctx, items)
	if err := mesh.Wait(ctx); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}

	doc.Find("body", func(s *goquery.Selection) {
		s.AppendHtml(pagination(sel))
	})

	return doc.HTML()
}

func pagination(sel view.Selection) string {
	w := sel.Window

	var b strings.Builder
	b.WriteString(`<nav class="pagination">`)
	fmt.Fprintf(&b, `<span class="summary">%s</span>`, html.EscapeString(w.Summary()))
	if sel.Paged && w.TotalPages > 1 {
		if w.HasPrev() {
			fmt.Fprintf(&b, `<a class="prev" href="?page=%d&size=%d">Previous</a>`, w.Page-1, w.PageSize)
		}
		for _, n := range w.Numbers() {
			switch {
			case n == view.Ellipsis:
				b.WriteString(`<span class="ellipsis">…</span>`)
			case n == w.Page:
				fmt.Fprintf(&b, `<span class="current">%d</span>`, n)
			default:
				fmt.Fprintf(&b, `<a class="page" href="?page=%d&size=%d">%d</a>`, n, w.PageSize, n)
			}
		}
		if w.HasNext() {
			fmt.Fprintf(&b, `<a class="next" href="?page=%d&size=%d">Next</a>`, w.Page+1, w.PageSize)
		}
	}
	b.WriteString(`</nav>`)
	return b.String()
}
