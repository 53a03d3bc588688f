package dom

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
)

// Skeleton is the default page markup.
const Skeleton = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Replies</title></head>
<body>
<main class="replies-grid"></main>
<div class="modal-backdrop" hidden>
<div class="modal-dialog" role="dialog" aria-modal="true">
<button id="modal-close" class="modal-close" type="button">×</button>
<div class="modal-body"><div class="tweet-embed-modal"></div></div>
</div>
</div>
</body>
</html>`

// Loader produces the widget capability once an injected script "loaded".
type Loader func(script core.Script) (core.Widget, error)

// Options configures a Document.
type Options struct {
	// Markup is parsed as the initial tree. Defaults to Skeleton.
	Markup string
	// Loader runs after every injection; its widget becomes the capability.
	Loader Loader
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Document implements core.Document over a goquery tree.
type Document struct {
	mu     sync.Mutex
	tree   *goquery.Document
	loader Loader
	logger logging.Logger

	capMu  sync.Mutex
	widget core.Widget
	ready  chan struct{}
	loads  sync.WaitGroup
}

var _ core.Document = (*Document)(nil)

// New parses the configured markup.
func New(optFns ...func(o *Options)) (*Document, error) {
	opts := Options{
		Markup: Skeleton,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tree, err := goquery.NewDocumentFromReader(strings.NewReader(opts.Markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	return &Document{
		tree:   tree,
		loader: opts.Loader,
		logger: logging.OrNoOp(opts.Logger),
		ready:  make(chan struct{}),
	}, nil
}

// HasScript reports whether a script element with id exists.
func (d *Document) HasScript(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scriptLocked(id).Length() > 0
}

func (d *Document) scriptLocked(id string) *goquery.Selection {
	return d.tree.Find("script").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr("id")
		return ok && v == id
	})
}

// InjectScript appends the script element to the body. With a Loader the
// capability appears asynchronously, the way a real script load does.
func (d *Document) InjectScript(script core.Script) error {
	d.mu.Lock()
	body := d.tree.Find("body")
	if body.Length() == 0 {
		d.mu.Unlock()
		return fmt.Errorf("inject %s: document has no body", script.ID)
	}
	body.AppendHtml(fmt.Sprintf(`<script id="%s" src="%s" async charset="utf-8"></script>`,
		html.EscapeString(script.ID), html.EscapeString(script.URL)))
	d.mu.Unlock()

	if d.loader == nil {
		return nil
	}

	d.loads.Add(1)
	go func() {
		defer d.loads.Done()
		w, err := d.loader(script)
		if err != nil {
			d.logger.Warn("Script load failed", "script_id", script.ID, "error", err)
			return
		}
		d.Provide(w)
	}()

	return nil
}

// Capability returns the widget once provided.
func (d *Document) Capability() (core.Widget, bool) {
	d.capMu.Lock()
	defer d.capMu.Unlock()
	return d.widget, d.widget != nil
}

// AwaitCapability blocks until the widget is provided or ctx is done.
func (d *Document) AwaitCapability(ctx context.Context) (core.Widget, error) {
	select {
	case <-d.ready:
		w, _ := d.Capability()
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Provide exposes w as the capability. Only the first call has effect.
func (d *Document) Provide(w core.Widget) {
	d.capMu.Lock()
	defer d.capMu.Unlock()
	if d.widget != nil || w == nil {
		return
	}
	d.widget = w
	close(d.ready)
}

// WaitLoads blocks until asynchronous script loads finished.
func (d *Document) WaitLoads() {
	d.loads.Wait()
}

// HTML renders the whole document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return goquery.OuterHtml(d.tree.Selection)
}

// Find runs fn on the selection matching selector while holding the tree
// lock. fn must not retain the selection.
func (d *Document) Find(selector string, fn func(s *goquery.Selection)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.tree.Find(selector))
}
