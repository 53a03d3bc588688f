package dom

import (
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/hupe1980/embedmesh/core"
)

const (
	// DialogSelector locates the modal dialog.
	DialogSelector = ".modal-dialog"
	// FocusableSelector lists what the focus trap cycles through.
	FocusableSelector = `a[href], button, textarea, input, select, [tabindex]:not([tabindex="-1"])`
	// ScrollLockClass is set on <body> while the modal is open.
	ScrollLockClass = "modal-open"

	// BackdropSelector locates the overlay around the dialog.
	BackdropSelector = ".modal-backdrop"

	modalSlotSelector = ".tweet-embed-modal"
	closeSelector     = ".modal-close"
	activeAttr        = "data-active"
)

// Dialog implements core.Dialog over the document's modal markup.
type Dialog struct {
	doc  *Document
	slot *Slot

	mu        sync.Mutex
	active    string
	listeners map[int]func(core.KeyEvent) bool
	dismiss   map[int]func()
	nextID    int
}

var _ core.Dialog = (*Dialog)(nil)

// Dialog binds the modal markup. Focusable elements without an id get one.
func (d *Document) Dialog() (*Dialog, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dialog := d.tree.Find(DialogSelector).First()
	if dialog.Length() == 0 {
		return nil, fmt.Errorf("no %s element", DialogSelector)
	}
	slot := dialog.Find(modalSlotSelector).First()
	if slot.Length() == 0 {
		return nil, fmt.Errorf("no %s element", modalSlotSelector)
	}

	dialog.Find(FocusableSelector).Each(func(i int, s *goquery.Selection) {
		if _, ok := s.Attr("id"); !ok {
			s.SetAttr("id", "modal-focusable-"+strconv.Itoa(i))
		}
	})

	return &Dialog{
		doc:       d,
		slot:      &Slot{doc: d, id: "modal", sel: slot},
		listeners: map[int]func(core.KeyEvent) bool{},
		dismiss:   map[int]func(){},
	}, nil
}

// Slot returns the modal embed slot.
func (g *Dialog) Slot() core.Slot { return g.slot }

// EmbedSlot is Slot with the concrete type.
func (g *Dialog) EmbedSlot() *Slot { return g.slot }

// Focusables returns the ids of focusable elements in document order.
func (g *Dialog) Focusables() []string {
	g.doc.mu.Lock()
	defer g.doc.mu.Unlock()
	return g.focusablesLocked()
}

func (g *Dialog) focusablesLocked() []string {
	var ids []string
	g.doc.tree.Find(DialogSelector).First().Find(FocusableSelector).Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok {
			ids = append(ids, id)
		}
	})
	return ids
}

// ActiveElement returns the focused id inside the dialog, or "".
func (g *Dialog) ActiveElement() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Focus marks the element with id as active.
func (g *Dialog) Focus(id string) error {
	g.doc.mu.Lock()
	defer g.doc.mu.Unlock()

	if !slices.Contains(g.focusablesLocked(), id) {
		return fmt.Errorf("focus %q: not a focusable element of the dialog", id)
	}
	dialog := g.doc.tree.Find(DialogSelector).First()
	dialog.Find("[" + activeAttr + "]").RemoveAttr(activeAttr)
	dialog.Find(FocusableSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	}).SetAttr(activeAttr, "true")

	g.mu.Lock()
	g.active = id
	g.mu.Unlock()
	return nil
}

// Blur moves focus outside the dialog.
func (g *Dialog) Blur() {
	g.doc.mu.Lock()
	g.doc.tree.Find(DialogSelector).Find("[" + activeAttr + "]").RemoveAttr(activeAttr)
	g.doc.mu.Unlock()

	g.mu.Lock()
	g.active = ""
	g.mu.Unlock()
}

// CloseControl returns the id of the close button.
func (g *Dialog) CloseControl() string {
	g.doc.mu.Lock()
	defer g.doc.mu.Unlock()
	return g.doc.tree.Find(DialogSelector).First().Find(closeSelector).First().AttrOr("id", "")
}

// SetScrollLocked toggles the body class and the backdrop visibility.
func (g *Dialog) SetScrollLocked(locked bool) error {
	g.doc.mu.Lock()
	defer g.doc.mu.Unlock()

	body := g.doc.tree.Find("body")
	backdrop := g.doc.tree.Find(BackdropSelector)
	if locked {
		body.AddClass(ScrollLockClass)
		backdrop.RemoveAttr("hidden")
	} else {
		body.RemoveClass(ScrollLockClass)
		backdrop.SetAttr("hidden", "")
	}
	return nil
}

// ScrollLocked reports whether the body carries the lock class.
func (g *Dialog) ScrollLocked() bool {
	g.doc.mu.Lock()
	defer g.doc.mu.Unlock()
	return g.doc.tree.Find("body").HasClass(ScrollLockClass)
}

// OnKey registers a keyboard listener.
func (g *Dialog) OnKey(fn func(core.KeyEvent) bool) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

// Dispatch delivers ev to the registered listeners, outside any lock so a
// listener may close the dialog. It reports whether a listener handled it.
func (g *Dialog) Dispatch(ev core.KeyEvent) bool {
	g.mu.Lock()
	fns := make([]func(core.KeyEvent) bool, 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	handled := false
	for _, fn := range fns {
		if fn(ev) {
			handled = true
		}
	}
	return handled
}

// OnDismiss registers a listener for close-button and backdrop clicks.
func (g *Dialog) OnDismiss(fn func()) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.dismiss[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.dismiss, id)
	}
}

// Click delivers a click on the element with id. Clicks on the close
// control dismiss the dialog; clicks on anything else inside it do not.
// It reports whether the click dismissed.
func (g *Dialog) Click(id string) bool {
	g.doc.mu.Lock()
	el := g.doc.tree.Find(DialogSelector).First().Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	})
	closing := el.Length() > 0 && el.Is(closeSelector)
	g.doc.mu.Unlock()

	if !closing {
		return false
	}
	return g.fireDismiss()
}

// ClickBackdrop delivers a click that lands on the backdrop itself, outside
// the dialog.
func (g *Dialog) ClickBackdrop() bool {
	g.doc.mu.Lock()
	visible := false
	if b := g.doc.tree.Find(BackdropSelector).First(); b.Length() > 0 {
		_, hidden := b.Attr("hidden")
		visible = !hidden
	}
	g.doc.mu.Unlock()

	if !visible {
		return false
	}
	return g.fireDismiss()
}

// fireDismiss runs the dismiss listeners outside any lock.
func (g *Dialog) fireDismiss() bool {
	g.mu.Lock()
	fns := make([]func(), 0, len(g.dismiss))
	for _, fn := range g.dismiss {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns) > 0
}
