package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/google/uuid"

	"github.com/hupe1980/embedmesh/core"
)

// SlotAttr marks child containers created by AppendChild.
const SlotAttr = "data-embedmesh-slot"

// Slot is a core.Slot addressed by a CSS selector.
type Slot struct {
	page     *rod.Page
	id       string
	selector string
}

var _ core.Slot = (*Slot)(nil)

// NewSlot addresses the first element matching selector.
func NewSlot(page *rod.Page, id, selector string) *Slot {
	return &Slot{page: page, id: id, selector: selector}
}

// ID returns the slot id.
func (s *Slot) ID() string { return s.id }

// Selector returns the CSS selector of the slot element.
func (s *Slot) Selector() string { return s.selector }

func (s *Slot) run(js string, args ...interface{}) error {
	v, err := evalShort(s.page, js, append([]interface{}{s.selector}, args...)...)
	if err != nil {
		return fmt.Errorf("slot %s: %w", s.id, err)
	}
	if !v.Bool() {
		return fmt.Errorf("slot %s: element %s not found", s.id, s.selector)
	}
	return nil
}

// Clear removes all children.
func (s *Slot) Clear() error {
	return s.run(`(sel) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.innerHTML = '';
		return true;
	}`)
}

// SetHTML replaces the content.
func (s *Slot) SetHTML(markup string) error {
	return s.run(`(sel, html) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.innerHTML = html;
		return true;
	}`, markup)
}

// AppendChild appends a div carrying class and a generated slot attribute.
func (s *Slot) AppendChild(class string) (core.Slot, error) {
	mark := uuid.NewString()
	err := s.run(`(sel, cls, attr, mark) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		const child = document.createElement('div');
		child.className = cls;
		child.setAttribute(attr, mark);
		el.appendChild(child);
		return true;
	}`, class, SlotAttr, mark)
	if err != nil {
		return nil, err
	}
	return &Slot{
		page:     s.page,
		id:       s.id + "/" + class,
		selector: fmt.Sprintf("[%s=%s]", SlotAttr, cssString(mark)),
	}, nil
}

// SetFlag toggles a class on the enclosing .reply-embed frame (or the slot).
func (s *Slot) SetFlag(name string, on bool) error {
	return s.run(`(sel, name, on) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		(el.closest('.reply-embed') || el).classList.toggle(name, on);
		return true;
	}`, name, on)
}

// ContentHeight measures the inner embed block, falling back to the frame's
// scroll height.
func (s *Slot) ContentHeight() (float64, error) {
	return s.measure(`(sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		const frame = el.closest('.reply-embed') || el;
		const inner = frame.querySelector('.tweet-embed, .twitter-tweet, .twitter-tweet-rendered');
		return inner ? inner.offsetHeight : frame.scrollHeight;
	}`)
}

// ClientHeight is the visible height of the frame.
func (s *Slot) ClientHeight() (float64, error) {
	return s.measure(`(sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		return (el.closest('.reply-embed') || el).clientHeight;
	}`)
}

func (s *Slot) measure(js string) (float64, error) {
	v, err := evalShort(s.page, js, s.selector)
	if err != nil {
		return 0, fmt.Errorf("slot %s: %w", s.id, err)
	}
	if v.Nil() {
		return 0, fmt.Errorf("slot %s: element %s not found", s.id, s.selector)
	}
	return v.Num(), nil
}

// Page resolves list slots of a rod page. It implements core.SlotProvider.
type Page struct {
	page *rod.Page
}

var _ core.SlotProvider = (*Page)(nil)

// NewPage wraps page.
func NewPage(page *rod.Page) *Page {
	return &Page{page: page}
}

// SlotSelector returns the selector of the placeholder for key.
func SlotSelector(key core.TargetKey) string {
	sel := fmt.Sprintf(".tweet-embed[data-tweet-id=%s]", cssString(key.PrimaryID))
	if key.ContextID == "" {
		return sel + ":not([data-original-id])"
	}
	return sel + fmt.Sprintf("[data-original-id=%s]", cssString(key.ContextID))
}

// Slot resolves the mounted placeholder for key.
func (p *Page) Slot(key core.TargetKey) (core.Slot, bool) {
	sel := SlotSelector(key)
	v, err := evalShort(p.page, `(sel) => !!document.querySelector(sel)`, sel)
	if err != nil || !v.Bool() {
		return nil, false
	}
	return NewSlot(p.page, key.String(), sel), true
}
