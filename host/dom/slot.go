package dom

import (
	"fmt"
	"html"
	"math"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/hupe1980/embedmesh/core"
)

const (
	// DefaultClientHeight is the visible height of a frame without a
	// data-client-height attribute.
	DefaultClientHeight = 400

	// estimates for ContentHeight when nothing declares a height
	embedHeight = 180
	lineHeight  = 24
	lineChars   = 60
)

// embedSelector matches rendered or pending embeds inside a slot.
const embedSelector = "iframe, blockquote, .twitter-tweet, .twitter-tweet-rendered"

// Slot is a core.Slot over one element of the document.
type Slot struct {
	doc *Document
	id  string
	sel *goquery.Selection
}

var _ core.Slot = (*Slot)(nil)

// ID returns the slot id.
func (s *Slot) ID() string { return s.id }

// Clear removes all children.
func (s *Slot) Clear() error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	s.sel.Empty()
	return nil
}

// SetHTML replaces the content with markup.
func (s *Slot) SetHTML(markup string) error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	s.sel.SetHtml(markup)
	return nil
}

// AppendChild appends an empty div carrying class.
func (s *Slot) AppendChild(class string) (core.Slot, error) {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	s.sel.AppendHtml(fmt.Sprintf(`<div class="%s"></div>`, html.EscapeString(class)))
	child := s.sel.Children().Last()
	if child.Length() == 0 {
		return nil, fmt.Errorf("append %s to %s: no element created", class, s.id)
	}
	return &Slot{doc: s.doc, id: s.id + "/" + class, sel: child}, nil
}

// SetFlag toggles a class on the slot frame.
func (s *Slot) SetFlag(name string, on bool) error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	if on {
		s.frameLocked().AddClass(name)
	} else {
		s.frameLocked().RemoveClass(name)
	}
	return nil
}

// HasFlag reports whether the frame carries the flag.
func (s *Slot) HasFlag(name string) bool {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	return s.frameLocked().HasClass(name)
}

// ContentHeight returns the declared data-height of the content or an
// estimate from the embeds and text it holds.
func (s *Slot) ContentHeight() (float64, error) {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()

	declared := 0.0
	found := false
	s.sel.Find("[data-height]").Each(func(_ int, el *goquery.Selection) {
		if h, err := strconv.ParseFloat(el.AttrOr("data-height", ""), 64); err == nil {
			declared += h
			found = true
		}
	})
	if found {
		return declared, nil
	}

	embeds := s.sel.Find(embedSelector).Length()
	text := len([]rune(s.sel.Text()))
	lines := math.Ceil(float64(text) / lineChars)
	return float64(embeds*embedHeight) + lines*lineHeight, nil
}

// ClientHeight returns the frame's data-client-height or DefaultClientHeight.
func (s *Slot) ClientHeight() (float64, error) {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	v, ok := s.frameLocked().Attr("data-client-height")
	if !ok {
		return DefaultClientHeight, nil
	}
	h, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("slot %s: client height %q: %w", s.id, v, err)
	}
	return h, nil
}

// SetClientHeight declares the visible height of the frame.
func (s *Slot) SetClientHeight(h float64) {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	s.frameLocked().SetAttr("data-client-height", strconv.FormatFloat(h, 'f', -1, 64))
}

// HTML returns the inner markup.
func (s *Slot) HTML() string {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	out, _ := s.sel.Html()
	return out
}

// frameLocked is the measured and flagged container: the enclosing
// .reply-embed when present, the slot itself otherwise.
func (s *Slot) frameLocked() *goquery.Selection {
	if f := s.sel.Closest(".reply-embed"); f.Length() > 0 {
		return f
	}
	return s.sel
}
