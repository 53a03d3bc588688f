package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/embedmesh/core"
)

// Slot is a recording core.Slot. It stores markup as a string and counts
// writes so tests can assert that stale work never touched it.
type Slot struct {
	mu       sync.Mutex
	id       string
	html     string
	children []*Slot
	flags    map[string]bool
	writes   int
	content  float64
	client   float64
}

var _ core.Slot = (*Slot)(nil)

// NewSlot creates an empty slot with a 400px visible height.
func NewSlot(id string) *Slot {
	return &Slot{id: id, flags: map[string]bool{}, client: 400}
}

// ID returns the slot id.
func (s *Slot) ID() string { return s.id }

// Clear removes markup and children.
func (s *Slot) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = ""
	s.children = nil
	s.writes++
	return nil
}

// SetHTML replaces the markup.
func (s *Slot) SetHTML(markup string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = markup
	s.children = nil
	s.writes++
	return nil
}

// AppendChild adds a child slot.
func (s *Slot) AppendChild(class string) (core.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := NewSlot(fmt.Sprintf("%s/%s", s.id, class))
	s.children = append(s.children, c)
	s.writes++
	return c, nil
}

// SetFlag toggles a flag.
func (s *Slot) SetFlag(name string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[name] = on
	return nil
}

// ContentHeight returns the configured content height.
func (s *Slot) ContentHeight() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content, nil
}

// ClientHeight returns the configured visible height.
func (s *Slot) ClientHeight() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client, nil
}

// SetHeights configures the measured heights.
func (s *Slot) SetHeights(content, client float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content, s.client = content, client
}

// HTML returns the markup including children.
func (s *Slot) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.WriteString(s.html)
	for _, c := range s.children {
		b.WriteString(c.HTML())
	}
	return b.String()
}

// Children returns the appended child slots.
func (s *Slot) Children() []*Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Slot(nil), s.children...)
}

// Flag reports a flag value.
func (s *Slot) Flag(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[name]
}

// Writes returns the number of mutating calls received.
func (s *Slot) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Slots is a core.SlotProvider handing out one recording slot per key.
type Slots struct {
	mu      sync.Mutex
	slots   map[core.TargetKey]*Slot
	missing map[core.TargetKey]bool
}

// NewSlots creates an empty provider.
func NewSlots() *Slots {
	return &Slots{slots: map[core.TargetKey]*Slot{}, missing: map[core.TargetKey]bool{}}
}

// Slot returns (creating on demand) the slot for key.
func (p *Slots) Slot(key core.TargetKey) (core.Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.missing[key] {
		return nil, false
	}
	return p.getLocked(key), true
}

// Get returns the recording slot for key.
func (p *Slots) Get(key core.TargetKey) *Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getLocked(key)
}

// Unmount makes key unresolvable until Mount is called.
func (p *Slots) Unmount(key core.TargetKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.missing[key] = true
}

// Mount makes key resolvable again.
func (p *Slots) Mount(key core.TargetKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.missing, key)
}

func (p *Slots) getLocked(key core.TargetKey) *Slot {
	s, ok := p.slots[key]
	if !ok {
		s = NewSlot(key.String())
		p.slots[key] = s
	}
	return s
}
