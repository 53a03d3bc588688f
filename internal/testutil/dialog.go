package testutil

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/embedmesh/core"
)

// Dialog is a recording core.Dialog with a fixed list of focusable ids.
type Dialog struct {
	mu         sync.Mutex
	slot       *Slot
	focusables []string
	closeID    string
	active     string
	locked     bool
	listeners  map[int]func(core.KeyEvent) bool
	dismiss    map[int]func()
	nextID     int
}

var _ core.Dialog = (*Dialog)(nil)

// NewDialog creates a dialog whose first focusable is the close control.
func NewDialog(focusables ...string) *Dialog {
	if len(focusables) == 0 {
		focusables = []string{"modal-close"}
	}
	return &Dialog{
		slot:       NewSlot("modal"),
		focusables: focusables,
		closeID:    focusables[0],
		listeners:  map[int]func(core.KeyEvent) bool{},
		dismiss:    map[int]func(){},
	}
}

// Slot returns the modal embed slot.
func (d *Dialog) Slot() core.Slot { return d.slot }

// Recorder returns the modal slot for assertions.
func (d *Dialog) Recorder() *Slot { return d.slot }

// Focusables returns the focusable ids.
func (d *Dialog) Focusables() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.focusables...)
}

// ActiveElement returns the focused id.
func (d *Dialog) ActiveElement() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Focus moves focus to id.
func (d *Dialog) Focus(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.focusables, id) {
		return fmt.Errorf("element %q not focusable", id)
	}
	d.active = id
	return nil
}

// Blur moves focus outside the dialog.
func (d *Dialog) Blur() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = ""
}

// CloseControl returns the close button id.
func (d *Dialog) CloseControl() string { return d.closeID }

// SetScrollLocked records the background scroll lock.
func (d *Dialog) SetScrollLocked(locked bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locked = locked
	return nil
}

// ScrollLocked reports the background scroll lock.
func (d *Dialog) ScrollLocked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// OnKey registers a listener.
func (d *Dialog) OnKey(fn func(core.KeyEvent) bool) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Listeners returns the number of registered listeners.
func (d *Dialog) Listeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// Press delivers a key event to the listeners and reports whether one
// handled it. Listeners run without the dialog lock held.
func (d *Dialog) Press(key string, shift bool) bool {
	d.mu.Lock()
	fns := make([]func(core.KeyEvent) bool, 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	handled := false
	for _, fn := range fns {
		if fn(core.KeyEvent{Key: key, Shift: shift}) {
			handled = true
		}
	}
	return handled
}

// OnDismiss registers a dismiss listener.
func (d *Dialog) OnDismiss(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.dismiss[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.dismiss, id)
	}
}

// DismissListeners returns the number of registered dismiss listeners.
func (d *Dialog) DismissListeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dismiss)
}

// Dismiss simulates a close-button or backdrop click.
func (d *Dialog) Dismiss() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.dismiss))
	for _, fn := range d.dismiss {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
