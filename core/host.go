package core

import "context"

// Widget is the capability object exposed by the external script.
//
// CreateEmbed renders itemID into container. Implementations should honour
// ctx, but callers never rely on it: every attempt is raced against its own
// timeout because the underlying library has no native cancellation.
type Widget interface {
	CreateEmbed(ctx context.Context, itemID string, container Slot, opts DisplayOptions) error
	// RefreshAll asks the library to hydrate static markup inside container
	// (or the whole document when container is nil).
	RefreshAll(container Slot) error
}

// Document is the host page as far as script loading is concerned.
type Document interface {
	// HasScript reports whether an element with the given id is present.
	HasScript(id string) bool
	// InjectScript appends the script element to the document.
	InjectScript(script Script) error
	// Capability returns the widget if the script already exposes it.
	Capability() (Widget, bool)
	// AwaitCapability blocks until the widget is exposed or ctx is done.
	AwaitCapability(ctx context.Context) (Widget, error)
}

// Slot is an externally owned visual container. embedmesh writes into it but
// never owns or destroys it. A slot is written by exactly one target.
type Slot interface {
	// ID is a stable identifier, used for logging.
	ID() string
	// Clear removes all content.
	Clear() error
	// SetHTML replaces the content with the given markup.
	SetHTML(markup string) error
	// AppendChild creates an empty child container carrying class.
	AppendChild(class string) (Slot, error)
	// SetFlag adds or removes a classification flag.
	SetFlag(name string, on bool) error
	// ContentHeight is the height of the rendered content.
	ContentHeight() (float64, error)
	// ClientHeight is the visible height of the container.
	ClientHeight() (float64, error)
}

// SlotProvider resolves the slot mounted for a target. ok is false while the
// placeholder is not mounted yet.
type SlotProvider interface {
	Slot(key TargetKey) (slot Slot, ok bool)
}

// Key names understood by the modal keyboard contract.
const (
	KeyEscape = "Escape"
	KeyTab    = "Tab"
)

// KeyEvent is a keyboard event delivered by the host.
type KeyEvent struct {
	Key   string
	Shift bool
}

// Dialog is the host side of the single expanded-item view.
type Dialog interface {
	// Slot is the dedicated embed container inside the dialog.
	Slot() Slot
	// Focusables lists the ids of focusable elements in document order.
	Focusables() []string
	// ActiveElement returns the focused element id, or "" when focus is
	// outside the dialog.
	ActiveElement() string
	// Focus moves focus to the element with the given id.
	Focus(id string) error
	// CloseControl is the id of the close button.
	CloseControl() string
	// SetScrollLocked disables or re-enables background scrolling.
	SetScrollLocked(locked bool) error
	// OnKey registers a keyboard listener and returns its remover. The
	// listener returns true when it handled the event.
	OnKey(fn func(KeyEvent) bool) (remove func())
	// OnDismiss registers fn for clicks on the close control or on the
	// backdrop outside the dialog, and returns its remover.
	OnDismiss(fn func()) (remove func())
}

// Scheduler defers cosmetic work until layout settled (next paint).
type Scheduler interface {
	AfterPaint(fn func())
}
