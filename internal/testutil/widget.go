package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/embedmesh/core"
)

// Call records one CreateEmbed invocation.
type Call struct {
	ItemID       string
	Conversation core.Conversation
	Container    string
}

// Behavior decides the outcome of a call. It may block; it should return
// when ctx is done so tests do not leak goroutines.
type Behavior func(ctx context.Context, call Call) error

// Succeed renders every call.
func Succeed() Behavior {
	return func(context.Context, Call) error { return nil }
}

// Fail rejects every call.
func Fail() Behavior {
	return func(context.Context, Call) error { return errors.New("widget rejected") }
}

// Hang never settles until ctx is done.
func Hang() Behavior {
	return func(ctx context.Context, _ Call) error {
		<-ctx.Done()
		return ctx.Err()
	}
}

// Block waits for release (then succeeds) or ctx.
func Block(release <-chan struct{}) Behavior {
	return func(ctx context.Context, _ Call) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ByConversation picks a behavior per conversation mode; modes not listed fail.
func ByConversation(m map[core.Conversation]Behavior) Behavior {
	return func(ctx context.Context, call Call) error {
		if b, ok := m[call.Conversation]; ok {
			return b(ctx, call)
		}
		return errors.New("widget rejected")
	}
}

// Widget is a scriptable core.Widget. Successful calls write a rendered
// marker into the container.
type Widget struct {
	mu        sync.Mutex
	behavior  Behavior
	calls     []Call
	refreshes int
}

var _ core.Widget = (*Widget)(nil)

// NewWidget creates a widget with the given behavior.
func NewWidget(b Behavior) *Widget {
	if b == nil {
		b = Succeed()
	}
	return &Widget{behavior: b}
}

// SetBehavior swaps the behavior for subsequent calls.
func (w *Widget) SetBehavior(b Behavior) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.behavior = b
}

// CreateEmbed records the call and applies the behavior.
func (w *Widget) CreateEmbed(ctx context.Context, itemID string, container core.Slot, opts core.DisplayOptions) error {
	call := Call{ItemID: itemID, Conversation: opts.Conversation, Container: container.ID()}
	w.mu.Lock()
	w.calls = append(w.calls, call)
	b := w.behavior
	w.mu.Unlock()

	if err := b(ctx, call); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return container.SetHTML(fmt.Sprintf(`<div class="twitter-tweet-rendered" data-id="%s"></div>`, itemID))
}

// RefreshAll counts refresh requests.
func (w *Widget) RefreshAll(core.Slot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refreshes++
	return nil
}

// Calls returns a copy of the recorded calls.
func (w *Widget) Calls() []Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Call(nil), w.calls...)
}

// CallsFor returns the recorded calls for one item.
func (w *Widget) CallsFor(itemID string) []Call {
	var out []Call
	for _, c := range w.Calls() {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	return out
}

// Refreshes returns the number of RefreshAll calls.
func (w *Widget) Refreshes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refreshes
}
