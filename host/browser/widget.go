package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hupe1980/embedmesh/core"
)

// ErrNotResolved is returned when createTweet settled without an element.
var ErrNotResolved = errors.New("createTweet resolved without an element")

// ErrForeignSlot is returned for containers not created by this package.
var ErrForeignSlot = errors.New("container is not a browser slot")

// Widget calls twttr.widgets inside the page.
type Widget struct {
	page *rod.Page
}

var _ core.Widget = (*Widget)(nil)

// NewWidget binds the in-page widget library of page.
func NewWidget(page *rod.Page) *Widget {
	return &Widget{page: page}
}

// CreateEmbed awaits twttr.widgets.createTweet for itemID in container.
func (w *Widget) CreateEmbed(ctx context.Context, itemID string, container core.Slot, opts core.DisplayOptions) error {
	slot, ok := container.(*Slot)
	if !ok {
		return ErrForeignSlot
	}

	v, err := eval(ctx, w.page, `(id, sel, opts) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		return window.twttr.widgets.createTweet(id, el, opts).then((r) => !!r);
	}`, itemID, slot.selector, opts.Map())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("createTweet %s: %w", itemID, err)
	}
	if !v.Bool() {
		return fmt.Errorf("%w: %s", ErrNotResolved, itemID)
	}
	return nil
}

// RefreshAll calls twttr.widgets.load for container, or the whole page when
// container is nil.
func (w *Widget) RefreshAll(container core.Slot) error {
	selector := ""
	if slot, ok := container.(*Slot); ok {
		selector = slot.selector
	}

	_, err := evalShort(w.page, `(sel) => {
		if (!window.twttr || !window.twttr.widgets) return false;
		const el = sel ? document.querySelector(sel) : undefined;
		window.twttr.widgets.load(el || undefined);
		return true;
	}`, selector)
	return err
}
