package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"github.com/ysmood/gson"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
)

const (
	dialogSelector    = ".modal-dialog"
	backdropSelector  = ".modal-backdrop"
	closeSelector     = ".modal-close"
	modalSlotSelector = ".tweet-embed-modal"
	focusableSelector = `a[href], button, textarea, input, select, [tabindex]:not([tabindex="-1"])`
	scrollLockClass   = "modal-open"
)

// Dialog implements core.Dialog over the page's .modal-dialog. Key events
// and dismiss clicks are bridged from page listeners through page.Expose.
type Dialog struct {
	page   *rod.Page
	logger logging.Logger
}

var _ core.Dialog = (*Dialog)(nil)

// NewDialog wraps the modal markup of page.
func NewDialog(page *rod.Page, logger logging.Logger) *Dialog {
	return &Dialog{page: page, logger: logging.OrNoOp(logger)}
}

// Slot returns the modal embed container.
func (d *Dialog) Slot() core.Slot {
	return NewSlot(d.page, "modal", dialogSelector+" "+modalSlotSelector)
}

// Focusables lists focusable ids in document order, assigning ids where
// elements have none.
func (d *Dialog) Focusables() []string {
	v, err := evalShort(d.page, `(dsel, fsel) => {
		const dialog = document.querySelector(dsel);
		if (!dialog) return [];
		return Array.from(dialog.querySelectorAll(fsel)).map((el, i) => {
			if (!el.id) el.id = 'modal-focusable-' + i;
			return el.id;
		});
	}`, dialogSelector, focusableSelector)
	if err != nil {
		d.logger.Debug("Listing focusables failed", "error", err)
		return nil
	}
	var ids []string
	for _, id := range v.Arr() {
		ids = append(ids, id.Str())
	}
	return ids
}

// ActiveElement returns the focused id when focus is inside the dialog.
func (d *Dialog) ActiveElement() string {
	v, err := evalShort(d.page, `(dsel) => {
		const dialog = document.querySelector(dsel);
		const active = document.activeElement;
		return dialog && active && dialog.contains(active) ? active.id : '';
	}`, dialogSelector)
	if err != nil {
		return ""
	}
	return v.Str()
}

// Focus focuses the element with id.
func (d *Dialog) Focus(id string) error {
	v, err := evalShort(d.page, `(id) => {
		const el = document.getElementById(id);
		if (!el) return false;
		el.focus();
		return true;
	}`, id)
	if err != nil {
		return fmt.Errorf("focus %s: %w", id, err)
	}
	if !v.Bool() {
		return fmt.Errorf("focus %s: element not found", id)
	}
	return nil
}

// CloseControl returns the id of .modal-close, assigning one if missing.
func (d *Dialog) CloseControl() string {
	v, err := evalShort(d.page, `(dsel, csel) => {
		const btn = document.querySelector(dsel + ' ' + csel);
		if (!btn) return '';
		if (!btn.id) btn.id = 'modal-close';
		return btn.id;
	}`, dialogSelector, closeSelector)
	if err != nil {
		return ""
	}
	return v.Str()
}

// SetScrollLocked toggles the body lock class.
func (d *Dialog) SetScrollLocked(locked bool) error {
	_, err := evalShort(d.page, `(cls, on) => { document.body.classList.toggle(cls, on); return true; }`, scrollLockClass, locked)
	return err
}

// OnKey bridges window keydown events for Escape and Tab to fn. Both keys
// have their default action prevented; focus moves are done by fn.
func (d *Dialog) OnKey(fn func(core.KeyEvent) bool) func() {
	name := "embedmeshKey_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	stop, err := d.page.Expose(name, func(arg gson.JSON) (interface{}, error) {
		return fn(core.KeyEvent{Key: arg.Get("key").Str(), Shift: arg.Get("shift").Bool()}), nil
	})
	if err != nil {
		d.logger.Warn("Exposing key bridge failed", "error", err)
		return func() {}
	}

	_, err = evalShort(d.page, `(name) => {
		const listener = (e) => {
			if (e.key !== 'Escape' && e.key !== 'Tab') return;
			e.preventDefault();
			window[name]({ key: e.key, shift: e.shiftKey });
		};
		window[name + '_listener'] = listener;
		window.addEventListener('keydown', listener);
		return true;
	}`, name)
	if err != nil {
		d.logger.Warn("Installing key listener failed", "error", err)
	}

	return func() {
		_, _ = evalShort(d.page, `(name) => {
			const listener = window[name + '_listener'];
			if (listener) window.removeEventListener('keydown', listener);
			delete window[name + '_listener'];
			return true;
		}`, name)
		if err := stop(); err != nil {
			d.logger.Debug("Removing key bridge failed", "error", err)
		}
	}
}

// OnDismiss bridges clicks on the close control, and clicks landing on the
// backdrop itself, to fn. fn runs on its own goroutine so it may remove the
// bridge it was called from.
func (d *Dialog) OnDismiss(fn func()) func() {
	name := "embedmeshDismiss_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	stop, err := d.page.Expose(name, func(gson.JSON) (interface{}, error) {
		go fn()
		return true, nil
	})
	if err != nil {
		d.logger.Warn("Exposing dismiss bridge failed", "error", err)
		return func() {}
	}

	_, err = evalShort(d.page, `(name, bsel, csel) => {
		const onClose = () => window[name]({});
		const onBackdrop = (e) => {
			if (e.target === e.currentTarget) window[name]({});
		};
		const close = document.querySelector(csel);
		const backdrop = document.querySelector(bsel);
		if (close) close.addEventListener('click', onClose);
		if (backdrop) backdrop.addEventListener('click', onBackdrop);
		window[name + '_remove'] = () => {
			if (close) close.removeEventListener('click', onClose);
			if (backdrop) backdrop.removeEventListener('click', onBackdrop);
		};
		return true;
	}`, name, backdropSelector, dialogSelector+" "+closeSelector)
	if err != nil {
		d.logger.Warn("Installing dismiss listeners failed", "error", err)
	}

	return func() {
		_, _ = evalShort(d.page, `(name) => {
			const remove = window[name + '_remove'];
			if (remove) remove();
			delete window[name + '_remove'];
			return true;
		}`, name)
		if err := stop(); err != nil {
			d.logger.Debug("Removing dismiss bridge failed", "error", err)
		}
	}
}
