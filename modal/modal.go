// Package modal manages the single expanded-item view: one embed rendered
// into a dedicated dialog slot and a keyboard focus trap. Escape, the close
// button and a backdrop click all close it.
//
// The controller uses its own registry, so list-level passes never
// invalidate the modal render and vice versa.
package modal

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
)

// Renderer resolves one target. *renderer.Renderer implements it.
type Renderer interface {
	Render(ctx context.Context, target core.Target, slot core.Slot, gen core.Generation) error
}

// EmbedClass marks the per-open container inside the dialog slot.
const EmbedClass = "modal-embed"

// Options configures a Controller.
type Options struct {
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Controller is the Closed | Open(target) state machine. At most one target
// is selected at any time. All methods are safe for concurrent use.
type Controller struct {
	dialog   core.Dialog
	renderer Renderer
	reg      core.Registry
	logger   logging.Logger

	mu        sync.Mutex
	open      bool
	selection core.Target

	removeKey     func()
	removeDismiss func()

	renders sync.WaitGroup
}

// New creates a closed controller. r must commit to reg, and reg must not
// be shared with a list orchestrator.
func New(dialog core.Dialog, r Renderer, reg core.Registry, optFns ...func(o *Options)) *Controller {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Controller{
		dialog:   dialog,
		renderer: r,
		reg:      reg,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Open selects target, replacing any open selection atomically, and starts
// rendering it into the dialog slot. The render outlives ctx cancellation
// but keeps its values; Close or the next Open supersede it.
func (c *Controller) Open(ctx context.Context, target core.Target) error {
	if err := target.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.reg.Advance()
	c.selection = target

	if !c.open {
		c.open = true
		if err := c.dialog.SetScrollLocked(true); err != nil {
			c.logger.Warn("Locking background scroll failed", "error", err)
		}
		c.removeKey = c.dialog.OnKey(c.HandleKey)
		c.removeDismiss = c.dialog.OnDismiss(c.Close)
	}

	key := target.Key()
	c.reg.Retain([]core.TargetKey{key})
	c.reg.Enter(key, gen)

	slot, err := c.container()
	if err != nil {
		c.logger.Warn("Preparing modal slot failed", "error", err)
	}

	if err := c.reg.BeginRender(key, gen); err != nil {
		return err
	}

	c.renders.Add(1)
	go func() {
		defer c.renders.Done()
		err := c.renderer.Render(context.WithoutCancel(ctx), target, slot, gen)
		if err != nil && !errors.Is(err, core.ErrStaleGeneration) {
			c.logger.Debug("Modal render degraded", "target", key.String(), "error", err)
		}
	}()

	if err := c.dialog.Focus(c.dialog.CloseControl()); err != nil {
		c.logger.Debug("Focusing close control failed", "error", err)
	}

	return nil
}

// container clears the dialog slot and returns a fresh child for this
// open, so a late write of a replaced render lands in a detached node.
func (c *Controller) container() (core.Slot, error) {
	slot := c.dialog.Slot()
	if err := slot.Clear(); err != nil {
		return slot, err
	}
	child, err := slot.AppendChild(EmbedClass)
	if err != nil {
		return slot, err
	}
	return child, nil
}

// Close clears the selection, re-enables background scrolling and removes
// the dialog listeners. An in-flight render becomes stale. Close is
// idempotent and independent of the render outcome.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return
	}

	c.open = false
	c.selection = core.Target{}
	c.reg.Advance()

	if err := c.dialog.SetScrollLocked(false); err != nil {
		c.logger.Warn("Unlocking background scroll failed", "error", err)
	}
	if c.removeKey != nil {
		c.removeKey()
		c.removeKey = nil
	}
	if c.removeDismiss != nil {
		c.removeDismiss()
		c.removeDismiss = nil
	}
}

// HandleKey applies the keyboard contract while open: Escape closes, Tab
// and Shift+Tab cycle focus through the dialog's focusable elements with
// wrap-around. It reports whether the event was consumed.
func (c *Controller) HandleKey(ev core.KeyEvent) bool {
	if !c.IsOpen() {
		return false
	}

	switch ev.Key {
	case core.KeyEscape:
		c.Close()
		return true
	case core.KeyTab:
		return c.cycle(ev.Shift)
	default:
		return false
	}
}

func (c *Controller) cycle(backward bool) bool {
	ids := c.dialog.Focusables()
	if len(ids) == 0 {
		return false
	}

	// focus outside the dialog counts as -1
	idx := slices.Index(ids, c.dialog.ActiveElement())

	var next int
	switch {
	case backward && idx <= 0:
		next = len(ids) - 1
	case backward:
		next = idx - 1
	case idx < 0 || idx == len(ids)-1:
		next = 0
	default:
		next = idx + 1
	}

	if err := c.dialog.Focus(ids[next]); err != nil {
		c.logger.Debug("Moving focus failed", "element", ids[next], "error", err)
	}
	return true
}

// Selection returns the open target.
func (c *Controller) Selection() (core.Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection, c.open
}

// IsOpen reports whether a target is selected.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Wait blocks until started modal renders returned.
func (c *Controller) Wait() {
	c.renders.Wait()
}
