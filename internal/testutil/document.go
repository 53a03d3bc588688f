package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/embedmesh/core"
)

// Document is a controllable core.Document. The capability appears only
// after Provide is called.
type Document struct {
	mu        sync.Mutex
	scripts   map[string]core.Script
	injects   int
	widget    core.Widget
	ready     chan struct{}
	injectErr error
	onInject  func()
}

var _ core.Document = (*Document)(nil)

// NewDocument creates an empty document without the capability.
func NewDocument() *Document {
	return &Document{scripts: map[string]core.Script{}, ready: make(chan struct{})}
}

// NewReadyDocument creates a document that already exposes w.
func NewReadyDocument(w core.Widget) *Document {
	d := NewDocument()
	d.scripts[core.DefaultScript.ID] = core.DefaultScript
	d.Provide(w)
	return d
}

// HasScript reports whether a script with id was injected.
func (d *Document) HasScript(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.scripts[id]
	return ok
}

// InjectScript records the script and runs the inject hook.
func (d *Document) InjectScript(s core.Script) error {
	d.mu.Lock()
	if d.injectErr != nil {
		d.mu.Unlock()
		return d.injectErr
	}
	d.scripts[s.ID] = s
	d.injects++
	hook := d.onInject
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// Capability returns the widget once provided.
func (d *Document) Capability() (core.Widget, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.widget, d.widget != nil
}

// AwaitCapability waits for Provide or ctx.
func (d *Document) AwaitCapability(ctx context.Context) (core.Widget, error) {
	d.mu.Lock()
	ready := d.ready
	d.mu.Unlock()
	select {
	case <-ready:
		w, _ := d.Capability()
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Provide exposes w and wakes all waiters. Only the first call has effect.
func (d *Document) Provide(w core.Widget) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.widget != nil {
		return
	}
	d.widget = w
	close(d.ready)
}

// OnInject registers a hook run after every injection.
func (d *Document) OnInject(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onInject = fn
}

// FailInjection makes InjectScript return an error.
func (d *Document) FailInjection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injectErr = errors.New("script blocked")
}

// Injections returns the number of successful injections.
func (d *Document) Injections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.injects
}

// Scheduler runs deferred work immediately.
type Scheduler struct{}

// AfterPaint runs fn synchronously.
func (Scheduler) AfterPaint(fn func()) { fn() }
