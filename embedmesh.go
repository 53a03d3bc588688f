// Package embedmesh provides a high-level façade over the readiness gate,
// the fallback renderer, the list orchestrator and the modal controller.
// Most applications interact with this package by:
//  1. Creating an EmbedMesh via New() for a host document and its slots
//  2. Feeding the item list (SetItems) and view changes (Update)
//  3. Optionally opening single items in the dialog (Open / CloseModal)
//
// The list and the modal keep separate registries and generations but share
// one gate, so the widget script is loaded once per process.
package embedmesh

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/embedmesh/config"
	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/gate"
	"github.com/hupe1980/embedmesh/logging"
	"github.com/hupe1980/embedmesh/modal"
	"github.com/hupe1980/embedmesh/orchestrator"
	"github.com/hupe1980/embedmesh/registry"
	"github.com/hupe1980/embedmesh/renderer"
	"github.com/hupe1980/embedmesh/view"
)

// ErrNoDialog is returned by Open when no dialog was configured.
var ErrNoDialog = errors.New("embedmesh: no dialog configured")

// Options configures the EmbedMesh instance.
type Options struct {
	// Script identifies the widget script loaded by the gate.
	Script core.Script
	// GateTimeout bounds the readiness wait.
	GateTimeout time.Duration

	// Renderer settings shared by the list and the modal.
	Display         core.DisplayOptions
	AttemptTimeout  time.Duration
	MaxAttempts     int
	SettleDelay     time.Duration
	StatusURLPrefix string

	// Scheduler overrides the settle-delay scheduler of the alignment pass.
	Scheduler core.Scheduler

	// Orchestrator configuration (concurrency, top-N, dual-context, re-polls)
	OrchestratorConfig orchestrator.Config

	// Dialog enables the modal view when set.
	Dialog core.Dialog

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// WithConfig applies a loaded configuration.
func WithConfig(cfg *config.Config) func(o *Options) {
	return func(o *Options) {
		o.Script = cfg.Script
		o.GateTimeout = cfg.Gate.Timeout
		o.Display = cfg.Display
		o.AttemptTimeout = cfg.Renderer.AttemptTimeout
		o.MaxAttempts = cfg.Renderer.MaxAttempts
		o.SettleDelay = cfg.Renderer.SettleDelay
		o.StatusURLPrefix = cfg.Renderer.StatusURLPrefix
		o.OrchestratorConfig = cfg.OrchestratorConfig()
	}
}

// EmbedMesh is the high-level façade aggregating gate, renderers,
// orchestrator and modal.
type EmbedMesh struct {
	opts         Options
	gate         *gate.Gate
	listRenderer *renderer.Renderer
	orchestrator *orchestrator.Orchestrator
	modal        *modal.Controller
	modalRender  *renderer.Renderer
}

// New creates an EmbedMesh for doc, rendering list targets into the slots
// resolved by slots.
func New(doc core.Document, slots core.SlotProvider, optFns ...func(o *Options)) *EmbedMesh {
	opts := Options{
		Script:             core.DefaultScript,
		GateTimeout:        gate.DefaultTimeout,
		Display:            core.DefaultDisplayOptions,
		AttemptTimeout:     renderer.DefaultAttemptTimeout,
		MaxAttempts:        renderer.DefaultMaxAttempts,
		SettleDelay:        renderer.DefaultSettleDelay,
		StatusURLPrefix:    renderer.DefaultStatusURLPrefix,
		OrchestratorConfig: orchestrator.DefaultConfig,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	g := gate.New(doc, func(o *gate.Options) {
		o.Script = opts.Script
		o.Timeout = opts.GateTimeout
		o.Logger = component(logger, "gate")
	})

	m := &EmbedMesh{opts: opts, gate: g}

	m.listRenderer = m.newRenderer(registry.NewInMemoryStore(), component(logger, "renderer"))
	m.orchestrator = orchestrator.New(m.listRenderer.Registry(), m.listRenderer, slots, func(o *orchestrator.Options) {
		o.Config = opts.OrchestratorConfig
		o.Logger = component(logger, "orchestrator")
	})

	if opts.Dialog != nil {
		m.modalRender = m.newRenderer(registry.NewInMemoryStore(), component(logger, "modal"))
		m.modal = modal.New(opts.Dialog, m.modalRender, m.modalRender.Registry(), func(o *modal.Options) {
			o.Logger = component(logger, "modal")
		})
	}

	return m
}

func (m *EmbedMesh) newRenderer(reg core.Registry, logger logging.Logger) *renderer.Renderer {
	return renderer.New(m.gate, reg, func(o *renderer.Options) {
		o.AttemptTimeout = m.opts.AttemptTimeout
		o.MaxAttempts = m.opts.MaxAttempts
		o.Display = m.opts.Display
		o.StatusURLPrefix = m.opts.StatusURLPrefix
		o.Scheduler = m.opts.Scheduler
		if o.Scheduler == nil {
			o.Scheduler = renderer.DelayScheduler{Delay: m.opts.SettleDelay}
		}
		o.Logger = logger
	})
}

func component(l logging.Logger, name string) logging.Logger {
	if el, ok := l.(*logging.EmbedMeshLogger); ok {
		return el.WithComponent(name)
	}
	return l
}

// Gate returns the shared readiness gate.
func (m *EmbedMesh) Gate() *gate.Gate { return m.gate }

// Orchestrator returns the list orchestrator.
func (m *EmbedMesh) Orchestrator() *orchestrator.Orchestrator { return m.orchestrator }

// Modal returns the modal controller, or nil without a dialog.
func (m *EmbedMesh) Modal() *modal.Controller { return m.modal }

// SetItems replaces the item list and issues a render pass.
func (m *EmbedMesh) SetItems(ctx context.Context, items []core.Item) orchestrator.Pass {
	return m.orchestrator.SetItems(ctx, items)
}

// Update applies a view change and issues a render pass.
func (m *EmbedMesh) Update(ctx context.Context, state view.State) orchestrator.Pass {
	return m.orchestrator.Update(ctx, state)
}

// Open shows target in the dialog.
func (m *EmbedMesh) Open(ctx context.Context, target core.Target) error {
	if m.modal == nil {
		return ErrNoDialog
	}
	return m.modal.Open(ctx, target)
}

// CloseModal closes the dialog if open.
func (m *EmbedMesh) CloseModal() {
	if m.modal != nil {
		m.modal.Close()
	}
}

// Wait blocks until list passes went idle and every started render
// (including background parent renders) returned, or ctx is done.
func (m *EmbedMesh) Wait(ctx context.Context) error {
	if err := m.orchestrator.Wait(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.listRenderer.Wait()
		if m.modal != nil {
			m.modal.Wait()
			m.modalRender.Wait()
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close supersedes every in-flight render and closes the dialog.
func (m *EmbedMesh) Close() {
	m.CloseModal()
	m.orchestrator.Close()
}
