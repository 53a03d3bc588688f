// Package orchestrator reacts to changes of the visible item list by minting
// a new render generation and issuing a fresh rendering pass over exactly the
// targets that are visible now.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
	"github.com/hupe1980/embedmesh/view"
)

// Renderer resolves one target. *renderer.Renderer implements it.
type Renderer interface {
	Render(ctx context.Context, target core.Target, slot core.Slot, gen core.Generation) error
}

// Config defines tuning parameters of the orchestrator.
//
//   - MaxConcurrentRenders: renders allowed in flight at once, 0 = unlimited.
//     Issuance order is kept either way; a capped pass only queues.
//   - TopN: length of the top-by-engagement lists.
//   - ParentContext: render each item's parent above it (dual-context).
//   - RepollDelays: settle delays after which the pass is re-issued under the
//     same generation, picking up slots that were not mounted yet.
type Config struct {
	MaxConcurrentRenders int
	TopN                 int
	ParentContext        bool
	RepollDelays         []time.Duration
}

// DefaultConfig mirrors the settle delays of the screens that embed items:
// one quick pass after the first paint and a late one for slow layouts.
var DefaultConfig = Config{
	MaxConcurrentRenders: 0,
	TopN:                 view.DefaultTopN,
	ParentContext:        false,
	RepollDelays:         []time.Duration{300 * time.Millisecond, time.Second},
}

// Options configures an Orchestrator.
type Options struct {
	// Config defaults to DefaultConfig.
	Config Config
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Pass describes one issued rendering pass.
type Pass struct {
	// ID correlates log lines of one pass.
	ID         string
	Generation core.Generation
	Selection  view.Selection
}

// Orchestrator owns the generation counter of one list screen.
//
// Concurrency model:
//   - Update and SetItems may be called from any goroutine; each call
//     supersedes every earlier pass
//   - one goroutine per issued target, completion order is unspecified
//   - in-flight work of superseded passes is never torn down, its stale
//     generation alone keeps it from mutating registry state or slots
type Orchestrator struct {
	reg      core.Registry
	renderer Renderer
	slots    core.SlotProvider
	config   Config
	logger   logging.Logger
	sem      *semaphore.Weighted

	// lifetime of all renders, cancelled by Close
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	items    []core.Item
	state    view.State
	current  Pass
	timers   []*time.Timer
	closed   bool
	inflight int
	idle     chan struct{}
}

// New creates an orchestrator issuing renders to r for slots resolved by slots.
func New(reg core.Registry, r Renderer, slots core.SlotProvider, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var sem *semaphore.Weighted
	if opts.Config.MaxConcurrentRenders > 0 {
		sem = semaphore.NewWeighted(int64(opts.Config.MaxConcurrentRenders))
	}

	base, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		reg:      reg,
		renderer: r,
		slots:    slots,
		config:   opts.Config,
		logger:   logging.OrNoOp(opts.Logger),
		sem:      sem,
		base:     base,
		cancel:   cancel,
		state:    view.State{Tab: view.TabReplies, Filter: view.FilterAll, Page: 1, PageSize: view.DefaultPageSize},
	}
}

// SetItems replaces the upstream item list and issues a pass for the
// current view state.
func (o *Orchestrator) SetItems(ctx context.Context, items []core.Item) Pass {
	o.mu.Lock()
	o.items = append([]core.Item(nil), items...)
	state := o.state
	o.mu.Unlock()

	return o.issuePass(ctx, state, "items")
}

// Update switches to state (page, page size, filter or tab change) and
// issues a pass for it.
//
// ctx bounds the synchronous issuance only: targets not issued when ctx is
// done are picked up by the re-poll passes. Issued renders belong to the
// orchestrator and end with Close.
func (o *Orchestrator) Update(ctx context.Context, state view.State) Pass {
	return o.issuePass(ctx, state, "state")
}

// Refresh re-issues the current view state under a new generation.
func (o *Orchestrator) Refresh(ctx context.Context) Pass {
	return o.issuePass(ctx, o.State(), "refresh")
}

// State returns the view state of the latest pass.
func (o *Orchestrator) State() view.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns the latest pass.
func (o *Orchestrator) Current() Pass {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator) issuePass(ctx context.Context, state view.State, reason string) Pass {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Pass{}
	}

	if state.TopN <= 0 {
		state.TopN = o.config.TopN
	}
	state.ParentContext = state.ParentContext || o.config.ParentContext

	// superseded re-polls would be no-ops anyway
	o.stopTimersLocked()

	gen := o.reg.Advance()
	sel := view.Select(o.items, state)
	pass := Pass{ID: uuid.NewString(), Generation: gen, Selection: sel}

	// targets that left the window are forgotten; their in-flight renders
	// fail Commit as stale
	o.reg.Retain(sel.Keys())

	o.state = state
	o.current = pass
	o.mu.Unlock()

	start := time.Now()
	issued, pending := o.issue(ctx, pass)

	logger := o.passLogger(pass)
	if l, ok := logger.(*logging.EmbedMeshLogger); ok {
		l.LogPass(reason, len(sel.Targets), time.Since(start))
	}
	logger.Debug("Pass issued", "issued", issued, "pending", pending, "page", sel.Window.Page, "filter", string(state.Filter))

	o.scheduleRepolls(pass)

	return pass
}

// issue walks the selection in list order. Targets whose slot is not
// mounted yet are counted as pending.
func (o *Orchestrator) issue(ctx context.Context, pass Pass) (issued, pending int) {
	for _, target := range pass.Selection.Targets {
		if ctx.Err() != nil {
			pending++
			continue
		}

		key := target.Key()
		slot, ok := o.slots.Slot(key)
		if !ok {
			pending++
			continue
		}

		if o.reg.Enter(key, pass.Generation) {
			if err := slot.Clear(); err != nil {
				o.logger.Warn("Clearing slot failed", "target", key.String(), "error", err)
			}
		}

		if err := o.reg.BeginRender(key, pass.Generation); err != nil {
			if errors.Is(err, core.ErrStaleGeneration) {
				// superseded while issuing
				return issued, pending
			}
			// already started in this generation
			continue
		}

		o.track()
		go o.render(target, slot, pass)
		issued++
	}

	return issued, pending
}

func (o *Orchestrator) render(target core.Target, slot core.Slot, pass Pass) {
	defer o.untrack()

	if o.sem != nil {
		if err := o.sem.Acquire(o.base, 1); err != nil {
			return
		}
		defer o.sem.Release(1)
	}

	err := o.renderer.Render(o.base, target, slot, pass.Generation)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrStaleGeneration):
		o.logger.Debug("Render superseded", "target", target.Key().String(), "pass", pass.ID)
	case errors.Is(err, core.ErrAllAttemptsExhausted):
		o.logger.Info("Embed degraded to placeholder", "target", target.Key().String(), "pass", pass.ID, "error", err)
	default:
		o.logger.Warn("Render failed", "target", target.Key().String(), "pass", pass.ID, "error", err)
	}
}

func (o *Orchestrator) scheduleRepolls(pass Pass) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.current.Generation != pass.Generation {
		return
	}

	for _, d := range o.config.RepollDelays {
		o.trackLocked()
		o.timers = append(o.timers, time.AfterFunc(d, func() {
			defer o.untrack()
			o.repoll(pass)
		}))
	}
}

func (o *Orchestrator) repoll(pass Pass) {
	if o.reg.Active() != pass.Generation {
		return
	}
	issued, pending := o.issue(o.base, pass)
	if issued > 0 || pending > 0 {
		o.logger.Debug("Re-poll issued", "pass", pass.ID, "generation", uint64(pass.Generation), "issued", issued, "pending", pending)
	}
}

// stopTimersLocked cancels scheduled re-polls. Timers that already fired
// release their own tracking.
func (o *Orchestrator) stopTimersLocked() {
	for _, t := range o.timers {
		if t.Stop() {
			o.untrackLocked()
		}
	}
	o.timers = nil
}

func (o *Orchestrator) passLogger(pass Pass) logging.Logger {
	if l, ok := o.logger.(*logging.EmbedMeshLogger); ok {
		return l.WithGeneration(pass.ID, uint64(pass.Generation))
	}
	return o.logger
}

// Wait blocks until no render or re-poll is in flight, or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	if o.inflight == 0 {
		o.mu.Unlock()
		return nil
	}
	idle := o.idle
	o.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close invalidates every in-flight render by advancing the generation,
// stops pending re-polls and cancels queued renders. Subsequent passes are
// no-ops. Close is idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.stopTimersLocked()
	o.mu.Unlock()

	o.reg.Advance()
	o.cancel()
}

func (o *Orchestrator) track() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trackLocked()
}

func (o *Orchestrator) trackLocked() {
	if o.inflight == 0 {
		o.idle = make(chan struct{})
	}
	o.inflight++
}

func (o *Orchestrator) untrack() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.untrackLocked()
}

func (o *Orchestrator) untrackLocked() {
	o.inflight--
	if o.inflight == 0 {
		close(o.idle)
	}
}
