// Package gate guarantees the external widget script is loaded and its
// embed-creation capability is available, exactly once per process, exposing
// a single awaitable signal to every caller.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
)

// DefaultTimeout is the hard upper bound callers wait for the capability.
const DefaultTimeout = 1500 * time.Millisecond

// Options configures a Gate.
type Options struct {
	// Script identifies the widget script (element id and source URL).
	Script core.Script
	// Timeout bounds every wait for the capability.
	Timeout time.Duration
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Gate is the process-wide readiness barrier. The zero value is not usable;
// construct with New. Public methods are safe for concurrent use.
type Gate struct {
	doc     core.Document
	script  core.Script
	timeout time.Duration
	logger  logging.Logger

	mu     sync.Mutex
	phase  core.Phase
	widget core.Widget

	flight singleflight.Group
}

var _ core.Gate = (*Gate)(nil)

// New creates a gate for the given host document.
func New(doc core.Document, optFns ...func(o *Options)) *Gate {
	opts := Options{
		Script:  core.DefaultScript,
		Timeout: DefaultTimeout,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Gate{
		doc:     doc,
		script:  opts.Script,
		timeout: opts.Timeout,
		logger:  logging.OrNoOp(opts.Logger),
	}
}

// Phase returns the current lifecycle phase.
func (g *Gate) Phase() core.Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// EnsureReady resolves once the capability is available or the timeout
// elapsed. It never blocks longer than the gate timeout, and returns early
// with TimedOut when ctx is done.
func (g *Gate) EnsureReady(ctx context.Context) core.Readiness {
	if w, ok := g.ready(); ok {
		return core.Readiness{Status: core.Ready, Widget: w}
	}

	// All callers before Ready share one wait.
	ch := g.flight.DoChan("ready", func() (any, error) {
		return g.await(), nil
	})

	select {
	case res := <-ch:
		return res.Val.(core.Readiness)
	case <-ctx.Done():
		return core.Readiness{Status: core.TimedOut, Err: fmt.Errorf("%w: %w", core.ErrScriptUnavailable, ctx.Err())}
	}
}

// ready checks the fast path: an already exposed capability.
func (g *Gate) ready() (core.Widget, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == core.PhaseReady {
		return g.widget, true
	}
	if w, ok := g.doc.Capability(); ok {
		g.phase = core.PhaseReady
		g.widget = w
		return w, true
	}
	return nil, false
}

// await injects the script at most once and races the capability against
// the hard timeout.
func (g *Gate) await() core.Readiness {
	start := time.Now()

	if w, ok := g.ready(); ok {
		return core.Readiness{Status: core.Ready, Widget: w}
	}

	if err := g.request(); err != nil {
		g.logger.Warn("Widget script injection failed", "script_id", g.script.ID, "error", err)
		return core.Readiness{Status: core.TimedOut, Err: fmt.Errorf("%w: %w", core.ErrScriptUnavailable, err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	w, err := g.doc.AwaitCapability(ctx)
	if err != nil || w == nil {
		if err == nil {
			err = context.DeadlineExceeded
		}
		res := core.Readiness{Status: core.TimedOut, Err: fmt.Errorf("%w: %w", core.ErrScriptUnavailable, err)}
		g.resolved(res, start)
		return res
	}

	g.mu.Lock()
	g.phase = core.PhaseReady
	g.widget = w
	g.mu.Unlock()

	res := core.Readiness{Status: core.Ready, Widget: w}
	g.resolved(res, start)
	return res
}

// resolved logs the outcome of one shared wait.
func (g *Gate) resolved(res core.Readiness, start time.Time) {
	if l, ok := g.logger.(*logging.EmbedMeshLogger); ok {
		l.WithContext("script_id", g.script.ID).LogReadiness(res.Status.String(), time.Since(start), res.Err)
		return
	}
	if res.Err != nil {
		g.logger.Warn("Widget script not ready", "script_id", g.script.ID, "timeout", g.timeout, "error", res.Err)
		return
	}
	g.logger.Debug("Widget script ready", "script_id", g.script.ID, "duration", time.Since(start))
}

// request moves NotRequested to Requesting, injecting the script element
// only when no element with the script id exists yet.
func (g *Gate) request() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != core.PhaseNotRequested {
		return nil
	}
	g.phase = core.PhaseRequesting
	if g.doc.HasScript(g.script.ID) {
		return nil
	}
	return g.doc.InjectScript(g.script)
}
