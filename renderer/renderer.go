package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
)

const (
	// DefaultAttemptTimeout bounds a single embed-creation attempt.
	DefaultAttemptTimeout = 2 * time.Second
	// DefaultMaxAttempts is the longest primary path: none, all, default.
	DefaultMaxAttempts = 3
	// DefaultSettleDelay defers the alignment pass until layout settled.
	DefaultSettleDelay = 300 * time.Millisecond

	// ContextClass marks the child container of the parent item.
	ContextClass = "embed-context"
	// PrimaryClass marks the child container of the primary item.
	PrimaryClass = "embed-primary"
	// AttemptClass marks the container a single attempt renders into. A
	// widget call that outlives its timeout writes into a detached node.
	AttemptClass = "embed-attempt"
)

// Options configures a Renderer.
type Options struct {
	// AttemptTimeout bounds every embed-creation attempt.
	AttemptTimeout time.Duration
	// MaxAttempts caps the attempts of one primary chain. 0 = unlimited.
	MaxAttempts int
	// Display holds the base options; the conversation mode is set per attempt.
	Display core.DisplayOptions
	// StatusURLPrefix builds the placeholder link for an item id.
	StatusURLPrefix string
	// Scheduler runs the deferred alignment pass.
	Scheduler core.Scheduler
	// Adjuster makes the post-render layout decision.
	Adjuster Adjuster
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Renderer resolves targets against one registry. It is safe for
// concurrent use; each Render call owns its target's slot exclusively.
type Renderer struct {
	gate           core.Gate
	reg            core.Registry
	attemptTimeout time.Duration
	maxAttempts    int
	display        core.DisplayOptions
	statusPrefix   string
	scheduler      core.Scheduler
	adjuster       Adjuster
	logger         logging.Logger

	background sync.WaitGroup
}

// New creates a renderer reading readiness from gate and recording outcomes in reg.
func New(gate core.Gate, reg core.Registry, optFns ...func(o *Options)) *Renderer {
	opts := Options{
		AttemptTimeout:  DefaultAttemptTimeout,
		MaxAttempts:     DefaultMaxAttempts,
		Display:         core.DefaultDisplayOptions,
		StatusURLPrefix: DefaultStatusURLPrefix,
		Scheduler:       DelayScheduler{Delay: DefaultSettleDelay},
		Adjuster:        Adjuster{Margin: DefaultMargin},
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = DelayScheduler{Delay: DefaultSettleDelay}
	}
	if opts.StatusURLPrefix == "" {
		opts.StatusURLPrefix = DefaultStatusURLPrefix
	}

	return &Renderer{
		gate:           gate,
		reg:            reg,
		attemptTimeout: opts.AttemptTimeout,
		maxAttempts:    opts.MaxAttempts,
		display:        opts.Display,
		statusPrefix:   opts.StatusURLPrefix,
		scheduler:      opts.Scheduler,
		adjuster:       opts.Adjuster,
		logger:         logging.OrNoOp(opts.Logger),
	}
}

// Registry returns the registry outcomes are committed to.
func (r *Renderer) Registry() core.Registry { return r.reg }

// WorstCase returns the longest time one Render can take for a ready gate:
// every attempt of the longest path timing out.
func (r *Renderer) WorstCase() time.Duration {
	n := r.maxAttempts
	if n <= 0 {
		n = DefaultMaxAttempts
	}
	return time.Duration(n) * r.attemptTimeout
}

// Render runs the fallback chain for target into slot under gen. The caller
// must have started the render in the registry (BeginRender).
//
// Returns nil when a rich embed was rendered, an error wrapping
// core.ErrAllAttemptsExhausted when the static placeholder was written, and
// core.ErrStaleGeneration when the pass was superseded (no slot writes
// happen after that point).
func (r *Renderer) Render(ctx context.Context, target core.Target, slot core.Slot, gen core.Generation) error {
	if err := target.Validate(); err != nil {
		return err
	}

	c := &chain{
		r:       r,
		key:     target.Key(),
		gen:     gen,
		limiter: core.NewAttemptLimiter(r.maxAttempts),
	}

	if !c.current() {
		return c.stale("before readiness")
	}

	readiness := r.gate.EnsureReady(ctx)
	if !c.current() {
		return c.stale("after readiness")
	}

	container := slot
	var lastErr error
	ok := false

	if readiness.IsReady() {
		c.widget = readiness.Widget

		if target.HasContext() {
			primary, err := c.splitSlot(ctx, slot, target.ContextID)
			if err != nil {
				if errors.Is(err, core.ErrStaleGeneration) {
					return c.stale("splitting slot")
				}
				lastErr = err
			} else {
				container = primary
				lastErr = c.attempt(ctx, target.PrimaryID, primary, core.ConversationNone)
				ok = lastErr == nil
			}
		}

		for _, conv := range []core.Conversation{core.ConversationAll, core.ConversationDefault} {
			if ok || errors.Is(lastErr, core.ErrStaleGeneration) || errors.Is(lastErr, core.ErrAttemptBudgetExceeded) {
				break
			}
			lastErr = c.attempt(ctx, target.PrimaryID, container, conv)
			ok = lastErr == nil
		}
	} else {
		lastErr = readiness.Err
		if lastErr == nil {
			lastErr = core.ErrScriptUnavailable
		}
	}

	if errors.Is(lastErr, core.ErrStaleGeneration) {
		return c.stale("after attempts")
	}

	state := core.StateRendered
	if !ok {
		state = core.StateFailed
		if !c.current() {
			return c.stale("before placeholder")
		}
		if err := slot.SetHTML(Placeholder(r.statusPrefix, target.PrimaryID)); err != nil {
			r.logger.Warn("Writing placeholder failed", "slot", slot.ID(), "error", err)
		}
		if c.widget != nil {
			// best effort: lets the library hydrate the blockquote
			if err := c.widget.RefreshAll(slot); err != nil {
				r.logger.Debug("Refresh after placeholder failed", "slot", slot.ID(), "error", err)
			}
		}
	}

	if err := r.reg.Commit(c.key, gen, state); err != nil {
		if errors.Is(err, core.ErrStaleGeneration) {
			return c.stale("commit")
		}
		return fmt.Errorf("commit %s: %w", c.key, err)
	}

	r.scheduler.AfterPaint(func() {
		if !r.reg.IsCurrent(c.key, gen) {
			return
		}
		if err := r.adjuster.Adjust(slot); err != nil {
			r.logger.Debug("Alignment pass failed", "slot", slot.ID(), "error", err)
		}
	})

	if !ok {
		return fmt.Errorf("%w: %s: %w", core.ErrAllAttemptsExhausted, target.PrimaryID, lastErr)
	}
	return nil
}

// Wait blocks until fire-and-forget parent context renders finished.
func (r *Renderer) Wait() {
	r.background.Wait()
}

// chain holds the per-Render state of one fallback chain.
type chain struct {
	r       *Renderer
	key     core.TargetKey
	gen     core.Generation
	widget  core.Widget
	limiter *core.AttemptLimiter
}

func (c *chain) current() bool {
	return c.r.reg.IsCurrent(c.key, c.gen)
}

func (c *chain) stale(stage string) error {
	c.r.logger.Debug("Discarding stale render", "target", c.key.String(), "generation", uint64(c.gen), "stage", stage)
	return core.ErrStaleGeneration
}

// splitSlot lays out the parent above the primary and starts the parent
// render in the background. Its outcome never affects the primary.
func (c *chain) splitSlot(ctx context.Context, slot core.Slot, contextID string) (core.Slot, error) {
	if !c.current() {
		return nil, core.ErrStaleGeneration
	}
	if err := slot.Clear(); err != nil {
		return nil, err
	}
	parent, err := slot.AppendChild(ContextClass)
	if err != nil {
		return nil, err
	}
	primary, err := slot.AppendChild(PrimaryClass)
	if err != nil {
		return nil, err
	}

	c.r.background.Add(1)
	go func() {
		defer c.r.background.Done()
		if err := c.create(ctx, contextID, parent, core.ConversationNone); err != nil {
			c.r.logger.Debug("Parent context render failed", "target", c.key.String(), "error", err)
		}
	}()

	return primary, nil
}

// attempt is one limited step of the primary chain.
func (c *chain) attempt(ctx context.Context, itemID string, container core.Slot, conv core.Conversation) error {
	if err := c.limiter.Increment(); err != nil {
		return err
	}
	err := c.create(ctx, itemID, container, conv)
	if err == nil && !c.current() {
		return core.ErrStaleGeneration
	}
	return err
}

// create clears container, appends a fresh attempt child and races one
// CreateEmbed call into it against the attempt timeout.
func (c *chain) create(ctx context.Context, itemID string, container core.Slot, conv core.Conversation) error {
	if !c.current() {
		return core.ErrStaleGeneration
	}
	if err := container.Clear(); err != nil {
		return fmt.Errorf("%w: clear: %w", core.ErrEmbedCreationFailed, err)
	}
	attempt, err := container.AppendChild(AttemptClass)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrEmbedCreationFailed, err)
	}

	start := time.Now()
	err = c.r.race(ctx, c.widget, itemID, attempt, c.r.display.WithConversation(conv))
	if l, ok := c.r.logger.(*logging.EmbedMeshLogger); ok {
		l.LogAttempt(itemID, string(conv), time.Since(start), err)
	}
	return err
}

// race runs CreateEmbed in its own goroutine so a hung call cannot stall the
// chain. The goroutine ends when the widget honours the cancelled context.
func (r *Renderer) race(ctx context.Context, w core.Widget, itemID string, container core.Slot, opts core.DisplayOptions) error {
	actx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("widget panic: %v", p)
			}
		}()
		done <- w.CreateEmbed(actx, itemID, container, opts)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrEmbedCreationFailed, err)
		}
		return nil
	case <-actx.Done():
		if ctx.Err() == nil {
			return fmt.Errorf("%w after %s", core.ErrAttemptTimeout, r.attemptTimeout)
		}
		return fmt.Errorf("%w: %w", core.ErrEmbedCreationFailed, ctx.Err())
	}
}
