package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
)

// DefaultPollInterval is how often the page checks for the capability.
const DefaultPollInterval = 50 * time.Millisecond

const capabilityJS = `() => !!(window.twttr && window.twttr.widgets && typeof window.twttr.widgets.createTweet === 'function')`

// Options configures a Document.
type Options struct {
	// PollInterval is used by the in-page capability wait.
	PollInterval time.Duration
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Document implements core.Document for a rod page.
type Document struct {
	page   *rod.Page
	poll   time.Duration
	logger logging.Logger
	widget *Widget
}

var _ core.Document = (*Document)(nil)

// NewDocument wraps page.
func NewDocument(page *rod.Page, optFns ...func(o *Options)) *Document {
	opts := Options{
		PollInterval: DefaultPollInterval,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Document{
		page:   page,
		poll:   opts.PollInterval,
		logger: logging.OrNoOp(opts.Logger),
		widget: NewWidget(page),
	}
}

// HasScript reports whether an element with id exists in the page.
func (d *Document) HasScript(id string) bool {
	v, err := evalShort(d.page, `(id) => !!document.getElementById(id)`, id)
	if err != nil {
		d.logger.Debug("Script presence check failed", "script_id", id, "error", err)
		return false
	}
	return v.Bool()
}

// InjectScript appends an async script element to the body.
func (d *Document) InjectScript(script core.Script) error {
	_, err := evalShort(d.page, `(id, src) => {
		const s = document.createElement('script');
		s.id = id;
		s.src = src;
		s.async = true;
		s.charset = 'utf-8';
		(document.body || document.documentElement).appendChild(s);
		return true;
	}`, script.ID, script.URL)
	if err != nil {
		return fmt.Errorf("inject %s: %w", script.ID, err)
	}
	return nil
}

// Capability returns the widget when the page exposes createTweet.
func (d *Document) Capability() (core.Widget, bool) {
	v, err := evalShort(d.page, capabilityJS)
	if err != nil || !v.Bool() {
		return nil, false
	}
	return d.widget, true
}

// AwaitCapability polls inside the page until the capability appears.
// Cancelling ctx aborts the evaluation.
func (d *Document) AwaitCapability(ctx context.Context) (core.Widget, error) {
	_, err := eval(ctx, d.page, `(interval) => new Promise((resolve) => {
		const ready = `+capabilityJS+`;
		const check = () => ready() ? resolve(true) : setTimeout(check, interval);
		check();
	})`, d.poll.Milliseconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("await capability: %w", err)
	}
	return d.widget, nil
}
