// Package oembed implements the widget capability over an oEmbed HTTP
// endpoint. It renders static, sanitised markup and suits hosts that cannot
// run the widget script: server-side previews and the in-memory document.
package oembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/logging"
)

const (
	// DefaultEndpoint is the public oEmbed endpoint of the embed provider.
	DefaultEndpoint = "https://publish.twitter.com/oembed"

	// DefaultTimeout bounds one HTTP round trip.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize caps the body read from the endpoint (1MB).
	MaxResponseSize = 1 << 20

	// UserAgent is sent with every request.
	UserAgent = "embedmesh/1.0"

	defaultStatusURLPrefix = "https://twitter.com/i/web/status/"
)

var (
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("oembed: unexpected status")
	// ErrInvalidResponse is returned when the body is not an oEmbed object.
	ErrInvalidResponse = errors.New("oembed: invalid response")
	// ErrEmptyEmbed is returned when no markup survived sanitising.
	ErrEmptyEmbed = errors.New("oembed: empty embed markup")
)

// Options configures a Widget.
type Options struct {
	// Endpoint is the oEmbed URL. Defaults to DefaultEndpoint.
	Endpoint string
	// HTTPClient defaults to a client with DefaultTimeout.
	HTTPClient *http.Client
	// StatusURLPrefix builds the item URL passed to the endpoint.
	StatusURLPrefix string
	// Policy sanitises returned markup. Defaults to NewPolicy().
	Policy *bluemonday.Policy
	// DisableCache turns off the per-request markup cache.
	DisableCache bool
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Embed is the parsed oEmbed response.
type Embed struct {
	HTML         string
	URL          string
	AuthorName   string
	AuthorURL    string
	ProviderName string
	Width        int
}

// Widget implements core.Widget by writing sanitised oEmbed markup.
type Widget struct {
	endpoint     string
	client       *http.Client
	statusPrefix string
	policy       *bluemonday.Policy
	logger       logging.Logger

	cacheOn bool
	mu      sync.RWMutex
	cache   map[string]Embed
}

var _ core.Widget = (*Widget)(nil)

// New creates an oEmbed widget.
func New(optFns ...func(o *Options)) *Widget {
	opts := Options{
		Endpoint:        DefaultEndpoint,
		StatusURLPrefix: defaultStatusURLPrefix,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.Policy == nil {
		opts.Policy = NewPolicy()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.StatusURLPrefix == "" {
		opts.StatusURLPrefix = defaultStatusURLPrefix
	}

	return &Widget{
		endpoint:     opts.Endpoint,
		client:       opts.HTTPClient,
		statusPrefix: opts.StatusURLPrefix,
		policy:       opts.Policy,
		logger:       logging.OrNoOp(opts.Logger),
		cacheOn:      !opts.DisableCache,
		cache:        make(map[string]Embed),
	}
}

// Loader returns a script loader for hosts that expose the capability on
// injection, such as the in-memory document.
func Loader(optFns ...func(o *Options)) func(core.Script) (core.Widget, error) {
	return func(core.Script) (core.Widget, error) {
		return New(optFns...), nil
	}
}

// NewPolicy returns the sanitising policy for embed markup: user generated
// content plus the classes and data attributes the provider's markup uses.
// Scripts and iframes never pass.
func NewPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("blockquote", "p", "a", "span", "div")
	policy.AllowAttrs("lang", "dir").OnElements("p")
	policy.AllowDataAttributes()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

// CreateEmbed fetches the markup for itemID and writes it into container.
// Nothing is written once ctx is done.
func (w *Widget) CreateEmbed(ctx context.Context, itemID string, container core.Slot, opts core.DisplayOptions) error {
	embed, err := w.Fetch(ctx, itemID, opts)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return container.SetHTML(embed.HTML)
}

// RefreshAll is a no-op: static markup needs no hydration.
func (w *Widget) RefreshAll(core.Slot) error { return nil }

// Fetch requests and sanitises the embed for itemID.
func (w *Widget) Fetch(ctx context.Context, itemID string, opts core.DisplayOptions) (Embed, error) {
	reqURL, err := w.RequestURL(itemID, opts)
	if err != nil {
		return Embed{}, err
	}

	if w.cacheOn {
		w.mu.RLock()
		e, ok := w.cache[reqURL]
		w.mu.RUnlock()
		if ok {
			return e, nil
		}
	}

	start := time.Now()
	body, err := w.get(ctx, reqURL)
	if err != nil {
		return Embed{}, err
	}

	if !gjson.ValidBytes(body) {
		return Embed{}, fmt.Errorf("%w: body is not JSON", ErrInvalidResponse)
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return Embed{}, fmt.Errorf("%w: body is not an object", ErrInvalidResponse)
	}

	e := Embed{
		HTML:         strings.TrimSpace(w.policy.Sanitize(res.Get("html").String())),
		URL:          res.Get("url").String(),
		AuthorName:   res.Get("author_name").String(),
		AuthorURL:    res.Get("author_url").String(),
		ProviderName: res.Get("provider_name").String(),
		Width:        int(res.Get("width").Int()),
	}
	if e.HTML == "" {
		return Embed{}, fmt.Errorf("%w: item %s", ErrEmptyEmbed, itemID)
	}

	w.logger.Debug("oEmbed fetched", "item_id", itemID, "duration", time.Since(start), "bytes", len(body))

	if w.cacheOn {
		w.mu.Lock()
		w.cache[reqURL] = e
		w.mu.Unlock()
	}

	return e, nil
}

// RequestURL builds the endpoint URL for itemID and the display options.
func (w *Widget) RequestURL(itemID string, opts core.DisplayOptions) (string, error) {
	u, err := url.Parse(w.endpoint)
	if err != nil {
		return "", fmt.Errorf("oembed: endpoint %q: %w", w.endpoint, err)
	}

	q := u.Query()
	q.Set("url", w.statusPrefix+url.PathEscape(itemID))
	q.Set("omit_script", "1")
	q.Set("dnt", strconv.FormatBool(opts.DoNotTrack))
	if opts.Align != "" {
		q.Set("align", opts.Align)
	}
	if opts.Theme != "" {
		q.Set("theme", opts.Theme)
	}
	switch opts.Conversation {
	case core.ConversationNone:
		q.Set("hide_thread", "true")
	case core.ConversationAll:
		q.Set("hide_thread", "false")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (w *Widget) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes", resp.ContentLength, MaxResponseSize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response body exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return body, nil
}
