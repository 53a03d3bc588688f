package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Launch starts a local browser and connects to it. The browser lives
// until Close is called on it or ctx is done.
func Launch(ctx context.Context, headless bool) (*rod.Browser, error) {
	u, err := launcher.New().Headless(headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	return b, nil
}

// Open creates a page for url and waits for it to load.
func Open(b *rod.Browser, url string) (*rod.Page, error) {
	page, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	return page, nil
}
