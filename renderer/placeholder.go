package renderer

import (
	"fmt"
	"html"
	"net/url"
)

// DefaultStatusURLPrefix resolves an item id without knowing its author.
const DefaultStatusURLPrefix = "https://twitter.com/i/web/status/"

// PlaceholderClass is the class the widget library hydrates on refresh.
const PlaceholderClass = "twitter-tweet"

// StatusURL returns the canonical link for an item id.
func StatusURL(prefix, itemID string) string {
	if prefix == "" {
		prefix = DefaultStatusURLPrefix
	}
	return prefix + url.PathEscape(itemID)
}

// Placeholder returns the static link-style fallback for an item.
func Placeholder(prefix, itemID string) string {
	link := html.EscapeString(StatusURL(prefix, itemID))
	return fmt.Sprintf(`<blockquote class="%s" data-embed-fallback="true"><a href="%s">%s</a></blockquote>`, PlaceholderClass, link, link)
}
