package testutil

import (
	"time"

	"github.com/hupe1980/embedmesh/core"
)

// ItemBuilder helps construct upstream items with fluent chaining for tests.
// Example:
//
//	it := NewItemBuilder("100").Parent("99").Views(10).Build()
type ItemBuilder struct {
	item core.Item
}

// Epoch is the reference creation time used by builders.
var Epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// NewItemBuilder creates a builder for an item with the given id created at Epoch.
func NewItemBuilder(id string) *ItemBuilder {
	return &ItemBuilder{item: core.Item{ID: id, CreatedAt: Epoch}}
}

// Parent sets the parent (context) item id (chainable).
func (b *ItemBuilder) Parent(id string) *ItemBuilder { b.item.ParentID = id; return b }

// CreatedAt overrides the creation time (chainable).
func (b *ItemBuilder) CreatedAt(ts time.Time) *ItemBuilder { b.item.CreatedAt = ts; return b }

// Replies sets the reply counter (chainable).
func (b *ItemBuilder) Replies(n int) *ItemBuilder { b.engagement().Replies = n; return b }

// Views sets the view counter (chainable).
func (b *ItemBuilder) Views(n int) *ItemBuilder { b.engagement().Views = n; return b }

// Build returns the item.
func (b *ItemBuilder) Build() core.Item { return b.item }

func (b *ItemBuilder) engagement() *core.Engagement {
	if b.item.Engagement == nil {
		b.item.Engagement = &core.Engagement{}
	}
	return b.item.Engagement
}

// Items builds plain items for the given ids, each one minute older than the
// previous so the list is already newest first.
func Items(ids ...string) []core.Item {
	out := make([]core.Item, 0, len(ids))
	for i, id := range ids {
		out = append(out, NewItemBuilder(id).CreatedAt(Epoch.Add(-time.Duration(i)*time.Minute)).Build())
	}
	return out
}
