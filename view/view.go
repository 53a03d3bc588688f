// Package view derives the visible set of embed targets from the upstream
// item list: the active filter, the tab and the pagination window.
//
// Every function here is pure. The same inputs always produce the same
// targets in the same order.
package view

import (
	"fmt"
	"sort"

	"github.com/hupe1980/embedmesh/core"
)

// Filter selects which items are listed.
type Filter string

const (
	// FilterAll lists every item newest first, paginated.
	FilterAll Filter = "all"
	// FilterTopReplies lists the top N items by reply count.
	FilterTopReplies Filter = "replies"
	// FilterTopViews lists the top N items by view count.
	FilterTopViews Filter = "views"
)

// ParseFilter maps a query value to a Filter. Unknown values yield FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterTopReplies, FilterTopViews:
		return Filter(s)
	default:
		return FilterAll
	}
}

// Tab is the screen section. Embeds exist only on TabReplies.
type Tab string

const (
	TabOverview Tab = "overview"
	TabReplies  Tab = "replies"
)

// DefaultTopN is the length of the top-by-engagement lists.
const DefaultTopN = 5

// DefaultPageSize is used whenever a page size is not one of PageSizes.
const DefaultPageSize = 10

// PageSizes are the page sizes a user can choose from.
var PageSizes = []int{10, 25, 50}

// NormalizePageSize returns size when allowed and DefaultPageSize otherwise.
func NormalizePageSize(size int) int {
	for _, s := range PageSizes {
		if s == size {
			return size
		}
	}
	return DefaultPageSize
}

// State is everything the visible set depends on besides the items.
type State struct {
	Tab      Tab
	Filter   Filter
	Page     int
	PageSize int
	// TopN overrides DefaultTopN when positive.
	TopN int
	// ParentContext renders each item's parent above it.
	ParentContext bool
}

// Selection is the derived visible set.
type Selection struct {
	Targets []core.Target
	Window  Window
	// Paged reports whether Window applies; top-N lists are never paged.
	Paged bool
}

// Keys returns the registry keys of the selected targets.
func (s Selection) Keys() []core.TargetKey {
	keys := make([]core.TargetKey, 0, len(s.Targets))
	for _, t := range s.Targets {
		keys = append(keys, t.Key())
	}
	return keys
}

// Select computes the visible targets for state. Items without an id are
// skipped. Off the replies tab the selection is empty.
func Select(items []core.Item, state State) Selection {
	if state.Tab != TabReplies {
		return Selection{Window: NewWindow(0, state.PageSize, 1)}
	}

	listed := Order(items, state.Filter, state.TopN)
	paged := ParseFilter(string(state.Filter)) == FilterAll

	w := NewWindow(len(listed), state.PageSize, state.Page)
	if paged {
		listed = listed[w.Start:w.End]
	} else {
		w = NewWindow(len(listed), len(listed), 1)
	}

	targets := make([]core.Target, 0, len(listed))
	for _, it := range listed {
		t := core.Target{PrimaryID: it.ID}
		if state.ParentContext {
			t.ContextID = it.ParentID
		}
		targets = append(targets, t)
	}

	return Selection{Targets: targets, Window: w, Paged: paged}
}

// Order returns a sorted copy of items for filter. Sorting is stable so ties
// keep upstream order.
func Order(items []core.Item, filter Filter, topN int) []core.Item {
	out := make([]core.Item, 0, len(items))
	for _, it := range items {
		if it.ID != "" {
			out = append(out, it)
		}
	}

	if topN <= 0 {
		topN = DefaultTopN
	}

	switch ParseFilter(string(filter)) {
	case FilterTopReplies:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ReplyCount() > out[j].ReplyCount() })
		return head(out, topN)
	case FilterTopViews:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ViewCount() > out[j].ViewCount() })
		return head(out, topN)
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return out
	}
}

func head(items []core.Item, n int) []core.Item {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// Window is a clamped pagination window over a list.
type Window struct {
	Total      int
	PageSize   int
	Page       int
	TotalPages int
	// Start and End delimit the page, End exclusive.
	Start int
	End   int
}

// NewWindow clamps page to [1, max(1, ceil(total/pageSize))].
func NewWindow(total, pageSize, page int) Window {
	if total < 0 {
		total = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	page = min(max(page, 1), pages)

	start := (page - 1) * pageSize
	end := min(start+pageSize, total)

	return Window{
		Total:      total,
		PageSize:   pageSize,
		Page:       page,
		TotalPages: pages,
		Start:      start,
		End:        end,
	}
}

// Summary is the human readable range label.
func (w Window) Summary() string {
	if w.Total == 0 {
		return "No entries"
	}
	return fmt.Sprintf("Showing %d–%d of %d", w.Start+1, w.End, w.Total)
}

// HasPrev reports whether a previous page exists.
func (w Window) HasPrev() bool { return w.Page > 1 }

// HasNext reports whether a next page exists.
func (w Window) HasNext() bool { return w.Page < w.TotalPages }

// Ellipsis marks skipped page numbers in the strip returned by Numbers.
const Ellipsis = 0

// pageWindow is how many neighbours of the current page stay visible.
const pageWindow = 2

// Numbers returns the page-number strip. Up to seven pages are listed in
// full; longer lists keep the first, the last and the current page ±2, with
// Ellipsis wherever numbers were skipped.
func (w Window) Numbers() []int {
	var out []int
	prev := 0
	for p := 1; p <= w.TotalPages; p++ {
		if w.TotalPages > 7 && p != 1 && p != w.TotalPages && (p < w.Page-pageWindow || p > w.Page+pageWindow) {
			continue
		}
		if prev != 0 && p > prev+1 {
			out = append(out, Ellipsis)
		}
		out = append(out, p)
		prev = p
	}
	return out
}
