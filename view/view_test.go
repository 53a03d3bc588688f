package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/internal/testutil"
)

func ids(targets []core.Target) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.PrimaryID)
	}
	return out
}

func itemIDs(items []core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestNewWindow(t *testing.T) {
	tests := []struct {
		name                                string
		total, size, page                   int
		wantPage, wantPages, wantStart, end int
	}{
		{"first page", 42, 10, 1, 1, 5, 0, 10},
		{"last partial page", 42, 10, 5, 5, 5, 40, 42},
		{"page past the end clamps", 42, 10, 9, 5, 5, 40, 42},
		{"page below one clamps", 42, 10, -3, 1, 5, 0, 10},
		{"empty list has one page", 0, 10, 3, 1, 1, 0, 0},
		{"invalid size falls back", 30, 0, 2, 2, 3, 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(tt.total, tt.size, tt.page)
			assert.Equal(t, tt.wantPage, w.Page)
			assert.Equal(t, tt.wantPages, w.TotalPages)
			assert.Equal(t, tt.wantStart, w.Start)
			assert.Equal(t, tt.end, w.End)
		})
	}
}

func TestWindow_Summary(t *testing.T) {
	assert.Equal(t, "Showing 11–20 of 42", NewWindow(42, 10, 2).Summary())
	assert.Equal(t, "Showing 41–42 of 42", NewWindow(42, 10, 5).Summary())
	assert.Equal(t, "No entries", NewWindow(0, 10, 1).Summary())
}

func TestWindow_Navigation(t *testing.T) {
	w := NewWindow(42, 10, 1)
	assert.False(t, w.HasPrev())
	assert.True(t, w.HasNext())

	w = NewWindow(42, 10, 5)
	assert.True(t, w.HasPrev())
	assert.False(t, w.HasNext())
}

func TestWindow_Numbers(t *testing.T) {
	tests := []struct {
		name        string
		pages, page int
		want        []int
	}{
		{"single page", 1, 1, []int{1}},
		{"seven pages are all listed", 7, 4, []int{1, 2, 3, 4, 5, 6, 7}},
		{"start of long list", 20, 1, []int{1, 2, 3, Ellipsis, 20}},
		{"middle of long list", 20, 10, []int{1, Ellipsis, 8, 9, 10, 11, 12, Ellipsis, 20}},
		{"no ellipsis for adjacent pages", 8, 4, []int{1, 2, 3, 4, 5, 6, Ellipsis, 8}},
		{"end of long list", 20, 20, []int{1, Ellipsis, 18, 19, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(tt.pages*10, 10, tt.page)
			assert.Equal(t, tt.want, w.Numbers())
		})
	}
}

func TestNormalizePageSize(t *testing.T) {
	assert.Equal(t, 25, NormalizePageSize(25))
	assert.Equal(t, 50, NormalizePageSize(50))
	assert.Equal(t, DefaultPageSize, NormalizePageSize(7))
	assert.Equal(t, DefaultPageSize, NormalizePageSize(0))
}

func TestParseFilter(t *testing.T) {
	assert.Equal(t, FilterTopReplies, ParseFilter("replies"))
	assert.Equal(t, FilterTopViews, ParseFilter("views"))
	assert.Equal(t, FilterAll, ParseFilter("bogus"))
	assert.Equal(t, FilterAll, ParseFilter(""))
}

func TestOrder_NewestFirst(t *testing.T) {
	items := []core.Item{
		testutil.NewItemBuilder("old").CreatedAt(testutil.Epoch.Add(-time.Hour)).Build(),
		testutil.NewItemBuilder("new").CreatedAt(testutil.Epoch.Add(time.Hour)).Build(),
		testutil.NewItemBuilder("tie-a").Build(),
		testutil.NewItemBuilder("tie-b").Build(),
		testutil.NewItemBuilder("").Build(),
	}

	got := Order(items, FilterAll, 0)
	assert.Equal(t, []string{"new", "tie-a", "tie-b", "old"}, itemIDs(got))
	// input untouched
	assert.Equal(t, "old", items[0].ID)
}

func TestOrder_TopByEngagement(t *testing.T) {
	items := []core.Item{
		testutil.NewItemBuilder("a").Replies(1).Views(900).Build(),
		testutil.NewItemBuilder("b").Replies(7).Views(10).Build(),
		testutil.NewItemBuilder("c").Build(), // no engagement counts as zero
		testutil.NewItemBuilder("d").Replies(7).Views(50).Build(),
		testutil.NewItemBuilder("e").Replies(3).Views(400).Build(),
		testutil.NewItemBuilder("f").Replies(2).Views(600).Build(),
		testutil.NewItemBuilder("g").Replies(9).Views(5).Build(),
	}

	assert.Equal(t, []string{"g", "b", "d", "e", "f"}, itemIDs(Order(items, FilterTopReplies, 0)))
	assert.Equal(t, []string{"a", "f", "e", "d", "b"}, itemIDs(Order(items, FilterTopViews, 0)))
	assert.Equal(t, []string{"a", "f"}, itemIDs(Order(items, FilterTopViews, 2)))
}

func TestSelect_PagesFilterAll(t *testing.T) {
	items := testutil.Items("100", "101", "102")

	sel := Select(items, State{Tab: TabReplies, Filter: FilterAll, Page: 2, PageSize: 1})
	require.True(t, sel.Paged)
	assert.Equal(t, []string{"101"}, ids(sel.Targets))
	assert.Equal(t, 3, sel.Window.TotalPages)

	sel = Select(items, State{Tab: TabReplies, Filter: FilterAll, Page: 99, PageSize: 1})
	assert.Equal(t, []string{"102"}, ids(sel.Targets))
	assert.Equal(t, 3, sel.Window.Page)
}

func TestSelect_TopListsAreUnpaged(t *testing.T) {
	var items []core.Item
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		items = append(items, testutil.NewItemBuilder(id).Replies(i).Build())
	}

	sel := Select(items, State{Tab: TabReplies, Filter: FilterTopReplies, Page: 3, PageSize: 1})
	assert.False(t, sel.Paged)
	assert.Equal(t, []string{"g", "f", "e", "d", "c"}, ids(sel.Targets))
	assert.Equal(t, 1, sel.Window.TotalPages)
}

func TestSelect_ParentContext(t *testing.T) {
	items := []core.Item{
		testutil.NewItemBuilder("100").Parent("1").Build(),
		testutil.NewItemBuilder("101").CreatedAt(testutil.Epoch.Add(-time.Minute)).Build(),
	}

	sel := Select(items, State{Tab: TabReplies, PageSize: 10})
	assert.Equal(t, []core.Target{{PrimaryID: "100"}, {PrimaryID: "101"}}, sel.Targets)

	sel = Select(items, State{Tab: TabReplies, PageSize: 10, ParentContext: true})
	assert.Equal(t, []core.Target{{PrimaryID: "100", ContextID: "1"}, {PrimaryID: "101"}}, sel.Targets)
	assert.Equal(t, []core.TargetKey{{PrimaryID: "100", ContextID: "1"}, {PrimaryID: "101"}}, sel.Keys())
}

func TestSelect_OverviewTabHasNoTargets(t *testing.T) {
	sel := Select(testutil.Items("100", "101"), State{Tab: TabOverview, PageSize: 10})
	assert.Empty(t, sel.Targets)
}
