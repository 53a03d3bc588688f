package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embedmesh/internal/testutil"
)

func TestAdjuster_Adjust(t *testing.T) {
	tests := []struct {
		name    string
		content float64
		client  float64
		want    bool
	}{
		{"fits", 300, 400, false},
		{"taller than slot", 900, 400, true},
		{"inside margin", 395, 400, true},
		{"exactly at margin", 392, 400, false},
	}

	a := Adjuster{Margin: DefaultMargin}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := testutil.NewSlot("s")
			slot.SetHeights(tt.content, tt.client)

			require.NoError(t, a.Adjust(slot))
			assert.Equal(t, tt.want, slot.Flag(OverflowFlag))

			// idempotent
			require.NoError(t, a.Adjust(slot))
			assert.Equal(t, tt.want, slot.Flag(OverflowFlag))
		})
	}
}

func TestAdjuster_ClearsFlag(t *testing.T) {
	slot := testutil.NewSlot("s")
	slot.SetHeights(900, 400)
	a := Adjuster{Margin: DefaultMargin}

	require.NoError(t, a.Adjust(slot))
	assert.True(t, slot.Flag(OverflowFlag))

	slot.SetHeights(100, 400)
	require.NoError(t, a.Adjust(slot))
	assert.False(t, slot.Flag(OverflowFlag))
}

func TestPlaceholder(t *testing.T) {
	html := Placeholder("", "100")
	assert.Equal(t,
		`<blockquote class="twitter-tweet" data-embed-fallback="true"><a href="https://twitter.com/i/web/status/100">https://twitter.com/i/web/status/100</a></blockquote>`,
		html)

	escaped := Placeholder("", `1"><script>`)
	assert.NotContains(t, escaped, "<script>")
	assert.NotContains(t, escaped, `1">`)
}
