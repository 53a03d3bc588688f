package renderer

import (
	"fmt"

	"github.com/hupe1980/embedmesh/core"
)

// OverflowFlag marks a slot whose content is taller than its visible area.
// Such slots are top-aligned; all others stay centered.
const OverflowFlag = "overflowing"

// DefaultMargin is subtracted from the visible height before comparing.
const DefaultMargin = 8

// Adjuster makes the cosmetic alignment decision after layout settled.
type Adjuster struct {
	Margin float64
}

// Adjust sets or clears OverflowFlag on slot. It is idempotent.
func (a Adjuster) Adjust(slot core.Slot) error {
	content, err := slot.ContentHeight()
	if err != nil {
		return fmt.Errorf("measure content: %w", err)
	}
	client, err := slot.ClientHeight()
	if err != nil {
		return fmt.Errorf("measure slot: %w", err)
	}
	return slot.SetFlag(OverflowFlag, content > client-a.Margin)
}
