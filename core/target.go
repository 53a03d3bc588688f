package core

import "fmt"

// State is the render state of a single target.
type State int

const (
	// StateIdle means the target is known but no render has started in its generation.
	StateIdle State = iota
	// StateRendering means a fallback chain is in flight.
	StateRendering
	// StateRendered means an attempt produced a rich embed.
	StateRendered
	// StateFailed means every attempt failed and the static placeholder was written.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateRendered:
		return "rendered"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state concludes a render.
func (s State) Terminal() bool {
	return s == StateRendered || s == StateFailed
}

// Generation tags one rendering pass. Zero means "no pass issued yet".
type Generation uint64

// TargetKey identifies a placeholder by its item pair.
type TargetKey struct {
	PrimaryID string
	ContextID string
}

// String renders the key as primary or primary@context.
func (k TargetKey) String() string {
	if k.ContextID == "" {
		return k.PrimaryID
	}
	return k.PrimaryID + "@" + k.ContextID
}

// Target is a placeholder to fill: the item to embed and, in the
// dual-context case, the parent item rendered above it.
type Target struct {
	PrimaryID string
	ContextID string
}

// Key returns the registry key of the target.
func (t Target) Key() TargetKey {
	return TargetKey{PrimaryID: t.PrimaryID, ContextID: t.ContextID}
}

// HasContext reports whether the parent context should be rendered.
func (t Target) HasContext() bool { return t.ContextID != "" }

// Validate checks the target is renderable.
func (t Target) Validate() error {
	if t.PrimaryID == "" {
		return fmt.Errorf("%w: primary id is empty", ErrInvalidTarget)
	}
	return nil
}
