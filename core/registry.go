package core

import "time"

// Entry is a snapshot of one registry record.
type Entry struct {
	Key        TargetKey
	State      State
	Generation Generation
	UpdatedAt  time.Time
}

// Registry maps placeholders to render state and generation tags. It is a
// pure state container: it never touches slots.
//
// Implementations MUST:
//   - Reject every mutation carrying a generation other than the active one
//   - Start at most one render per (target, generation)
//   - Be safe for concurrent use
type Registry interface {
	// Advance mints the next generation and makes it active.
	Advance() Generation
	// Active returns the active generation.
	Active() Generation
	// Enter stamps gen on the target, resetting it to Idle when it was last
	// seen under another generation. It returns true on reset so the caller
	// clears the slot.
	Enter(key TargetKey, gen Generation) bool
	// BeginRender transitions Idle to Rendering. It returns ErrAlreadyStarted
	// when the target already started in gen and ErrStaleGeneration when gen
	// is not active.
	BeginRender(key TargetKey, gen Generation) error
	// Commit records the final state. Stale generations are discarded with
	// ErrStaleGeneration and no mutation.
	Commit(key TargetKey, gen Generation, state State) error
	// IsCurrent reports whether gen is both active and stamped on key.
	IsCurrent(key TargetKey, gen Generation) bool
	// Get returns a snapshot of one entry.
	Get(key TargetKey) (Entry, bool)
	// Snapshot returns all entries ordered by key.
	Snapshot() []Entry
	// Retain drops every entry whose key is not listed.
	Retain(keys []TargetKey)
}
