package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/embedmesh/core"
)

// InMemoryStore is a volatile Registry implementation storing target records
// in a process local map keyed by (primaryId, contextId). It is safe for
// concurrent access. Reads return value snapshots so callers cannot mutate
// internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	active  core.Generation
	entries map[core.TargetKey]*core.Entry
	now     func() time.Time
}

// NewInMemoryStore constructs an empty in‑memory registry.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[core.TargetKey]*core.Entry), now: time.Now}
}

// Advance mints the next generation and makes it active.
func (s *InMemoryStore) Advance() core.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	return s.active
}

// Active returns the active generation.
func (s *InMemoryStore) Active() core.Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Enter stamps gen on the target. A record last seen under another
// generation is reset to Idle and true is returned.
func (s *InMemoryStore) Enter(key core.TargetKey, gen core.Generation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.active {
		return false
	}
	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = s.newEntryLocked(key, gen)
		return false
	}
	if e.Generation == gen {
		return false
	}
	e.State = core.StateIdle
	e.Generation = gen
	e.UpdatedAt = s.now()
	return true
}

// BeginRender transitions Idle to Rendering under gen.
func (s *InMemoryStore) BeginRender(key core.TargetKey, gen core.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.active {
		return core.ErrStaleGeneration
	}
	e, ok := s.entries[key]
	if !ok {
		e = s.newEntryLocked(key, gen)
		s.entries[key] = e
	}
	if e.Generation != gen {
		// entering under a new generation always starts from Idle
		e.State = core.StateIdle
		e.Generation = gen
	}
	if e.State != core.StateIdle {
		return core.ErrAlreadyStarted
	}
	e.State = core.StateRendering
	e.UpdatedAt = s.now()
	return nil
}

// Commit records the final state of a render.
func (s *InMemoryStore) Commit(key core.TargetKey, gen core.Generation, state core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || gen != s.active || e.Generation != gen {
		return core.ErrStaleGeneration
	}
	if e.State != core.StateRendering {
		return core.ErrNotRendering
	}
	if !state.Terminal() {
		return core.ErrNotRendering
	}
	e.State = state
	e.UpdatedAt = s.now()
	return nil
}

// IsCurrent reports whether gen is active and stamped on key.
func (s *InMemoryStore) IsCurrent(key core.TargetKey, gen core.Generation) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if gen != s.active {
		return false
	}
	e, ok := s.entries[key]
	return ok && e.Generation == gen
}

// Get returns a snapshot of one entry.
func (s *InMemoryStore) Get(key core.TargetKey) (core.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return core.Entry{}, false
	}
	return *e, true
}

// Snapshot returns all entries ordered by key.
func (s *InMemoryStore) Snapshot() []core.Entry {
	s.mu.RLock()
	out := make([]core.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.PrimaryID != out[j].Key.PrimaryID {
			return out[i].Key.PrimaryID < out[j].Key.PrimaryID
		}
		return out[i].Key.ContextID < out[j].Key.ContextID
	})
	return out
}

// Retain drops every entry whose key is not listed. In-flight renders of a
// dropped target fail their Commit as stale.
func (s *InMemoryStore) Retain(keys []core.TargetKey) {
	keep := make(map[core.TargetKey]struct{}, len(keys))
	for _, k := range keys {
		keep[k] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if _, ok := keep[k]; !ok {
			delete(s.entries, k)
		}
	}
}

// newEntryLocked allocates an Idle record; caller must hold the write lock.
func (s *InMemoryStore) newEntryLocked(key core.TargetKey, gen core.Generation) *core.Entry {
	return &core.Entry{Key: key, State: core.StateIdle, Generation: gen, UpdatedAt: s.now()}
}
