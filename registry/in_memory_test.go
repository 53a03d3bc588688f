package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embedmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.Registry = (*InMemoryStore)(nil)

func TestInMemoryStore_Advance(t *testing.T) {
	s := NewInMemoryStore()
	assert.Equal(t, core.Generation(0), s.Active())
	assert.Equal(t, core.Generation(1), s.Advance())
	assert.Equal(t, core.Generation(2), s.Advance())
	assert.Equal(t, core.Generation(2), s.Active())
}

func TestInMemoryStore_BeginRenderIsIdempotentPerGeneration(t *testing.T) {
	s := NewInMemoryStore()
	key := core.TargetKey{PrimaryID: "100"}
	gen := s.Advance()

	require.NoError(t, s.BeginRender(key, gen))
	assert.ErrorIs(t, s.BeginRender(key, gen), core.ErrAlreadyStarted)

	require.NoError(t, s.Commit(key, gen, core.StateRendered))
	assert.ErrorIs(t, s.BeginRender(key, gen), core.ErrAlreadyStarted)

	e, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, core.StateRendered, e.State)
	assert.Equal(t, gen, e.Generation)
}

func TestInMemoryStore_ConcurrentBeginRenderStartsOnce(t *testing.T) {
	s := NewInMemoryStore()
	key := core.TargetKey{PrimaryID: "100"}
	gen := s.Advance()

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginRender(key, gen) == nil {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
}

func TestInMemoryStore_StaleCommitIsDiscarded(t *testing.T) {
	s := NewInMemoryStore()
	key := core.TargetKey{PrimaryID: "100"}
	g1 := s.Advance()
	require.NoError(t, s.BeginRender(key, g1))

	g2 := s.Advance()
	assert.ErrorIs(t, s.Commit(key, g1, core.StateRendered), core.ErrStaleGeneration)

	e, _ := s.Get(key)
	assert.Equal(t, core.StateRendering, e.State, "stale commit must not mutate")
	assert.Equal(t, g1, e.Generation)

	assert.False(t, s.IsCurrent(key, g1))
	assert.ErrorIs(t, s.BeginRender(key, g1), core.ErrStaleGeneration)

	require.NoError(t, s.BeginRender(key, g2))
	assert.True(t, s.IsCurrent(key, g2))
	require.NoError(t, s.Commit(key, g2, core.StateFailed))
	e, _ = s.Get(key)
	assert.Equal(t, core.StateFailed, e.State)
}

func TestInMemoryStore_EnterResetsOnNewGeneration(t *testing.T) {
	s := NewInMemoryStore()
	key := core.TargetKey{PrimaryID: "100", ContextID: "99"}

	g1 := s.Advance()
	assert.False(t, s.Enter(key, g1), "first sighting needs no reset")
	require.NoError(t, s.BeginRender(key, g1))
	require.NoError(t, s.Commit(key, g1, core.StateRendered))
	assert.False(t, s.Enter(key, g1), "same generation keeps state")

	g2 := s.Advance()
	assert.True(t, s.Enter(key, g2))
	e, _ := s.Get(key)
	assert.Equal(t, core.StateIdle, e.State)
	assert.Equal(t, g2, e.Generation)

	assert.False(t, s.Enter(key, g1), "stale enter is ignored")
	e, _ = s.Get(key)
	assert.Equal(t, g2, e.Generation)
}

func TestInMemoryStore_CommitRequiresRendering(t *testing.T) {
	s := NewInMemoryStore()
	key := core.TargetKey{PrimaryID: "1"}
	gen := s.Advance()
	s.Enter(key, gen)

	assert.ErrorIs(t, s.Commit(key, gen, core.StateRendered), core.ErrNotRendering)
	require.NoError(t, s.BeginRender(key, gen))
	assert.ErrorIs(t, s.Commit(key, gen, core.StateIdle), core.ErrNotRendering)
	assert.ErrorIs(t, s.Commit(core.TargetKey{PrimaryID: "unknown"}, gen, core.StateRendered), core.ErrStaleGeneration)
}

func TestInMemoryStore_RetainAndSnapshot(t *testing.T) {
	s := NewInMemoryStore()
	gen := s.Advance()
	for _, id := range []string{"102", "100", "101"} {
		s.Enter(core.TargetKey{PrimaryID: id}, gen)
	}

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "100", snap[0].Key.PrimaryID)
	assert.Equal(t, "102", snap[2].Key.PrimaryID)

	s.Retain([]core.TargetKey{{PrimaryID: "101"}})
	snap = s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "101", snap[0].Key.PrimaryID)

	_, ok := s.Get(core.TargetKey{PrimaryID: "100"})
	assert.False(t, ok)
}
