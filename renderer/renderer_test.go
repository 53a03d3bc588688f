package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/gate"
	"github.com/hupe1980/embedmesh/internal/testutil"
	"github.com/hupe1980/embedmesh/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const attemptTimeout = 40 * time.Millisecond

type fixture struct {
	widget *testutil.Widget
	doc    *testutil.Document
	reg    *registry.InMemoryStore
	r      *Renderer
}

func newFixture(t *testing.T, b testutil.Behavior) *fixture {
	t.Helper()
	w := testutil.NewWidget(b)
	doc := testutil.NewReadyDocument(w)
	return newFixtureWithDoc(t, w, doc, gate.DefaultTimeout)
}

func newFixtureWithDoc(t *testing.T, w *testutil.Widget, doc *testutil.Document, gateTimeout time.Duration) *fixture {
	t.Helper()
	reg := registry.NewInMemoryStore()
	g := gate.New(doc, func(o *gate.Options) { o.Timeout = gateTimeout })
	r := New(g, reg, func(o *Options) {
		o.AttemptTimeout = attemptTimeout
		o.Scheduler = testutil.Scheduler{}
	})
	t.Cleanup(r.Wait)
	return &fixture{widget: w, doc: doc, reg: reg, r: r}
}

// begin issues a fresh generation for target the way the orchestrator does.
func (f *fixture) begin(t *testing.T, target core.Target) core.Generation {
	t.Helper()
	gen := f.reg.Advance()
	f.reg.Enter(target.Key(), gen)
	require.NoError(t, f.reg.BeginRender(target.Key(), gen))
	return gen
}

func (f *fixture) state(t *testing.T, target core.Target) core.State {
	t.Helper()
	e, ok := f.reg.Get(target.Key())
	require.True(t, ok)
	return e.State
}

func conversations(calls []testutil.Call) []core.Conversation {
	out := make([]core.Conversation, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Conversation)
	}
	return out
}

func TestRender_FirstAttemptShowsFullConversation(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")

	err := f.r.Render(context.Background(), target, slot, f.begin(t, target))
	require.NoError(t, err)

	assert.Equal(t, core.StateRendered, f.state(t, target))
	assert.Equal(t, []core.Conversation{core.ConversationAll}, conversations(f.widget.Calls()))
	assert.Contains(t, slot.HTML(), `data-id="100"`)
	assert.Zero(t, f.widget.Refreshes())
}

func TestRender_FallsBackToDefaultOptions(t *testing.T) {
	f := newFixture(t, testutil.ByConversation(map[core.Conversation]testutil.Behavior{
		core.ConversationDefault: testutil.Succeed(),
	}))
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")

	require.NoError(t, f.r.Render(context.Background(), target, slot, f.begin(t, target)))

	assert.Equal(t, core.StateRendered, f.state(t, target))
	assert.Equal(t, []core.Conversation{core.ConversationAll, core.ConversationDefault}, conversations(f.widget.Calls()))
}

func TestRender_AllAttemptsFailWritesPlaceholder(t *testing.T) {
	f := newFixture(t, testutil.Fail())
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")

	err := f.r.Render(context.Background(), target, slot, f.begin(t, target))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAllAttemptsExhausted)
	assert.ErrorIs(t, err, core.ErrEmbedCreationFailed)

	assert.Equal(t, core.StateFailed, f.state(t, target))
	assert.Contains(t, slot.HTML(), `<blockquote class="twitter-tweet"`)
	assert.Contains(t, slot.HTML(), "https://twitter.com/i/web/status/100")
	assert.Len(t, f.widget.Calls(), 2)
	assert.Equal(t, 1, f.widget.Refreshes())
}

func TestRender_DualContext(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	target := core.Target{PrimaryID: "100", ContextID: "99"}
	slot := testutil.NewSlot("s1")

	require.NoError(t, f.r.Render(context.Background(), target, slot, f.begin(t, target)))
	f.r.Wait()

	assert.Equal(t, core.StateRendered, f.state(t, target))

	primary := f.widget.CallsFor("100")
	require.Len(t, primary, 1)
	assert.Equal(t, core.ConversationNone, primary[0].Conversation)
	assert.Equal(t, "s1/"+PrimaryClass+"/"+AttemptClass, primary[0].Container)

	parent := f.widget.CallsFor("99")
	require.Len(t, parent, 1)
	assert.Equal(t, core.ConversationNone, parent[0].Conversation)
	assert.Equal(t, "s1/"+ContextClass+"/"+AttemptClass, parent[0].Container)

	children := slot.Children()
	require.Len(t, children, 2)
	assert.Contains(t, children[0].HTML(), `data-id="99"`)
	assert.Contains(t, children[1].HTML(), `data-id="100"`)
}

func TestRender_DualContextPrimaryFallsBack(t *testing.T) {
	f := newFixture(t, testutil.ByConversation(map[core.Conversation]testutil.Behavior{
		core.ConversationAll: testutil.Succeed(),
	}))
	target := core.Target{PrimaryID: "100", ContextID: "99"}
	slot := testutil.NewSlot("s1")

	require.NoError(t, f.r.Render(context.Background(), target, slot, f.begin(t, target)))
	f.r.Wait()

	// the parent failing never affects the primary outcome
	assert.Equal(t, core.StateRendered, f.state(t, target))
	assert.Equal(t, []core.Conversation{core.ConversationNone, core.ConversationAll}, conversations(f.widget.CallsFor("100")))
}

func TestRender_BoundedLatencyUnderHangs(t *testing.T) {
	f := newFixture(t, testutil.Hang())
	target := core.Target{PrimaryID: "100", ContextID: "99"}
	slot := testutil.NewSlot("s1")

	start := time.Now()
	err := f.r.Render(context.Background(), target, slot, f.begin(t, target))
	elapsed := time.Since(start)
	f.r.Wait()

	assert.ErrorIs(t, err, core.ErrAllAttemptsExhausted)
	assert.ErrorIs(t, err, core.ErrAttemptTimeout)
	assert.Equal(t, core.StateFailed, f.state(t, target))
	assert.Len(t, f.widget.CallsFor("100"), DefaultMaxAttempts)
	assert.Less(t, elapsed, f.r.WorstCase()+100*time.Millisecond)
	assert.Contains(t, slot.HTML(), "https://twitter.com/i/web/status/100")
}

func TestRender_NeverReadyScript(t *testing.T) {
	w := testutil.NewWidget(testutil.Succeed())
	doc := testutil.NewDocument()
	f := newFixtureWithDoc(t, w, doc, 60*time.Millisecond)

	targets := []core.Target{{PrimaryID: "100"}, {PrimaryID: "101"}, {PrimaryID: "102", ContextID: "7"}}
	slots := make([]*testutil.Slot, len(targets))

	gen := f.reg.Advance()
	for i, target := range targets {
		slots[i] = testutil.NewSlot(target.PrimaryID)
		f.reg.Enter(target.Key(), gen)
		require.NoError(t, f.reg.BeginRender(target.Key(), gen))
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(target core.Target, slot core.Slot) {
			defer wg.Done()
			err := f.r.Render(context.Background(), target, slot, gen)
			assert.ErrorIs(t, err, core.ErrScriptUnavailable)
		}(target, slots[i])
	}
	wg.Wait()

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, doc.Injections())
	assert.Empty(t, w.Calls())

	for i, target := range targets {
		assert.Equal(t, core.StateFailed, f.state(t, target))
		assert.Contains(t, slots[i].HTML(), "https://twitter.com/i/web/status/"+target.PrimaryID)
	}
}

func TestRender_StaleCompletionIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(ctx context.Context, _ testutil.Call) error {
		select {
		case <-release:
			return errors.New("rejected late")
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	f.r.attemptTimeout = time.Second

	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")
	gen := f.begin(t, target)

	done := make(chan error, 1)
	go func() { done <- f.r.Render(context.Background(), target, slot, gen) }()

	require.Eventually(t, func() bool { return len(f.widget.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	writes := slot.Writes()

	f.reg.Advance()
	close(release)

	err := <-done
	assert.ErrorIs(t, err, core.ErrStaleGeneration)

	e, ok := f.reg.Get(target.Key())
	require.True(t, ok)
	assert.Equal(t, core.StateRendering, e.State)
	assert.Equal(t, gen, e.Generation)

	assert.Equal(t, writes, slot.Writes())
	assert.Len(t, f.widget.Calls(), 1)
	assert.NotContains(t, slot.HTML(), "blockquote")
	assert.Zero(t, f.widget.Refreshes())
}

// stubbornWidget ignores cancellation on its first call and writes into the
// container it was handed long after the attempt timed out.
type stubbornWidget struct {
	*testutil.Widget
	delay   time.Duration
	once    sync.Once
	started chan struct{}
	wrote   chan struct{}
}

func newStubbornWidget(b testutil.Behavior, delay time.Duration) *stubbornWidget {
	return &stubbornWidget{
		Widget:  testutil.NewWidget(b),
		delay:   delay,
		started: make(chan struct{}),
		wrote:   make(chan struct{}),
	}
}

func (w *stubbornWidget) CreateEmbed(ctx context.Context, itemID string, container core.Slot, opts core.DisplayOptions) error {
	first := false
	w.once.Do(func() { first = true })
	if !first {
		return w.Widget.CreateEmbed(ctx, itemID, container, opts)
	}

	close(w.started)
	defer close(w.wrote)
	time.Sleep(w.delay)
	return container.SetHTML(fmt.Sprintf(`<div class="twitter-tweet-rendered" data-id="%s"></div>`, itemID))
}

func (w *stubbornWidget) waitWrote(t *testing.T) {
	t.Helper()
	select {
	case <-w.wrote:
	case <-time.After(5 * time.Second):
		t.Fatal("late write never happened")
	}
}

func TestRender_LateWriteAfterTimeoutIsDetached(t *testing.T) {
	w := newStubbornWidget(testutil.Succeed(), 3*attemptTimeout)
	f := newFixtureWithDoc(t, w.Widget, testutil.NewReadyDocument(w), gate.DefaultTimeout)
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")

	require.NoError(t, f.r.Render(context.Background(), target, slot, f.begin(t, target)))
	w.waitWrote(t)

	assert.Equal(t, core.StateRendered, f.state(t, target))
	children := slot.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "s1/"+AttemptClass, children[0].ID())
	assert.Equal(t, 1, strings.Count(slot.HTML(), "twitter-tweet-rendered"))
}

func TestRender_LateWriteFromOldGenerationIsDetached(t *testing.T) {
	w := newStubbornWidget(testutil.Succeed(), 600*time.Millisecond)
	f := newFixtureWithDoc(t, w.Widget, testutil.NewReadyDocument(w), gate.DefaultTimeout)
	f.r.attemptTimeout = 200 * time.Millisecond
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")

	first := f.begin(t, target)
	done := make(chan error, 1)
	go func() { done <- f.r.Render(context.Background(), target, slot, first) }()
	<-w.started

	// the next pass keeps the target visible and reuses its slot
	second := f.begin(t, target)
	require.NoError(t, slot.Clear())
	require.NoError(t, f.r.Render(context.Background(), target, slot, second))

	assert.ErrorIs(t, <-done, core.ErrStaleGeneration)
	w.waitWrote(t)

	assert.Equal(t, core.StateRendered, f.state(t, target))
	require.Len(t, slot.Children(), 1)
	assert.Equal(t, 1, strings.Count(slot.HTML(), "twitter-tweet-rendered"))
	assert.Len(t, w.Calls(), 1)
}

func TestRender_StaleBeforeStartDoesNothing(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")

	gen := f.begin(t, target)
	f.reg.Advance()

	err := f.r.Render(context.Background(), target, slot, gen)
	assert.ErrorIs(t, err, core.ErrStaleGeneration)
	assert.Zero(t, slot.Writes())
	assert.Empty(t, f.widget.Calls())
}

func TestRender_WidgetPanicCountsAsFailure(t *testing.T) {
	f := newFixture(t, func(context.Context, testutil.Call) error {
		panic("boom")
	})
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")

	err := f.r.Render(context.Background(), target, slot, f.begin(t, target))
	assert.ErrorIs(t, err, core.ErrAllAttemptsExhausted)
	assert.Equal(t, core.StateFailed, f.state(t, target))
}

func TestRender_SchedulesAlignment(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")
	slot.SetHeights(900, 400)

	require.NoError(t, f.r.Render(context.Background(), target, slot, f.begin(t, target)))
	assert.True(t, slot.Flag(OverflowFlag))
}

func TestRender_InvalidTarget(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	err := f.r.Render(context.Background(), core.Target{}, testutil.NewSlot("s1"), 1)
	assert.ErrorIs(t, err, core.ErrInvalidTarget)
}

func TestRender_CallerCancellation(t *testing.T) {
	f := newFixture(t, testutil.Hang())
	f.r.attemptTimeout = time.Minute
	target := core.Target{PrimaryID: "100"}
	slot := testutil.NewSlot("s1")
	gen := f.begin(t, target)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.r.Render(ctx, target, slot, gen) }()

	require.Eventually(t, func() bool { return len(f.widget.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	f.reg.Advance()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrStaleGeneration)
	case <-time.After(time.Second):
		t.Fatal("render did not stop after cancellation")
	}
}

func TestWorstCase(t *testing.T) {
	r := New(nil, nil)
	assert.Equal(t, 6*time.Second, r.WorstCase())
}
