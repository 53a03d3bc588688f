package modal

import (
	"context"
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
	"github.com/hupe1980/embedmesh/renderer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	widget *testutil.Widget
	dialog *testutil.Dialog
	reg    *registry.InMemoryStore
	c      *Controller
}

func newFixture(t *testing.T, b testutil.Behavior, focusables ...string) *fixture {
	t.Helper()

	w := testutil.NewWidget(b)
	reg := registry.NewInMemoryStore()
	r := renderer.New(gate.New(testutil.NewReadyDocument(w)), reg, func(o *renderer.Options) {
		o.AttemptTimeout = 50 * time.Millisecond
		o.Scheduler = testutil.Scheduler{}
	})
	d := testutil.NewDialog(focusables...)
	c := New(d, r, reg)

	t.Cleanup(func() {
		c.Close()
		c.Wait()
		r.Wait()
	})

	return &fixture{widget: w, dialog: d, reg: reg, c: c}
}

func TestController_OpenRendersAndTrapsFocus(t *testing.T) {
	f := newFixture(t, testutil.Succeed(), "close", "prev", "next")
	target := core.Target{PrimaryID: "100"}

	require.NoError(t, f.c.Open(context.Background(), target))
	f.c.Wait()

	sel, ok := f.c.Selection()
	require.True(t, ok)
	assert.Equal(t, target, sel)
	assert.True(t, f.dialog.ScrollLocked())
	assert.Equal(t, 1, f.dialog.Listeners())
	assert.Equal(t, 1, f.dialog.DismissListeners())
	assert.Equal(t, "close", f.dialog.ActiveElement())
	assert.Contains(t, f.dialog.Recorder().HTML(), `data-id="100"`)

	e, ok := f.reg.Get(target.Key())
	require.True(t, ok)
	assert.Equal(t, core.StateRendered, e.State)
}

func TestController_FocusTrapWrapsAround(t *testing.T) {
	f := newFixture(t, testutil.Succeed(), "a", "b", "c")
	require.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: "100"}))

	require.NoError(t, f.dialog.Focus("c"))
	assert.True(t, f.dialog.Press(core.KeyTab, false))
	assert.Equal(t, "a", f.dialog.ActiveElement())

	assert.True(t, f.dialog.Press(core.KeyTab, true))
	assert.Equal(t, "c", f.dialog.ActiveElement())

	assert.True(t, f.dialog.Press(core.KeyTab, true))
	assert.Equal(t, "b", f.dialog.ActiveElement())

	assert.True(t, f.dialog.Press(core.KeyTab, false))
	assert.Equal(t, "c", f.dialog.ActiveElement())
}

func TestController_FocusOutsideDialogReenters(t *testing.T) {
	f := newFixture(t, testutil.Succeed(), "a", "b", "c")
	require.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: "100"}))

	f.dialog.Blur()
	f.c.HandleKey(core.KeyEvent{Key: core.KeyTab})
	assert.Equal(t, "a", f.dialog.ActiveElement())

	f.dialog.Blur()
	f.c.HandleKey(core.KeyEvent{Key: core.KeyTab, Shift: true})
	assert.Equal(t, "c", f.dialog.ActiveElement())
}

func TestController_EscapeCloses(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	require.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: "100"}))

	assert.True(t, f.dialog.Press(core.KeyEscape, false))

	assert.False(t, f.c.IsOpen())
	_, ok := f.c.Selection()
	assert.False(t, ok)
	assert.False(t, f.dialog.ScrollLocked())
	assert.Zero(t, f.dialog.Listeners())

	// listener removed: further keys are not handled
	assert.False(t, f.dialog.Press(core.KeyEscape, false))
	assert.False(t, f.c.HandleKey(core.KeyEvent{Key: core.KeyTab}))
}

func TestController_DismissCloses(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	require.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: "100"}))
	f.c.Wait()

	f.dialog.Dismiss()

	assert.False(t, f.c.IsOpen())
	assert.False(t, f.dialog.ScrollLocked())
	assert.Zero(t, f.dialog.Listeners())
	assert.Zero(t, f.dialog.DismissListeners())

	// reopening registers exactly one dismiss listener again
	require.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: "101"}))
	assert.Equal(t, 1, f.dialog.DismissListeners())
	f.dialog.Dismiss()
	assert.False(t, f.c.IsOpen())
}

func TestController_OtherKeysAreIgnored(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	require.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: "100"}))

	assert.False(t, f.c.HandleKey(core.KeyEvent{Key: "Enter"}))
	assert.True(t, f.c.IsOpen())
}

func TestController_OpenReplacesSelection(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(ctx context.Context, call testutil.Call) error {
		if call.ItemID != "100" {
			return nil
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	require.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: "100"}))
	require.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: "200"}))

	sel, ok := f.c.Selection()
	require.True(t, ok)
	assert.Equal(t, "200", sel.PrimaryID)
	// one listener, one scroll lock, no dual registration
	assert.Equal(t, 1, f.dialog.Listeners())
	assert.Equal(t, 1, f.dialog.DismissListeners())

	close(release)
	f.c.Wait()

	_, ok = f.reg.Get(core.TargetKey{PrimaryID: "100"})
	assert.False(t, ok)
	e, ok := f.reg.Get(core.TargetKey{PrimaryID: "200"})
	require.True(t, ok)
	assert.Equal(t, core.StateRendered, e.State)
}

func TestController_ExclusivityUnderConcurrentOpens(t *testing.T) {
	f := newFixture(t, testutil.Succeed())

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, f.c.Open(context.Background(), core.Target{PrimaryID: id}))
			_, ok := f.c.Selection()
			assert.True(t, ok)
		}(id)
	}
	wg.Wait()
	f.c.Wait()

	sel, ok := f.c.Selection()
	require.True(t, ok)
	assert.Equal(t, 1, f.dialog.Listeners())

	snap := f.reg.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, sel.PrimaryID, snap[0].Key.PrimaryID)
	assert.Equal(t, core.StateRendered, snap[0].State)
}

func TestController_CloseDuringRenderIsClean(t *testing.T) {
	f := newFixture(t, testutil.Hang())
	target := core.Target{PrimaryID: "100"}

	require.NoError(t, f.c.Open(context.Background(), target))
	f.c.Close()
	f.c.Close()
	f.c.Wait()

	assert.False(t, f.c.IsOpen())
	assert.NotContains(t, f.dialog.Recorder().HTML(), "blockquote")

	e, ok := f.reg.Get(target.Key())
	require.True(t, ok)
	assert.Equal(t, core.StateRendering, e.State)
}

func TestController_InvalidTarget(t *testing.T) {
	f := newFixture(t, testutil.Succeed())
	assert.ErrorIs(t, f.c.Open(context.Background(), core.Target{}), core.ErrInvalidTarget)
	assert.False(t, f.c.IsOpen())
}
