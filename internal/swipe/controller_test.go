package swipe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jobswipe/jobswipe/internal/api"
)

type recordingSubmitter struct {
	mu        sync.Mutex
	decisions []Decision
	err       error
	block     chan struct{}
}

func (r *recordingSubmitter) Submit(_ context.Context, d Decision) error {
	if r.block != nil {
		<-r.block
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.decisions = append(r.decisions, d)
	return r.err
}

func (r *recordingSubmitter) submitted() []Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Decision, len(r.decisions))
	copy(out, r.decisions)
	return out
}

func staticLoader(items ...card) LoaderFunc[card] {
	return func(context.Context) ([]card, error) {
		return items, nil
	}
}

func newController(t *testing.T, loader Loader[card], sub Submitter, mode CommitMode) *Controller[card] {
	t.Helper()

	c := New[card](loader, sub, Options{
		Geometry: Geometry{Width: 400},
		Mode:     mode,
		Now:      func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(c.Close)

	return c
}

func TestSwipeScenario(t *testing.T) {
	sub := &recordingSubmitter{}
	c := newController(t, staticLoader(1, 2, 3), sub, FireAndForget)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))
	require.Equal(t, DisplayReady, c.Display())

	c.Drag(150, 12)
	require.True(t, c.Release())
	require.Equal(t, PhaseResolving, c.Phase())

	d, err := c.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, Decision{ID: 1, Action: api.ActionLike, At: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}, d)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, card(2), cur)

	c.Drag(-40, 0)
	assert.False(t, c.Release())
	assert.Equal(t, PhaseIdle, c.Phase())

	x, y := c.Position()
	assert.Zero(t, x)
	assert.Zero(t, y)

	cur, _ = c.Current()
	assert.Equal(t, card(2), cur)
	assert.Equal(t, []Decision{d}, c.Decisions())

	c.Close()
	assert.Equal(t, []Decision{d}, sub.submitted())
}

func TestReleaseAtThresholdSpringsBack(t *testing.T) {
	c := newController(t, staticLoader(1, 2), nil, FireAndForget)
	require.NoError(t, c.Load(context.Background()))

	for _, dx := range []float64{100, -100, 0, 99.9, -60} {
		c.Drag(dx, 0)
		assert.False(t, c.Release(), "dx=%v", dx)
		assert.Equal(t, PhaseIdle, c.Phase())
	}

	assert.Empty(t, c.Decisions())
}

func TestReleasePastThresholdFollowsSign(t *testing.T) {
	c := newController(t, staticLoader(1, 2), nil, FireAndForget)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	c.Drag(-101, 0)
	require.True(t, c.Release())

	x, _ := c.Position()
	assert.Equal(t, -540.0, x)

	d, err := c.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.ActionDislike, d.Action)
	assert.Equal(t, 1, d.ID)
}

func TestPressResolvesDirectly(t *testing.T) {
	c := newController(t, staticLoader(1), nil, FireAndForget)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.True(t, c.Press(Right))
	x, y := c.Position()
	assert.Equal(t, 540.0, x)
	assert.Zero(t, y)

	// A second press and any drag are ignored while resolving.
	assert.False(t, c.Press(Left))
	c.Drag(10, 10)
	assert.Equal(t, PhaseResolving, c.Phase())

	d, err := c.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.ActionLike, d.Action)
	assert.Equal(t, DisplayEmpty, c.Display())
}

func TestFinishTwiceRecordsOnce(t *testing.T) {
	c := newController(t, staticLoader(1, 2), nil, FireAndForget)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.True(t, c.Press(Right))
	_, err := c.Finish(ctx)
	require.NoError(t, err)

	_, err = c.Finish(ctx)
	assert.ErrorIs(t, err, ErrNotResolving)
	assert.Len(t, c.Decisions(), 1)
}

func TestDecidedCardsAreNotShownAgainAfterReload(t *testing.T) {
	c := newController(t, staticLoader(1, 2, 3), nil, FireAndForget)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.True(t, c.Press(Left))
	_, err := c.Finish(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Load(ctx))

	cur, _ := c.Current()
	assert.Equal(t, card(2), cur)
	next, _ := c.Next()
	assert.Equal(t, card(3), next)
	assert.Equal(t, 2, c.Remaining())
}

func TestDisplayStates(t *testing.T) {
	ctx := context.Background()

	empty := newController(t, staticLoader(), nil, FireAndForget)
	assert.Equal(t, DisplayLoading, empty.Display())
	require.NoError(t, empty.Load(ctx))
	assert.Equal(t, DisplayEmpty, empty.Display())
	assert.False(t, empty.Press(Right))

	boom := errors.New("boom")
	failing := newController(t, LoaderFunc[card](func(context.Context) ([]card, error) {
		return nil, boom
	}), nil, FireAndForget)
	assert.ErrorIs(t, failing.Load(ctx), boom)
	assert.Equal(t, DisplayError, failing.Display())
	assert.ErrorIs(t, failing.Err(), boom)

	failing.Drag(200, 0)
	assert.Equal(t, PhaseIdle, failing.Phase())
}

func TestFireAndForgetSwallowsSubmissionErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sub := &recordingSubmitter{err: errors.New("unavailable")}

	c := New[card](staticLoader(1, 2), sub, Options{
		Geometry: Geometry{Width: 400},
		Logger:   zap.New(core),
	})
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.True(t, c.Press(Right))
	_, err := c.Finish(ctx)
	require.NoError(t, err)

	c.Close()

	assert.Len(t, sub.submitted(), 1)
	assert.True(t, c.IsDecided(1))
	assert.Equal(t, 1, logs.FilterMessage("decision submission failed").Len())
}

func TestDecisionsRecordedInResolveOrder(t *testing.T) {
	release := make(chan struct{})
	sub := &recordingSubmitter{block: release}
	c := newController(t, staticLoader(1, 2, 3), sub, FireAndForget)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	for _, dir := range []Direction{Right, Left, Right} {
		require.True(t, c.Press(dir))
		_, err := c.Finish(ctx)
		require.NoError(t, err)
	}

	decisions := c.Decisions()
	require.Len(t, decisions, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{decisions[0].ID, decisions[1].ID, decisions[2].ID})
	assert.Equal(t, DisplayEmpty, c.Display())

	close(release)
	c.Close()
	assert.Len(t, sub.submitted(), 3)
}

func TestConfirmedSurfacesErrorsAndKeepsCard(t *testing.T) {
	sub := &recordingSubmitter{err: errors.New("forbidden")}
	c := newController(t, staticLoader(7, 8), sub, Confirmed)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.True(t, c.Press(Right))
	_, err := c.Finish(ctx)
	require.Error(t, err)

	assert.Empty(t, c.Decisions())
	assert.Equal(t, PhaseIdle, c.Phase())
	cur, _ := c.Current()
	assert.Equal(t, card(7), cur)
}

func TestConfirmedReloadsAfterSuccess(t *testing.T) {
	var (
		mu    sync.Mutex
		loads int
		items = []card{7, 8}
	)
	loader := LoaderFunc[card](func(context.Context) ([]card, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		return items, nil
	})

	sub := SubmitterFunc(func(_ context.Context, d Decision) error {
		mu.Lock()
		defer mu.Unlock()
		// The server drops answered entries from the list.
		kept := items[:0:0]
		for _, it := range items {
			if int(it) != d.ID {
				kept = append(kept, it)
			}
		}
		items = kept
		return nil
	})

	c := newController(t, loader, sub, Confirmed)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.True(t, c.Press(Left))
	d, err := c.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, d.ID)

	mu.Lock()
	assert.Equal(t, 2, loads)
	mu.Unlock()

	cur, _ := c.Current()
	assert.Equal(t, card(8), cur)
	assert.Equal(t, 1, c.Remaining())
}

func TestLoadAfterCloseIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	finish := make(chan struct{})

	loader := LoaderFunc[card](func(context.Context) ([]card, error) {
		close(started)
		<-finish
		return []card{1}, nil
	})

	c := newController(t, loader, nil, FireAndForget)

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()

	<-started
	c.Close()
	close(finish)

	assert.NoError(t, <-done)
	assert.Equal(t, 0, c.Remaining())
	assert.ErrorIs(t, c.Load(context.Background()), ErrClosed)

	_, err := c.Finish(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFrameFollowsDrag(t *testing.T) {
	c := newController(t, staticLoader(1, 2), nil, FireAndForget)
	require.NoError(t, c.Load(context.Background()))

	c.Drag(200, 5)
	f := c.Frame()

	assert.Equal(t, 200.0, f.X)
	assert.Equal(t, 5.0, f.Y)
	assert.InDelta(t, 8.0, f.Rotation, 1e-9)
	assert.InDelta(t, 1.0, f.LikeOpacity, 1e-9)
	assert.InDelta(t, 0.0, f.DislikeOpacity, 1e-9)
}

func TestCloseCancelsPendingSubmissions(t *testing.T) {
	started := make(chan struct{})
	sub := SubmitterFunc(func(ctx context.Context, _ Decision) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	c := newController(t, staticLoader(1, 2), sub, FireAndForget)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.True(t, c.Press(Right))
	_, err := c.Finish(ctx)
	require.NoError(t, err)
	<-started

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a submission was in flight")
	}

	assert.True(t, c.IsDecided(1))
}

func TestConfirmedFinishSubmitsOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	started := make(chan struct{})
	release := make(chan struct{})
	sub := SubmitterFunc(func(context.Context, Decision) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n == 1 {
			close(started)
			<-release
		}
		return nil
	})

	c := newController(t, staticLoader(1, 2), sub, Confirmed)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	require.True(t, c.Press(Right))

	first := make(chan error, 1)
	go func() {
		_, err := c.Finish(ctx)
		first <- err
	}()
	<-started

	_, err := c.Finish(ctx)
	assert.ErrorIs(t, err, ErrCommitting)

	close(release)
	require.NoError(t, <-first)

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	decisions := c.Decisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, 1, decisions[0].ID)

	_, err = c.Finish(ctx)
	assert.ErrorIs(t, err, ErrNotResolving)
}
