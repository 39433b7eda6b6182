// Package swipe implements the swipe deck: a queue of cards, the drag and
// button gestures that resolve the current card into a like or dislike,
// and the render parameters for each gesture tick.
package swipe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/logger"
)

var (
	ErrClosed       = errors.New("swipe controller is closed")
	ErrNotResolving = errors.New("no card is resolving")
	ErrCommitting   = errors.New("decision is already being submitted")
)

type Direction int

const (
	Left  Direction = -1
	Right Direction = 1
)

func (d Direction) Action() api.Action {
	if d == Right {
		return api.ActionLike
	}
	return api.ActionDislike
}

func (d Direction) String() string {
	if d == Right {
		return "right"
	}
	return "left"
}

// DirectionOf maps an action to the side a card leaves from.
func DirectionOf(a api.Action) Direction {
	if a == api.ActionLike {
		return Right
	}
	return Left
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseResolving
)

func (p Phase) String() string {
	switch p {
	case PhaseDragging:
		return "dragging"
	case PhaseResolving:
		return "resolving"
	default:
		return "idle"
	}
}

// Display is what the deck shows as a whole. Empty and Error are separate
// terminal states and never stand in for each other.
type Display int

const (
	DisplayLoading Display = iota
	DisplayError
	DisplayEmpty
	DisplayReady
)

func (d Display) String() string {
	switch d {
	case DisplayError:
		return "error"
	case DisplayEmpty:
		return "empty"
	case DisplayReady:
		return "ready"
	default:
		return "loading"
	}
}

// CommitMode selects how a finished decision reaches the backend.
type CommitMode int

const (
	// FireAndForget records the decision locally, then submits it in the
	// background. Submission errors are logged and dropped.
	FireAndForget CommitMode = iota
	// Confirmed waits for the backend, surfaces its error and only then
	// records the decision and reloads the deck.
	Confirmed
)

// Loader fetches the cards for the deck.
type Loader[T Card] interface {
	Load(ctx context.Context) ([]T, error)
}

type LoaderFunc[T Card] func(ctx context.Context) ([]T, error)

func (f LoaderFunc[T]) Load(ctx context.Context) ([]T, error) { return f(ctx) }

// Submitter delivers a decision to the backend.
type Submitter interface {
	Submit(ctx context.Context, d Decision) error
}

type SubmitterFunc func(ctx context.Context, d Decision) error

func (f SubmitterFunc) Submit(ctx context.Context, d Decision) error { return f(ctx, d) }

type Options struct {
	Geometry Geometry
	Mode     CommitMode
	Logger   *zap.Logger
	// SubmitTimeout bounds a background submission. Zero means no bound
	// beyond the HTTP client's own timeout.
	SubmitTimeout time.Duration
	Now           func() time.Time
}

type point struct {
	x, y float64
}

// Controller drives one deck. All methods are safe for concurrent use;
// state changes are serialised so decisions enter the decided set in the
// order cards are finished, whatever order their submissions complete in.
type Controller[T Card] struct {
	mu sync.Mutex

	loader    Loader[T]
	submitter Submitter
	geometry  Geometry
	mode      CommitMode
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger

	queue     *Queue[T]
	phase     Phase
	direction Direction
	pos       point
	display   Display
	loadErr   error
	loadSeq   int
	closed    bool
	// committing is set while a confirmed decision waits for the backend.
	committing bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New[T Card](loader Loader[T], submitter Submitter, opts Options) *Controller[T] {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller[T]{
		loader:    loader,
		submitter: submitter,
		geometry:  opts.Geometry,
		mode:      opts.Mode,
		timeout:   opts.SubmitTimeout,
		now:       opts.Now,
		logger:    opts.Logger,
		queue:     NewQueue[T](),
		display:   DisplayLoading,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Load fetches the deck. The display is Loading while the call is in
// flight. A result that arrives after Close, or after a newer Load
// started, is discarded.
func (c *Controller[T]) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.loadSeq++
	seq := c.loadSeq
	c.display = DisplayLoading
	c.loadErr = nil
	c.mu.Unlock()

	items, err := c.loader.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.loadSeq {
		c.logger.Debug("discarding stale deck load", zap.Int("items", len(items)), zap.Error(err))
		return nil
	}

	if err != nil {
		c.display = DisplayError
		c.loadErr = err
		return err
	}

	c.queue.Reset(items)
	c.settleLocked()

	c.logger.Debug("deck loaded", zap.Int("items", c.queue.Len()), zap.Int("remaining", c.queue.Remaining()))

	return nil
}

// Drag moves the current card. It is ignored while a card is resolving or
// when there is nothing to drag.
func (c *Controller[T]) Drag(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.phase == PhaseResolving || c.display != DisplayReady {
		return
	}

	c.phase = PhaseDragging
	c.pos = point{x: dx, y: dy}
}

// Release ends a drag. It reports whether the card started resolving; a
// drag that does not exceed the threshold springs back to idle.
func (c *Controller[T]) Release() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.phase != PhaseDragging {
		return false
	}

	if !c.geometry.Exceeds(c.pos.x) {
		c.phase = PhaseIdle
		c.pos = point{}
		return false
	}

	dir := Left
	if c.pos.x > 0 {
		dir = Right
	}
	c.resolveLocked(dir)

	return true
}

// Press resolves the current card from a button, skipping the drag.
func (c *Controller[T]) Press(dir Direction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.phase == PhaseResolving || c.display != DisplayReady {
		return false
	}

	c.resolveLocked(dir)
	return true
}

func (c *Controller[T]) resolveLocked(dir Direction) {
	c.phase = PhaseResolving
	c.direction = dir
	c.pos = point{x: c.geometry.ExitTarget(dir)}
}

// Finish is called when the exit animation completes and commits the
// decision for the resolving card.
func (c *Controller[T]) Finish(ctx context.Context) (Decision, error) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return Decision{}, ErrClosed
	}
	if c.phase != PhaseResolving {
		c.mu.Unlock()
		return Decision{}, ErrNotResolving
	}
	if c.committing {
		c.mu.Unlock()
		return Decision{}, ErrCommitting
	}

	card, ok := c.queue.Current()
	if !ok {
		c.phase = PhaseIdle
		c.pos = point{}
		c.settleLocked()
		c.mu.Unlock()
		return Decision{}, ErrNotResolving
	}

	d := Decision{ID: card.CardID(), Action: c.direction.Action(), At: c.now()}

	if c.mode == Confirmed {
		c.committing = true
		c.mu.Unlock()
		return d, c.commitConfirmed(ctx, d)
	}

	defer c.mu.Unlock()

	c.recordLocked(d)
	c.submitAsyncLocked(d)

	return d, nil
}

func (c *Controller[T]) recordLocked(d Decision) {
	if !c.queue.Decide(d) {
		c.logger.Debug("decision already recorded", logger.Decision(d.ID, string(d.Action))...)
	}

	c.phase = PhaseIdle
	c.pos = point{}
	c.settleLocked()
}

func (c *Controller[T]) submitAsyncLocked(d Decision) {
	if c.submitter == nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx := c.ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		if err := c.submitter.Submit(ctx, d); err != nil {
			c.logger.Debug("decision submission failed", append(logger.Decision(d.ID, string(d.Action)), zap.Error(err))...)
			return
		}
		c.logger.Debug("decision submitted", logger.Decision(d.ID, string(d.Action))...)
	}()
}

// commitConfirmed submits while the card stays resolving, so no other
// gesture can start until the backend has answered.
func (c *Controller[T]) commitConfirmed(ctx context.Context, d Decision) error {
	var err error
	if c.submitter != nil {
		err = c.submitter.Submit(ctx, d)
	}

	c.mu.Lock()
	c.committing = false
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	if err != nil {
		c.phase = PhaseIdle
		c.pos = point{}
		c.mu.Unlock()
		return fmt.Errorf("submitting %s for %d: %w", d.Action, d.ID, err)
	}

	c.recordLocked(d)
	c.mu.Unlock()

	c.logger.Debug("decision confirmed", logger.Decision(d.ID, string(d.Action))...)

	if err := c.Load(ctx); err != nil && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("reloading after %s: %w", d.Action, err)
	}

	return nil
}

// settleLocked derives the display from the queue once a load succeeded.
func (c *Controller[T]) settleLocked() {
	if c.display == DisplayError || (c.display == DisplayLoading && c.loadSeq == 0) {
		return
	}
	if c.queue.Remaining() == 0 {
		c.display = DisplayEmpty
		return
	}
	c.display = DisplayReady
}

// Close cancels background submissions and waits for them to return.
// Later calls are no-ops and late load results are dropped.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Controller[T]) Current() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.queue.Current()
}

func (c *Controller[T]) Next() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.queue.Next()
}

func (c *Controller[T]) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.queue.Remaining()
}

func (c *Controller[T]) Decisions() []Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.queue.Decisions()
}

func (c *Controller[T]) IsDecided(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.queue.IsDecided(id)
}

func (c *Controller[T]) Display() Display {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.display
}

// Err is the last load error, set while the display is DisplayError.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loadErr
}

func (c *Controller[T]) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Position is the current card offset.
func (c *Controller[T]) Position() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pos.x, c.pos.y
}

// Frame returns the render parameters for the current position.
func (c *Controller[T]) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Animate(c.pos.x, c.pos.y, c.geometry.Width)
}

func (c *Controller[T]) Geometry() Geometry {
	return c.geometry
}
