// Package outbox persists swipe decisions and delivers them with retries,
// so a decision made while the backend is unreachable is sent later
// instead of being lost.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/logger"
	"github.com/jobswipe/jobswipe/internal/session"
	"github.com/jobswipe/jobswipe/internal/swipe"
	"github.com/jobswipe/jobswipe/internal/utils"
)

// StorageKey is where pending entries live in the session storage.
const StorageKey = "outbox"

const (
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = time.Minute
	defaultMaxAttempts = 8
)

var waitFor = utils.WaitFor

// Entry is a decision waiting for delivery.
type Entry struct {
	Decision  swipe.Decision `json:"decision"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"last_error,omitempty"`
}

type Options struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Logger      *zap.Logger
}

type Outbox struct {
	storage session.Storage
	sender  swipe.Submitter
	opts    Options
	logger  *zap.Logger

	mu      sync.Mutex
	pending []Entry

	flushMu sync.Mutex
	notify  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ swipe.Submitter = (*Outbox)(nil)

// Open restores entries left over from a previous run.
func Open(ctx context.Context, storage session.Storage, sender swipe.Submitter, opts Options) (*Outbox, error) {
	if storage == nil || sender == nil {
		return nil, errors.New("outbox needs storage and a sender")
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	o := &Outbox{
		storage: storage,
		sender:  sender,
		opts:    opts,
		logger:  opts.Logger,
		notify:  make(chan struct{}, 1),
	}

	raw, ok, err := storage.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("reading outbox: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &o.pending); err != nil {
			o.logger.Warn("discarding unreadable outbox", zap.Error(err))
			o.pending = nil
		}
	}

	if len(o.pending) > 0 {
		o.logger.Info("restored undelivered decisions", zap.Int("count", len(o.pending)))
	}

	return o, nil
}

// Submit queues d for delivery. It returns once the entry is persisted.
func (o *Outbox) Submit(ctx context.Context, d swipe.Decision) error {
	o.mu.Lock()
	o.pending = append(o.pending, Entry{Decision: d})
	err := o.persistLocked(ctx)
	o.mu.Unlock()

	if err != nil {
		return fmt.Errorf("persisting decision: %w", err)
	}

	select {
	case o.notify <- struct{}{}:
	default:
	}

	return nil
}

// Pending returns a copy of the undelivered entries in submission order.
func (o *Outbox) Pending() []Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Entry, len(o.pending))
	copy(out, o.pending)
	return out
}

// Flush delivers pending entries in order and stops at the first
// retryable failure so later decisions never overtake earlier ones.
// Entries the backend rejects outright, or that ran out of attempts, are
// dropped.
func (o *Outbox) Flush(ctx context.Context) error {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	for {
		o.mu.Lock()
		if len(o.pending) == 0 {
			o.mu.Unlock()
			return nil
		}
		head := o.pending[0]
		o.mu.Unlock()

		fields := logger.Decision(head.Decision.ID, string(head.Decision.Action))

		err := o.sender.Submit(ctx, head.Decision)
		switch {
		case err == nil:
			o.logger.Debug("decision delivered", fields...)
			if perr := o.popHead(ctx); perr != nil {
				return perr
			}
		case permanent(err):
			o.logger.Warn("dropping decision rejected by backend", append(fields, zap.Error(err))...)
			if perr := o.popHead(ctx); perr != nil {
				return perr
			}
		default:
			attempts, perr := o.failHead(ctx, err)
			if perr != nil {
				return perr
			}
			if attempts >= o.opts.MaxAttempts {
				o.logger.Warn("dropping decision after retries", append(fields, zap.Int("attempts", attempts), zap.Error(err))...)
				if perr := o.popHead(ctx); perr != nil {
					return perr
				}
				continue
			}
			return err
		}
	}
}

func (o *Outbox) popHead(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = o.pending[1:]
	return o.persistLocked(ctx)
}

func (o *Outbox) failHead(ctx context.Context, cause error) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending[0].Attempts++
	o.pending[0].LastError = cause.Error()
	return o.pending[0].Attempts, o.persistLocked(ctx)
}

func (o *Outbox) persistLocked(ctx context.Context) error {
	if len(o.pending) == 0 {
		return o.storage.Delete(ctx, StorageKey)
	}

	data, err := json.Marshal(o.pending)
	if err != nil {
		return err
	}
	return o.storage.Set(ctx, StorageKey, string(data))
}

// permanent reports failures a retry cannot fix: the backend understood
// the request and refused it.
func permanent(err error) bool {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, api.ErrAuth) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500
}

// Start delivers in the background until ctx is done or Close is called.
// Failed deliveries are retried with exponential backoff.
func (o *Outbox) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		failures := 0
		for {
			err := o.Flush(ctx)
			if ctx.Err() != nil {
				return
			}

			if err != nil {
				delay := utils.Backoff(o.opts.BaseDelay, o.opts.MaxDelay, failures)
				failures++
				o.logger.Debug("outbox delivery failed, backing off", zap.Duration("delay", delay), zap.Error(err))
				if waitFor(ctx, delay) != nil {
					return
				}
				continue
			}
			failures = 0

			select {
			case <-ctx.Done():
				return
			case <-o.notify:
			}
		}
	}()
}

// Close stops the background worker. Undelivered entries stay persisted.
func (o *Outbox) Close() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}
