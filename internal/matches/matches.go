// Package matches lists matches and lets a recruiter answer pending likes.
// Every successful answer is followed by a full reload of the list, so the
// local view never drifts from the backend.
package matches

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/logger"
	"github.com/jobswipe/jobswipe/internal/swipe"
)

var ErrInvalidStatus = errors.New("status must be accepted or rejected")

// Backend is the part of the API the responder uses.
type Backend interface {
	Matches(ctx context.Context) ([]*api.Match, error)
	SetMatchStatus(ctx context.Context, matchID int, status api.MatchStatus) (*api.Match, error)
}

type Responder struct {
	backend Backend
	logger  *zap.Logger

	// mu serialises answers so they reach the backend in the order given.
	mu sync.Mutex

	itemsMu sync.RWMutex
	items   []*api.Match
	loaded  bool
}

func NewResponder(backend Backend, log *zap.Logger) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Responder{backend: backend, logger: log}
}

// Load replaces the local list with the backend's.
func (r *Responder) Load(ctx context.Context) ([]*api.Match, error) {
	items, err := r.backend.Matches(ctx)
	if err != nil {
		return nil, err
	}

	r.itemsMu.Lock()
	r.items = items
	r.loaded = true
	r.itemsMu.Unlock()

	r.logger.Debug("matches loaded", zap.Int("count", len(items)))

	return r.Items(), nil
}

func (r *Responder) Loaded() bool {
	r.itemsMu.RLock()
	defer r.itemsMu.RUnlock()

	return r.loaded
}

// Items returns the last loaded list.
func (r *Responder) Items() []*api.Match {
	return r.filter(func(*api.Match) bool { return true })
}

func (r *Responder) Pending() []*api.Match {
	return r.filter(func(m *api.Match) bool { return m.Status == api.MatchPending })
}

func (r *Responder) Accepted() []*api.Match {
	return r.filter(func(m *api.Match) bool { return m.Status == api.MatchAccepted })
}

func (r *Responder) Find(matchID int) (*api.Match, bool) {
	for _, m := range r.Items() {
		if m.ID == matchID {
			return m, true
		}
	}
	return nil, false
}

func (r *Responder) filter(keep func(*api.Match) bool) []*api.Match {
	r.itemsMu.RLock()
	defer r.itemsMu.RUnlock()

	out := make([]*api.Match, 0, len(r.items))
	for _, m := range r.items {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// SetStatus answers a pending like and reloads the list. Errors from the
// backend are returned and leave the local list untouched.
func (r *Responder) SetStatus(ctx context.Context, matchID int, status api.MatchStatus) error {
	if status != api.MatchAccepted && status != api.MatchRejected {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.backend.SetMatchStatus(ctx, matchID, status); err != nil {
		return err
	}

	r.logger.Info("match answered", zap.Int(logger.FieldMatchID, matchID), zap.String("status", string(status)))

	if _, err := r.Load(ctx); err != nil {
		return fmt.Errorf("reloading matches: %w", err)
	}

	return nil
}

// LoadPending adapts the responder into a swipe deck of pending likes.
func (r *Responder) LoadPending(ctx context.Context) ([]*api.Match, error) {
	if _, err := r.Load(ctx); err != nil {
		return nil, err
	}
	return r.Pending(), nil
}

// Submit maps a swipe on a pending like to accept (right) or reject
// (left). Use it with swipe.Confirmed so each answer is awaited.
func (r *Responder) Submit(ctx context.Context, d swipe.Decision) error {
	status := api.MatchRejected
	if d.Action == api.ActionLike {
		status = api.MatchAccepted
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.backend.SetMatchStatus(ctx, d.ID, status); err != nil {
		return err
	}

	r.logger.Info("match answered", zap.Int(logger.FieldMatchID, d.ID), zap.String("status", string(status)))
	return nil
}

// Deck builds a confirmed-mode swipe deck over the pending likes.
func (r *Responder) Deck(opts swipe.Options) *swipe.Controller[*api.Match] {
	opts.Mode = swipe.Confirmed
	return swipe.New[*api.Match](swipe.LoaderFunc[*api.Match](r.LoadPending), r, opts)
}
