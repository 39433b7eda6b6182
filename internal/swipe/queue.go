package swipe

import (
	"time"

	"github.com/jobswipe/jobswipe/internal/api"
)

// Card is anything that can be swiped. Ids must be unique within a feed.
type Card interface {
	CardID() int
}

// Decision is a recorded like or dislike. It is final within a session.
type Decision struct {
	ID     int        `json:"id"`
	Action api.Action `json:"action"`
	At     time.Time  `json:"at"`
}

// Queue holds the cards in feed order plus the decided set. Current is
// always the earliest undecided card, so a decided id is never shown again
// even when a reload returns it. Queue is not safe for concurrent use.
type Queue[T Card] struct {
	items   []T
	decided map[int]api.Action
	order   []Decision
}

func NewQueue[T Card]() *Queue[T] {
	return &Queue[T]{decided: make(map[int]api.Action)}
}

// Reset replaces the cards, keeping the first occurrence of each id. The
// decided set carries over.
func (q *Queue[T]) Reset(items []T) {
	seen := make(map[int]struct{}, len(items))
	q.items = make([]T, 0, len(items))

	for _, item := range items {
		id := item.CardID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		q.items = append(q.items, item)
	}
}

func (q *Queue[T]) Current() (T, bool) {
	return q.undecided(0)
}

func (q *Queue[T]) Next() (T, bool) {
	return q.undecided(1)
}

func (q *Queue[T]) undecided(skip int) (T, bool) {
	for _, item := range q.items {
		if q.IsDecided(item.CardID()) {
			continue
		}
		if skip == 0 {
			return item, true
		}
		skip--
	}

	var zero T
	return zero, false
}

// Remaining counts undecided cards.
func (q *Queue[T]) Remaining() int {
	n := 0
	for _, item := range q.items {
		if !q.IsDecided(item.CardID()) {
			n++
		}
	}
	return n
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) IsDecided(id int) bool {
	_, ok := q.decided[id]
	return ok
}

// Decide records a decision. It returns false and records nothing when the
// id was already decided.
func (q *Queue[T]) Decide(d Decision) bool {
	if q.IsDecided(d.ID) {
		return false
	}

	q.decided[d.ID] = d.Action
	q.order = append(q.order, d)
	return true
}

// Decisions returns the decisions in the order they were made.
func (q *Queue[T]) Decisions() []Decision {
	out := make([]Decision, len(q.order))
	copy(out, q.order)
	return out
}
