// Package feed loads the deck for the signed-in role and runs it through
// the filtering pipeline.
package feed

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/ai"
	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/filtering"
	"github.com/jobswipe/jobswipe/internal/session"
	"github.com/jobswipe/jobswipe/internal/swipe"
)

// Source is the part of the API the loader reads from.
type Source interface {
	Feed(ctx context.Context) ([]*api.Job, error)
	MyJobs(ctx context.Context) ([]*api.Job, error)
}

type Options struct {
	Filters []filtering.Filter
	Config  *filtering.Config
	Matcher ai.Matcher
	Profile *api.Profile
	Logger  *zap.Logger
}

// Loader implements swipe.Loader for jobs. Jobseekers get the candidate
// feed; recruiters get their own postings.
type Loader struct {
	source Source
	role   session.Role
	opts   Options

	mu          sync.RWMutex
	assessments map[int]*ai.FitAssessment
	total       int
}

var _ swipe.Loader[*api.Job] = (*Loader)(nil)

func NewLoader(source Source, role session.Role, opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Loader{
		source:      source,
		role:        role,
		opts:        opts,
		assessments: make(map[int]*ai.FitAssessment),
	}
}

func (l *Loader) Load(ctx context.Context) ([]*api.Job, error) {
	var (
		items []*api.Job
		err   error
	)

	switch l.role {
	case session.RoleJobseeker:
		items, err = l.source.Feed(ctx)
	case session.RoleRecruiter:
		items, err = l.source.MyJobs(ctx)
	default:
		return nil, fmt.Errorf("loading feed: %w", session.ErrNotAuthenticated)
	}
	if err != nil {
		return nil, err
	}

	fetched := len(items)

	if len(l.opts.Filters) > 0 {
		result, err := filtering.Run(ctx, l.opts.Config, filtering.Deps{
			Logger:  l.opts.Logger,
			Profile: l.opts.Profile,
			Matcher: l.opts.Matcher,
		}, l.opts.Filters, api.NewJobs(items))
		if err != nil {
			return nil, fmt.Errorf("filtering feed: %w", err)
		}
		items = result.Jobs.Items

		l.mu.Lock()
		for id, a := range result.Assessments {
			l.assessments[id] = a
		}
		l.mu.Unlock()
	}

	l.mu.Lock()
	l.total = len(items)
	l.mu.Unlock()

	l.opts.Logger.Debug("feed loaded",
		zap.String("role", l.role.String()),
		zap.Int("fetched", fetched),
		zap.Int("kept", len(items)),
	)

	return items, nil
}

// Assessment returns the AI verdict for a job, if the AI filter scored it.
func (l *Loader) Assessment(jobID int) (*ai.FitAssessment, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.assessments[jobID]
	return a, ok
}

// Total is the size of the last loaded feed.
func (l *Loader) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.total
}

// Decider posts like/dislike decisions.
type Decider interface {
	Decide(ctx context.Context, jobID int, action api.Action) (*api.LikeResult, error)
}

// Submitter sends swipe decisions straight to the like endpoint.
func Submitter(d Decider) swipe.Submitter {
	return swipe.SubmitterFunc(func(ctx context.Context, dec swipe.Decision) error {
		_, err := d.Decide(ctx, dec.ID, dec.Action)
		return err
	})
}
