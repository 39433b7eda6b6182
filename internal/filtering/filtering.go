// Package filtering runs a sequence of filters over a loaded feed before
// it reaches the swipe deck.
package filtering

import (
	"context"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/ai"
	"github.com/jobswipe/jobswipe/internal/api"
)

// Filter represents a single filtering step applied to jobs.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, jobs *api.Jobs) (*api.Jobs, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger  *zap.Logger
	Profile *api.Profile
	Matcher ai.Matcher
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

type Config struct {
	Companies   []string
	ExcludeFile string
	AI          *AIConfig
}

type AIConfig struct {
	Enabled         bool
	Provider        string
	MinimumFitScore float64
	Gemini          *GeminiConfig
}

type GeminiConfig struct {
	Model        string
	MaxRetries   int
	MaxLogLength int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name" yaml:"name"`
	Enabled bool              `json:"enabled" yaml:"enabled"`
	Reason  string            `json:"reason,omitempty" yaml:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty" yaml:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Jobs        *api.Jobs
	Assessments map[int]*ai.FitAssessment
}

// Default returns the pipeline in the order it runs: cheap local filters
// first, the AI filter last so it scores as few jobs as possible.
func Default() []Filter {
	return []Filter{
		NewCompanies(),
		NewExcludeFile(),
		NewAIFit(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Validate checks every enabled filter against cfg.
func Validate(cfg *Config, steps []Filter) error {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// Run validates then applies the enabled filters in order. Feed order is
// preserved by every step.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, jobs *api.Jobs) (*Result, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if err := Validate(cfg, steps); err != nil {
		return nil, err
	}

	assessments := make(map[int]*ai.FitAssessment)
	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, jobs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		jobs = next

		if collector, ok := step.(interface {
			Assessments() map[int]*ai.FitAssessment
		}); ok {
			maps.Copy(assessments, collector.Assessments())
		}
	}

	return &Result{Jobs: jobs, Assessments: assessments}, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
