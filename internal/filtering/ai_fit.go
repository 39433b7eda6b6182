package filtering

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/ai"
	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/logger"
)

type aiFitFilter struct {
	disabled    bool
	reason      string
	config      *AIConfig
	assessments map[int]*ai.FitAssessment
}

// NewAIFit creates the AI-based filtering step.
func NewAIFit() Filter {
	return &aiFitFilter{}
}

func (f *aiFitFilter) Name() string { return "ai_fit" }

func (f *aiFitFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *aiFitFilter) IsEnabled() bool { return !f.disabled }

func (f *aiFitFilter) Validate(cfg *Config) error {
	f.config = nil
	if cfg != nil {
		f.config = cfg.AI
	}
	if f.config == nil || !f.config.Enabled {
		f.Disable("ai is not enabled")
		return nil
	}
	if f.config.Gemini == nil {
		return errors.New("gemini configuration is required when ai filter is enabled")
	}
	if strings.TrimSpace(f.config.Gemini.Model) == "" {
		return errors.New("gemini model is required when ai filter is enabled")
	}
	return nil
}

func (f *aiFitFilter) Apply(ctx context.Context, deps Deps, jobs *api.Jobs) (*api.Jobs, Step, error) {
	initial := jobs.Len()
	if deps.Matcher == nil {
		deps.Logger.Info("ai matcher is not configured; skipping ai_fit filter")
		return jobs, Step{Initial: initial, Left: initial}, nil
	}
	if deps.Profile == nil {
		return jobs, Step{}, errors.New("profile is required for AI evaluation")
	}

	assessments, err := evaluateJobs(ctx, deps.Logger, deps.Matcher, deps.Profile, jobs)
	if err != nil {
		return jobs, Step{}, err
	}

	f.assessments = make(map[int]*ai.FitAssessment, len(assessments))
	maps.Copy(f.assessments, assessments)

	left := jobs.Len()
	return jobs, Step{Initial: initial, Dropped: initial - left, Left: left}, nil
}

func (f *aiFitFilter) Assessments() map[int]*ai.FitAssessment {
	if f.assessments == nil {
		return map[int]*ai.FitAssessment{}
	}
	return f.assessments
}

func (f *aiFitFilter) Status() Status {
	details := map[string]string{}
	if f.config != nil {
		details["minimum_fit_score"] = fmt.Sprintf("%.2f", f.config.MinimumFitScore)
		if f.config.Gemini != nil {
			details["model"] = f.config.Gemini.Model
			details["max_retries"] = strconv.Itoa(f.config.Gemini.MaxRetries)
		}
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// evaluateJobs drops jobs the matcher rejects. A job the matcher fails on
// stays in the feed without an assessment.
func evaluateJobs(ctx context.Context, log *zap.Logger, matcher ai.Matcher, profile *api.Profile, jobs *api.Jobs) (map[int]*ai.FitAssessment, error) {
	initial := jobs.Len()
	approved := make([]*api.Job, 0, initial)
	assessments := make(map[int]*ai.FitAssessment)

	for _, job := range jobs.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		assessment, err := matcher.Evaluate(ctx, profile, job)
		if err != nil {
			log.Warn("AI evaluation failed", zap.Int(logger.FieldJobID, job.ID), zap.Error(err))
			approved = append(approved, job)
			continue
		}

		if !assessment.Fit {
			log.Info("job rejected by AI provider",
				zap.Int(logger.FieldJobID, job.ID),
				zap.Float64("ai_score", assessment.Score),
				zap.String("reason", assessment.Reason),
			)
			continue
		}

		approved = append(approved, job)
		assessments[job.ID] = assessment
	}

	jobs.Items = approved

	log.Info("AI filtering completed",
		zap.Int("initial_jobs", initial),
		zap.Int("approved_jobs", len(approved)),
	)

	return assessments, nil
}
