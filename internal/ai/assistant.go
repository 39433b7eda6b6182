// Package ai defines how a job offer is scored against the user's profile.
package ai

import (
	"context"

	"github.com/jobswipe/jobswipe/internal/api"
)

type FitAssessment struct {
	Fit     bool    `json:"fit"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
	Message string  `json:"message,omitempty"`
	Raw     string  `json:"-"`
}

type Matcher interface {
	Evaluate(ctx context.Context, profile *api.Profile, job *api.Job) (*FitAssessment, error)
}
