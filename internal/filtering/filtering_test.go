package filtering

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jobswipe/jobswipe/internal/ai"
	"github.com/jobswipe/jobswipe/internal/api"
)

type stubMatcher struct {
	verdicts map[int]*ai.FitAssessment
	errs     map[int]error
	calls    []int
}

func (s *stubMatcher) Evaluate(_ context.Context, _ *api.Profile, job *api.Job) (*ai.FitAssessment, error) {
	s.calls = append(s.calls, job.ID)
	if err := s.errs[job.ID]; err != nil {
		return nil, err
	}
	if v, ok := s.verdicts[job.ID]; ok {
		return v, nil
	}
	return &ai.FitAssessment{Fit: true, Score: 1}, nil
}

func sampleJobs() *api.Jobs {
	return api.NewJobs([]*api.Job{
		{ID: 1, Title: "Backend", CompanyName: "Acme"},
		{ID: 2, Title: "Frontend", CompanyName: "Globex"},
		{ID: 3, Title: "Data", CompanyName: " acme "},
		{ID: 4, Title: "Ops", CompanyName: "Initech"},
	})
}

func TestRunCompaniesAndExcludeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	excluded := ToExcluded(api.NewJobs([]*api.Job{{ID: 4, Title: "Ops"}}), time.Now())
	require.NoError(t, excluded.ToFile(path))

	cfg := &Config{Companies: []string{"ACME", " "}, ExcludeFile: path}
	deps := Deps{Logger: zaptest.NewLogger(t)}

	result, err := Run(context.Background(), cfg, deps, Default(), sampleJobs())
	require.NoError(t, err)

	assert.Equal(t, []int{2}, result.Jobs.IDs())
	assert.Empty(t, result.Assessments)
}

func TestRunKeepsOrderWithoutConfig(t *testing.T) {
	result, err := Run(context.Background(), nil, Deps{}, Default(), sampleJobs())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, result.Jobs.IDs())
}

func TestAIFitFilter(t *testing.T) {
	matcher := &stubMatcher{
		verdicts: map[int]*ai.FitAssessment{
			2: {Fit: false, Score: 0.1, Reason: "no overlap"},
			3: {Fit: true, Score: 0.8, Message: "Great match"},
		},
		errs: map[int]error{4: errors.New("quota")},
	}

	cfg := &Config{AI: &AIConfig{Enabled: true, Gemini: &GeminiConfig{Model: "gemini-test"}}}
	deps := Deps{Logger: zaptest.NewLogger(t), Profile: &api.Profile{Skills: "Go"}, Matcher: matcher}

	result, err := Run(context.Background(), cfg, deps, []Filter{NewAIFit()}, sampleJobs())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 4}, result.Jobs.IDs())
	assert.Equal(t, []int{1, 2, 3, 4}, matcher.calls)
	require.Contains(t, result.Assessments, 3)
	assert.Equal(t, "Great match", result.Assessments[3].Message)
	assert.NotContains(t, result.Assessments, 4)
}

func TestAIFitDisabledWithoutConfig(t *testing.T) {
	matcher := &stubMatcher{}
	steps := []Filter{NewAIFit()}

	_, err := Run(context.Background(), &Config{}, Deps{Matcher: matcher}, steps, sampleJobs())
	require.NoError(t, err)

	assert.Empty(t, matcher.calls)
	statuses := Describe(steps)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Enabled)
	assert.Equal(t, "ai is not enabled", statuses[0].Reason)
}

func TestAIFitValidation(t *testing.T) {
	cfg := &Config{AI: &AIConfig{Enabled: true}}
	_, err := Run(context.Background(), cfg, Deps{}, []Filter{NewAIFit()}, sampleJobs())
	assert.Error(t, err)

	cfg.AI.Gemini = &GeminiConfig{Model: " "}
	_, err = Run(context.Background(), cfg, Deps{}, []Filter{NewAIFit()}, sampleJobs())
	assert.Error(t, err)
}

func TestAIFitRequiresProfile(t *testing.T) {
	cfg := &Config{AI: &AIConfig{Enabled: true, Gemini: &GeminiConfig{Model: "m"}}}
	_, err := Run(context.Background(), cfg, Deps{Matcher: &stubMatcher{}}, []Filter{NewAIFit()}, sampleJobs())
	assert.Error(t, err)
}

func TestDisableByName(t *testing.T) {
	steps := Default()
	DisableByName(steps, "ai_fit", "flag")

	statuses := Describe(steps)
	require.Len(t, statuses, 3)
	assert.Equal(t, "companies", statuses[0].Name)
	assert.True(t, statuses[0].Enabled)
	assert.False(t, statuses[2].Enabled)
	assert.Equal(t, "flag", statuses[2].Reason)
}

func TestExcludedJobsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")

	empty, err := LoadExcludedJobs(path)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	list := ToExcluded(api.NewJobs([]*api.Job{{ID: 5, CompanyName: "Acme"}, {ID: 6}}), at)
	assert.Equal(t, 2, empty.Append(list))
	assert.Equal(t, 0, empty.Append(list))
	require.NoError(t, empty.ToFile(path))

	// A shorter list must not leave stale bytes behind.
	short := &ExcludedJobs{Items: []*ExcludedJob{{ID: 5, ExcludedAt: at}}}
	require.NoError(t, short.ToFile(path))

	loaded, err := LoadExcludedJobs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, loaded.IDs())
	assert.True(t, at.Equal(loaded.Items[0].ExcludedAt))
}
