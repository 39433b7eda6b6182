package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/ai"
	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/logger"
	"github.com/jobswipe/jobswipe/internal/utils"
)

const (
	systemInstruction = "You are a careful recruiting assistant. Answer with a single JSON object."

	defaultMaxLogLength  = 200
	maxPreferenceRunes   = 500
	noPreferencesMessage = "  - none"
)

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
}

type Matcher struct {
	generator   contentGenerator
	minScore    float64
	maxLogLen   int
	preferences string
	logger      *zap.Logger
}

func NewMatcher(generator contentGenerator, minScore float64, maxLogLength int, log *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Matcher{
		generator: generator,
		minScore:  minScore,
		maxLogLen: maxLogLength,
		logger:    log,
	}
}

// SetPreferences adds free-form candidate preferences to every prompt.
func (m *Matcher) SetPreferences(text string) {
	m.preferences = text
}

func (m *Matcher) Evaluate(ctx context.Context, profile *api.Profile, job *api.Job) (*ai.FitAssessment, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile is required")
	}
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}

	profileJSON, err := json.MarshalIndent(profilePayload(profile), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile payload: %w", err)
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	prompt := buildPrompt(string(profileJSON), string(jobJSON), sanitizePreferences(m.preferences))

	m.logger.Debug("gemini generate content request",
		zap.Int(logger.FieldJobID, job.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("gemini generate content response",
		zap.Int(logger.FieldJobID, job.ID),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if m.minScore > 0 && assessment.Score < m.minScore {
		m.logger.Debug("set fit to false by score threshold",
			zap.Int(logger.FieldJobID, job.ID),
			zap.Float64("score", assessment.Score),
			zap.Float64("threshold", m.minScore),
		)
		assessment.Fit = false
	}

	assessment.Raw = raw
	return assessment, nil
}

// profilePayload leaves out contact details the model does not need.
func profilePayload(p *api.Profile) map[string]any {
	payload := map[string]any{
		"skills": p.Skills,
		"bio":    p.Bio,
	}
	if p.ExperienceYears != nil {
		payload["experience_years"] = *p.ExperienceYears
	}
	return payload
}

func buildPrompt(profileJSON, jobJSON, preferences string) string {
	replacer := strings.NewReplacer(
		"{{PROFILE_JSON}}", profileJSON,
		"{{JOB_JSON}}", jobJSON,
		"{{PREFERENCES}}", preferences,
	)
	return replacer.Replace(promptTemplate)
}

// sanitizePreferences renders user text as a bullet list that cannot pose
// as a section header or a bracketed role marker.
func sanitizePreferences(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.NewReplacer("[", "(", "]", ")", "{", "(", "}", ")").Replace(text)

	var (
		lines []string
		used  int
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}

		left := maxPreferenceRunes - used
		if left <= 0 {
			break
		}
		if utf8.RuneCountInString(line) > left {
			line = string([]rune(line)[:left])
		}
		used += utf8.RuneCountInString(line)

		lines = append(lines, "  - "+line)
	}

	if len(lines) == 0 {
		return noPreferencesMessage
	}
	return strings.Join(lines, "\n")
}

func parseResponse(raw string) (*ai.FitAssessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &ai.FitAssessment{
		Fit:     coerceBool(data["fit"]),
		Score:   score,
		Reason:  coerceString(data["reason"]),
		Message: coerceString(data["message"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(strings.Trim(raw, "`"))
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
