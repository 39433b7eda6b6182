package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	queue   []fakeResponse
	configs []*genai.GenerateContentConfig
	prompts []string
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.configs = append(f.configs, config)
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompts = append(f.prompts, p.Text)
		}
	}

	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.resp, next.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func noSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleep = original })
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	noSleep(t)

	models := &fakeModels{queue: []fakeResponse{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{resp: textResponse("retry ok")},
	}}
	g := &Generator{models: models, model: "gemini-test", maxRetries: 2, logger: zap.NewNop()}

	output, err := g.GenerateContent(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(models.configs) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.configs))
	}

	for _, cfg := range models.configs {
		if cfg == nil || cfg.SystemInstruction == nil {
			t.Fatal("expected system instruction to be set")
		}
		if got := cfg.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
	}
	for _, p := range models.prompts {
		if p != "message" {
			t.Fatalf("unexpected prompt: %q", p)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	noSleep(t)

	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models := &fakeModels{queue: []fakeResponse{{err: tempErr}, {err: tempErr}}}
	g := &Generator{models: models, model: "gemini-test", maxRetries: 2, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(models.configs) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.configs))
	}
	if models.configs[0] != nil {
		t.Fatal("expected no config without a system instruction")
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	models := &fakeModels{queue: []fakeResponse{{err: genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}}}}
	g := &Generator{models: models, model: "gemini-test", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if len(models.configs) != 1 {
		t.Fatalf("expected single call, got %d", len(models.configs))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{queue: []fakeResponse{{err: genai.APIError{Code: http.StatusBadRequest}}}}
	g := &Generator{models: models, model: "gemini-test", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(models.configs) != 1 {
		t.Fatalf("expected single call, got %d", len(models.configs))
	}
}

func TestGeneratorRejectsEmptyResponse(t *testing.T) {
	models := &fakeModels{queue: []fakeResponse{{resp: &genai.GenerateContentResponse{}}}}
	g := &Generator{models: models, model: "gemini-test", maxRetries: 1, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error for empty response")
	}
	if _, err := g.GenerateContent(context.Background(), "", "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
