package resume

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/panel-interview/internal/extract"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/llm/llmtest"
)

func TestKeyPoints(t *testing.T) {
	fake := llmtest.New()
	fake.GenerateFunc = func(req llm.Request) (string, error) {
		return "\n- 6 years of Go\n- Led a payments migration\n", nil
	}
	analyzer := NewAnalyzer(fake, nil, 10, nil)

	notes, err := analyzer.KeyPoints(context.Background(), strings.Repeat("experience ", 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notes != "- 6 years of Go\n- Led a payments migration" {
		t.Fatalf("unexpected notes %q", notes)
	}

	req := fake.GenerateCalls[0]
	if req.System != systemPrompt {
		t.Fatalf("unexpected system prompt %q", req.System)
	}
	if !strings.Contains(req.User, "5-10 bullet points") {
		t.Fatalf("expected instruction in prompt, got %q", req.User)
	}
	if len(req.User) > len(instruction)+len("\n\nResume:\n")+40 {
		t.Fatalf("expected resume to be truncated, prompt has %d bytes", len(req.User))
	}
}

func TestKeyPointsErrors(t *testing.T) {
	analyzer := NewAnalyzer(llmtest.New(), nil, 0, nil)

	_, err := analyzer.KeyPoints(context.Background(), "  ")
	var extractErr *extract.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}

	fake := llmtest.New()
	cause := errors.New("boom")
	fake.GenerateFunc = func(llm.Request) (string, error) { return "", cause }
	analyzer = NewAnalyzer(fake, nil, 0, nil)
	if _, err := analyzer.KeyPoints(context.Background(), "resume"); !errors.Is(err, cause) {
		t.Fatalf("expected generator error, got %v", err)
	}
}
