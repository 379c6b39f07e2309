package gemini

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/spigell/panel-interview/internal/llm"
)

type fakeModels struct {
	mu      sync.Mutex
	configs []*genai.GenerateContentConfig
	models  []string

	response *genai.GenerateContentResponse
	err      error
	stream   []string
	embed    *genai.EmbedContentResponse
}

func (f *fakeModels) record(model string, cfg *genai.GenerateContentConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	f.configs = append(f.configs, cfg)
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.record(model, cfg)
	return f.response, f.err
}

func (f *fakeModels) GenerateContentStream(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.record(model, cfg)
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, text := range f.stream {
			if !yield(textResponse(text), nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, _ []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.record(model, nil)
	return f.embed, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGenerateSetsSystemInstructionAndJSON(t *testing.T) {
	fake := &fakeModels{response: textResponse(`{"panel": []}`)}
	client := newWithModels(fake, "", "")

	out, err := client.Generate(context.Background(), llm.Request{System: "be strict", User: "design a panel", JSON: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"panel": []}` {
		t.Fatalf("unexpected output %q", out)
	}

	if fake.models[0] != defaultModel {
		t.Fatalf("expected default model, got %q", fake.models[0])
	}
	cfg := fake.configs[0]
	if cfg.ResponseMIMEType != "application/json" {
		t.Fatalf("expected json mime type, got %q", cfg.ResponseMIMEType)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be strict" {
		t.Fatalf("expected system instruction to be set")
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	client := newWithModels(&fakeModels{response: &genai.GenerateContentResponse{}}, "gemini-pro", "")

	if _, err := client.Generate(context.Background(), llm.Request{User: "x"}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestStreamForwardsChunksAndErrors(t *testing.T) {
	apiErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	fake := &fakeModels{stream: []string{"Tell me ", "about channels."}, err: apiErr}
	client := newWithModels(fake, "", "")

	ch, err := client.Stream(context.Background(), llm.Request{User: "ask"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := llm.Collect(ch)
	if text != "Tell me about channels." {
		t.Fatalf("unexpected text %q", text)
	}
	var got genai.APIError
	if !errors.As(err, &got) || got.Code != http.StatusInternalServerError {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestEmbedConvertsValues(t *testing.T) {
	fake := &fakeModels{embed: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.5, -1, 2}}},
	}}
	client := newWithModels(fake, "", "custom-embedding")

	vec, err := client.Embed(context.Background(), "job description")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -1 || vec[2] != 2 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if fake.models[0] != "custom-embedding" {
		t.Fatalf("expected embedding model, got %q", fake.models[0])
	}

	fake.embed = &genai.EmbedContentResponse{}
	if _, err := client.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for missing embeddings")
	}
}
