// Package llmtest provides a scripted model for tests of components that
// depend on the LLM gateway.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spigell/panel-interview/internal/llm"
)

// Fake implements llm.Generator and llm.Embedder. Each hook is optional;
// the defaults return deterministic text and a fixed vector.
type Fake struct {
	// GenerateFunc is called by Generate.
	GenerateFunc func(req llm.Request) (string, error)
	// StreamFunc returns the chunks sent by Stream. A returned error is sent as the final chunk.
	StreamFunc func(req llm.Request) ([]string, error)
	// EmbedFunc is called by Embed.
	EmbedFunc func(text string) ([]float64, error)
	// Gate, when set, is received from before a stream is closed, letting tests
	// hold a question "in flight".
	Gate chan struct{}

	mu             sync.Mutex
	GenerateCalls  []llm.Request
	StreamCalls    []llm.Request
	EmbedCalls     []string
	streamsStarted chan struct{}
}

// New returns a Fake with default behavior.
func New() *Fake {
	return &Fake{streamsStarted: make(chan struct{}, 64)}
}

func (f *Fake) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.GenerateCalls = append(f.GenerateCalls, req)
	n := len(f.GenerateCalls)
	f.mu.Unlock()

	if f.GenerateFunc != nil {
		return f.GenerateFunc(req)
	}
	return fmt.Sprintf("response %d", n), nil
}

func (f *Fake) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	f.mu.Lock()
	f.StreamCalls = append(f.StreamCalls, req)
	n := len(f.StreamCalls)
	f.mu.Unlock()

	chunks := []string{"Question ", fmt.Sprintf("%d?", n)}
	var streamErr error
	if f.StreamFunc != nil {
		chunks, streamErr = f.StreamFunc(req)
	}

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		if f.streamsStarted != nil {
			select {
			case f.streamsStarted <- struct{}{}:
			default:
			}
		}
		for _, c := range chunks {
			if !llm.Send(ctx, ch, llm.Chunk{Text: c}) {
				return
			}
		}
		if f.Gate != nil {
			select {
			case <-f.Gate:
			case <-ctx.Done():
				return
			}
		}
		if streamErr != nil {
			llm.Send(ctx, ch, llm.Chunk{Err: streamErr})
		}
	}()
	return ch, nil
}

// StreamStarted is signalled each time a stream goroutine starts.
func (f *Fake) StreamStarted() <-chan struct{} {
	return f.streamsStarted
}

func (f *Fake) Embed(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	f.EmbedCalls = append(f.EmbedCalls, text)
	f.mu.Unlock()

	if f.EmbedFunc != nil {
		return f.EmbedFunc(text)
	}
	return []float64{1, 0, 0}, nil
}

func (f *Fake) Model() string          { return "fake-model" }
func (f *Fake) EmbeddingModel() string { return "fake-embedding" }

// Counts returns the number of Generate, Stream and Embed calls so far.
func (f *Fake) Counts() (generate, stream, embed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.GenerateCalls), len(f.StreamCalls), len(f.EmbedCalls)
}

// LastStream returns the most recent stream request.
func (f *Fake) LastStream() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.StreamCalls) == 0 {
		return llm.Request{}
	}
	return f.StreamCalls[len(f.StreamCalls)-1]
}

// PanelJSON renders a panel response with the given roles, in the shape the
// panel builder asks for.
func PanelJSON(roles ...string) string {
	parts := make([]string, 0, len(roles))
	for _, role := range roles {
		parts = append(parts, fmt.Sprintf(`{"role": %q, "focus": "%s topics", "persona": "You are the %s interviewer."}`, role, strings.ToLower(role), role))
	}
	return `{"panel": [` + strings.Join(parts, ",") + `]}`
}
