// Package llm is the gateway between the interview components and the
// language model providers. Providers live in sub-packages and implement
// Generator and, where the provider supports it, Embedder.
package llm

import (
	"context"
)

// Provider names accepted in configuration.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Request is a single system + user prompt exchange.
type Request struct {
	System string
	User   string
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Chunk is one piece of a streamed response. A chunk carrying Err is the last
// one sent on the channel.
type Chunk struct {
	Text string
	Err  error
}

// Generator produces text, either in one call or as a stream of chunks.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Stream returns a channel that is closed when generation finishes.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
	Model() string
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbeddingModel() string
}

// Collect drains a stream into a single string.
func Collect(ch <-chan Chunk) (string, error) {
	var out []byte
	for chunk := range ch {
		if chunk.Err != nil {
			return string(out), chunk.Err
		}
		out = append(out, chunk.Text...)
	}
	return string(out), nil
}

// Send delivers a chunk unless ctx is done. Provider stream goroutines use it
// so that an abandoned consumer never blocks them forever.
func Send(ctx context.Context, ch chan<- Chunk, chunk Chunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
