package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/logger"
	"github.com/spigell/panel-interview/internal/metrics"
	"github.com/spigell/panel-interview/internal/utils"
)

const defaultMaxLogLength = 200

// Gateway is constructed once at startup and shared by every component that
// talks to a model. It adds logging, metrics and error typing on top of the
// configured providers.
type Gateway struct {
	generator         Generator
	embedder          Embedder
	provider          string
	embeddingProvider string
	recorder          metrics.Recorder
	logger            *zap.Logger
	maxLogLen         int
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithProviders sets the provider names used in logs, metrics and errors.
func WithProviders(generation, embedding string) Option {
	return func(g *Gateway) {
		g.provider = generation
		g.embeddingProvider = embedding
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(g *Gateway) { g.recorder = metrics.OrNop(r) }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithMaxLogLength limits prompt and response previews in debug logs.
func WithMaxLogLength(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxLogLen = n
		}
	}
}

// NewGateway wires a generator and an embedder. Either may be nil when the
// process never needs it; calls then fail with a typed error.
func NewGateway(generator Generator, embedder Embedder, opts ...Option) *Gateway {
	g := &Gateway{
		generator: generator,
		embedder:  embedder,
		recorder:  metrics.Nop{},
		logger:    zap.NewNop(),
		maxLogLen: defaultMaxLogLength,
	}
	for _, opt := range opts {
		opt(g)
	}

	model, embeddingModel := "", ""
	if generator != nil {
		model = generator.Model()
	}
	if embedder != nil {
		embeddingModel = embedder.EmbeddingModel()
	}
	g.logger = logger.WithFields(g.logger, logger.LLMFields(g.provider, model)...).
		With(zap.String("embedding_model", embeddingModel))

	return g
}

var errNotConfigured = errors.New("provider is not configured")

// Generate returns the whole response text.
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	if g.generator == nil {
		return "", &GenerationError{Provider: g.provider, Err: errNotConfigured}
	}

	g.logRequest("generate", req)
	started := time.Now()
	text, err := g.generator.Generate(ctx, req)
	g.recorder.ObserveLLM(g.provider, "generate", err == nil, time.Since(started))
	if err != nil {
		g.logger.Warn("generation failed", zap.Error(err))
		return "", g.generationError(err)
	}

	g.logger.Debug("generation response",
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, g.maxLogLen)),
	)
	return text, nil
}

// Stream forwards provider chunks as they arrive. Errors, whether returned
// directly or carried by a chunk, are typed as GenerationError.
func (g *Gateway) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if g.generator == nil {
		return nil, &GenerationError{Provider: g.provider, Err: errNotConfigured}
	}

	g.logRequest("stream", req)
	started := time.Now()
	upstream, err := g.generator.Stream(ctx, req)
	if err != nil {
		g.recorder.ObserveLLM(g.provider, "stream", false, time.Since(started))
		g.logger.Warn("opening stream failed", zap.Error(err))
		return nil, g.generationError(err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		var chunks int
		for chunk := range upstream {
			if chunk.Err != nil {
				g.recorder.ObserveLLM(g.provider, "stream", false, time.Since(started))
				g.logger.Warn("stream failed", zap.Int("chunks", chunks), zap.Error(chunk.Err))
				Send(ctx, out, Chunk{Err: g.generationError(chunk.Err)})
				return
			}
			chunks++
			if !Send(ctx, out, chunk) {
				g.recorder.ObserveLLM(g.provider, "stream", false, time.Since(started))
				return
			}
		}
		g.recorder.ObserveLLM(g.provider, "stream", true, time.Since(started))
		g.logger.Debug("stream finished", zap.Int("chunks", chunks))
	}()

	return out, nil
}

// Embed returns the embedding of text. An empty vector is an error.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float64, error) {
	if g.embedder == nil {
		return nil, &EmbeddingError{Provider: g.embeddingProvider, Err: errNotConfigured}
	}

	started := time.Now()
	vec, err := g.embedder.Embed(ctx, text)
	if err == nil && len(vec) == 0 {
		err = errors.New("provider returned an empty vector")
	}
	g.recorder.ObserveLLM(g.embeddingProvider, "embed", err == nil, time.Since(started))
	if err != nil {
		g.logger.Warn("embedding failed", zap.Error(err))
		var embErr *EmbeddingError
		if errors.As(err, &embErr) {
			return nil, err
		}
		return nil, &EmbeddingError{Provider: g.embeddingProvider, Err: err}
	}

	g.logger.Debug("embedding computed",
		zap.Int("text_length", utf8.RuneCountInString(text)),
		zap.Int("dimensions", len(vec)),
	)
	return vec, nil
}

// Model returns the generation model name.
func (g *Gateway) Model() string {
	if g.generator == nil {
		return ""
	}
	return g.generator.Model()
}

func (g *Gateway) logRequest(op string, req Request) {
	prompt := req.System + "\n\n" + req.User
	g.logger.Debug(fmt.Sprintf("%s request", op),
		zap.Bool("json", req.JSON),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(req.User, g.maxLogLen)),
	)
}

func (g *Gateway) generationError(err error) error {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return err
	}
	return &GenerationError{Provider: g.provider, Err: err}
}
