package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/feedback"
	"github.com/spigell/panel-interview/internal/interview"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/llm/anthropic"
	"github.com/spigell/panel-interview/internal/llm/gemini"
	"github.com/spigell/panel-interview/internal/llm/ollama"
	"github.com/spigell/panel-interview/internal/llm/openai"
	"github.com/spigell/panel-interview/internal/metrics"
	"github.com/spigell/panel-interview/internal/panel"
	"github.com/spigell/panel-interview/internal/resume"
	"github.com/spigell/panel-interview/internal/secrets"
	"github.com/spigell/panel-interview/internal/store"
)

// services is everything a server-side command needs, built once.
type services struct {
	registry   *prometheus.Registry
	recorder   metrics.Recorder
	store      store.Store
	model      *llm.Gateway
	panels     *panel.Builder
	interviews *interview.Controller
	feedback   *feedback.Exporter
	resumes    *resume.Analyzer
}

func newServices(ctx context.Context, config *Config, logger *zap.Logger) (*services, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheus(registry)

	generator, embedder, err := newProviders(ctx, &config.LLM)
	if err != nil {
		return nil, err
	}
	model := llm.NewGateway(generator, embedder,
		llm.WithProviders(config.LLM.Provider, config.LLM.EmbeddingProvider),
		llm.WithRecorder(recorder),
		llm.WithLogger(logger),
		llm.WithMaxLogLength(config.LLM.MaxLogLength),
	)

	tokens, err := llm.NewTokenBudget()
	if err != nil {
		// Truncation falls back to a character estimate.
		logger.Warn("token counter unavailable", zap.Error(err))
		tokens = nil
	}

	st, err := openStore(ctx, &config.Store, logger)
	if err != nil {
		return nil, err
	}

	return &services{
		registry: registry,
		recorder: recorder,
		store:    st,
		model:    model,
		panels: panel.NewBuilder(model, st, tokens, panel.Config{
			Threshold:   config.Panel.SimilarityThreshold,
			Size:        config.Panel.Size,
			MaxJDTokens: config.Panel.MaxJDTokens,
		}, recorder, logger),
		interviews: interview.NewController(model, st, interview.Config{
			QuestionsPerAgent: config.Interview.QuestionsPerAgent,
			TurnFeedback:      config.Interview.TurnFeedback,
			HistoryWindow:     config.Interview.HistoryWindow,
		}, recorder, logger),
		feedback: feedback.NewExporter(model, logger),
		resumes:  resume.NewAnalyzer(model, tokens, config.Resume.MaxTokens, logger),
	}, nil
}

func openStore(ctx context.Context, config *StoreConfig, logger *zap.Logger) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(config.Driver)) {
	case "", "sqlite":
		st, err := store.OpenSQLite(ctx, config.Path, logger.Named("store"))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store %q: %w", config.Path, err)
		}
		return st, nil
	case "memory":
		logger.Warn("using in-memory store, panels and interviews are lost on exit")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", config.Driver)
	}
}

// newProviders builds the generation and embedding clients. When both use
// the same provider one client serves both.
func newProviders(ctx context.Context, config *LLMConfig) (llm.Generator, llm.Embedder, error) {
	generation := strings.ToLower(strings.TrimSpace(config.Provider))
	embedding := strings.ToLower(strings.TrimSpace(config.EmbeddingProvider))
	if embedding == "" {
		embedding = generation
	}
	if embedding == llm.ProviderAnthropic {
		return nil, nil, fmt.Errorf("provider %q does not offer embeddings, choose another embedding-provider", embedding)
	}

	clients := map[string]any{}
	build := func(name string) (any, error) {
		if c, ok := clients[name]; ok {
			return c, nil
		}
		c, err := newProvider(ctx, name, config)
		if err != nil {
			return nil, err
		}
		clients[name] = c
		return c, nil
	}

	g, err := build(generation)
	if err != nil {
		return nil, nil, err
	}
	e, err := build(embedding)
	if err != nil {
		return nil, nil, err
	}

	generator, ok := g.(llm.Generator)
	if !ok {
		return nil, nil, fmt.Errorf("provider %q cannot generate text", generation)
	}
	embedder, ok := e.(llm.Embedder)
	if !ok {
		return nil, nil, fmt.Errorf("provider %q cannot embed text", embedding)
	}
	return generator, embedder, nil
}

func newProvider(ctx context.Context, name string, config *LLMConfig) (any, error) {
	switch name {
	case llm.ProviderGemini:
		c := config.Gemini
		if c == nil {
			c = &GeminiConfig{}
		}
		key, err := secrets.Load(secrets.Source{Name: "gemini api key", File: c.APIKeyFile, Value: c.APIKey, Env: "GEMINI_API_KEY"})
		if err != nil {
			return nil, err
		}
		return gemini.New(ctx, key, c.Model, c.EmbeddingModel)

	case llm.ProviderOpenAI:
		c := config.OpenAI
		if c == nil {
			c = &OpenAIConfig{}
		}
		key, err := secrets.Load(secrets.Source{Name: "openai api key", File: c.APIKeyFile, Value: c.APIKey, Env: "OPENAI_API_KEY"})
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			APIKey:         key,
			Model:          c.Model,
			EmbeddingModel: c.EmbeddingModel,
			BaseURL:        c.BaseURL,
			Timeout:        config.RequestTimeout,
		})

	case llm.ProviderAnthropic:
		c := config.Anthropic
		if c == nil {
			c = &AnthropicConfig{}
		}
		key, err := secrets.Load(secrets.Source{Name: "anthropic api key", File: c.APIKeyFile, Value: c.APIKey, Env: "ANTHROPIC_API_KEY"})
		if err != nil {
			return nil, err
		}
		return anthropic.New(anthropic.Config{
			APIKey:    key,
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
			Timeout:   config.RequestTimeout,
		})

	case llm.ProviderOllama:
		c := config.Ollama
		if c == nil {
			c = &OllamaConfig{}
		}
		return ollama.New(ollama.Config{
			Host:           c.Host,
			Model:          c.Model,
			EmbeddingModel: c.EmbeddingModel,
			Timeout:        config.RequestTimeout,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider %q", name)
	}
}
