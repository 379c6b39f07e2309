// Package panel turns a job description into an interview panel, reusing a
// stored panel when a sufficiently similar job description was seen before.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/domain"
	"github.com/spigell/panel-interview/internal/extract"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/logger"
	"github.com/spigell/panel-interview/internal/metrics"
	"github.com/spigell/panel-interview/internal/store"
)

const (
	DefaultThreshold   = 0.9
	DefaultSize        = 3
	DefaultMaxJDTokens = 1000
)

// Model is the part of the LLM gateway the builder needs.
type Model interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

type Config struct {
	// Threshold is the minimum cosine similarity for reusing a stored panel.
	Threshold   float64
	Size        int
	MaxJDTokens int
}

// Input is either plain text or a PDF document. Document wins when both are set.
type Input struct {
	Text         string
	Document     []byte
	DocumentName string
}

type Result struct {
	Panel      *domain.PanelRecord `json:"panel"`
	Reused     bool                `json:"reused"`
	Similarity float64             `json:"similarity"`
}

type Builder struct {
	model    Model
	store    store.Store
	tokens   *llm.TokenBudget
	cfg      Config
	recorder metrics.Recorder
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time
}

// NewBuilder applies defaults to zero config values. tokens may be nil, in
// which case the JD is truncated by an estimate.
func NewBuilder(model Model, st store.Store, tokens *llm.TokenBudget, cfg Config, recorder metrics.Recorder, log *zap.Logger) *Builder {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.MaxJDTokens <= 0 {
		cfg.MaxJDTokens = DefaultMaxJDTokens
	}

	return &Builder{
		model:    model,
		store:    st,
		tokens:   tokens,
		cfg:      cfg,
		recorder: metrics.OrNop(recorder),
		logger:   logger.Component(log, "panel"),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Analyze resolves the input to text, embeds it and either returns the most
// similar stored panel or generates and stores a new one.
func (b *Builder) Analyze(ctx context.Context, in Input) (*Result, error) {
	text, err := b.resolveText(in)
	if err != nil {
		return nil, err
	}

	embedding, err := b.model.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	best, score, err := b.store.FindMostSimilar(ctx, embedding)
	if err != nil {
		return nil, fmt.Errorf("find similar panel: %w", err)
	}

	if best != nil && score >= b.cfg.Threshold {
		b.recorder.PanelLookup(true)
		b.logger.Info("reusing stored panel",
			zap.String(logger.FieldPanel, best.ID),
			zap.Float64("similarity", score),
		)
		return &Result{Panel: best, Reused: true, Similarity: score}, nil
	}
	b.recorder.PanelLookup(false)

	agents, err := b.generate(ctx, text)
	if err != nil {
		return nil, err
	}

	now := b.now().UTC()
	record := &domain.PanelRecord{
		ID:             b.newID(),
		JobDescription: text,
		Embedding:      embedding,
		Agents:         agents,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := b.store.CreatePanel(ctx, record); err != nil {
		return nil, fmt.Errorf("store panel: %w", err)
	}

	b.logger.Info("generated new panel",
		zap.String(logger.FieldPanel, record.ID),
		zap.Int("agents", len(agents)),
		zap.Float64("best_similarity", score),
	)
	return &Result{Panel: record, Reused: false, Similarity: score}, nil
}

// Get returns a stored panel.
func (b *Builder) Get(ctx context.Context, id string) (*domain.PanelRecord, error) {
	return b.store.GetPanel(ctx, id)
}

// Save replaces the agents of a stored panel after a user edit.
func (b *Builder) Save(ctx context.Context, id string, agents []domain.Agent) (*domain.PanelRecord, error) {
	cleaned := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		cleaned = append(cleaned, domain.Agent{
			Role:    strings.TrimSpace(a.Role),
			Focus:   strings.TrimSpace(a.Focus),
			Persona: strings.TrimSpace(a.Persona),
		})
	}
	if err := domain.ValidateAgents(cleaned); err != nil {
		return nil, err
	}

	record, err := b.store.GetPanel(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Agents = cleaned
	if err := b.store.UpdatePanel(ctx, record); err != nil {
		return nil, fmt.Errorf("update panel: %w", err)
	}

	b.logger.Info("panel saved", zap.String(logger.FieldPanel, id), zap.Int("agents", len(cleaned)))
	return b.store.GetPanel(ctx, id)
}

func (b *Builder) resolveText(in Input) (string, error) {
	if len(in.Document) > 0 {
		text, err := extract.PDF(in.Document)
		if err != nil {
			b.logger.Warn("document extraction failed", zap.String("document", in.DocumentName), zap.Error(err))
			return "", err
		}
		return text, nil
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", &extract.ExtractionError{Reason: "job description is empty, provide text instead"}
	}
	return text, nil
}

func (b *Builder) generate(ctx context.Context, text string) ([]domain.Agent, error) {
	jd := b.tokens.Truncate(text, b.cfg.MaxJDTokens)

	raw, err := b.model.Generate(ctx, llm.Request{
		System: buildPrompt(b.cfg.Size),
		User:   buildUserPrompt(jd, b.cfg.Size),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	agents, err := parsePanel(raw, b.cfg.Size)
	if err == nil {
		return agents, nil
	}

	b.logger.Warn("unusable panel response, using fallback panel", zap.Error(err))
	agents, fbErr := fallbackPanel(b.cfg.Size)
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	return agents, nil
}
