// Package resume condenses a candidate resume into notes for interviewers.
package resume

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/extract"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/logger"
)

const (
	DefaultMaxTokens = 4000

	systemPrompt = "You extract key points as short bullet points."
	instruction  = "Extract concise key points from this resume that are useful for interviewers. Return 5-10 bullet points."
)

type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

type Analyzer struct {
	generator Generator
	tokens    *llm.TokenBudget
	maxTokens int
	logger    *zap.Logger
}

func NewAnalyzer(generator Generator, tokens *llm.TokenBudget, maxTokens int, log *zap.Logger) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Analyzer{
		generator: generator,
		tokens:    tokens,
		maxTokens: maxTokens,
		logger:    logger.Component(log, "resume"),
	}
}

// KeyPoints returns bullet-point notes for text. Empty input is an
// ExtractionError.
func (a *Analyzer) KeyPoints(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &extract.ExtractionError{Reason: "resume is empty, provide text instead"}
	}

	truncated := a.tokens.Truncate(text, a.maxTokens)
	notes, err := a.generator.Generate(ctx, llm.Request{
		System: systemPrompt,
		User:   instruction + "\n\nResume:\n" + truncated,
	})
	if err != nil {
		return "", err
	}

	notes = strings.TrimSpace(notes)
	a.logger.Info("resume notes extracted",
		zap.Int("resume_length", len(text)),
		zap.Bool("truncated", len(truncated) < len(text)),
		zap.Int("notes_length", len(notes)),
	)
	return notes, nil
}
