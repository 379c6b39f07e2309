package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenBudget truncates prompt inputs to a token count. All providers are
// approximated with the GPT-4 encoding.
type TokenBudget struct {
	codec tokenizer.Codec
}

// NewTokenBudget loads the GPT-4 codec.
func NewTokenBudget() (*TokenBudget, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer codec: %w", err)
	}
	return &TokenBudget{codec: codec}, nil
}

// Count returns the token count of text, estimating 4 characters per token
// when no codec is available.
func (b *TokenBudget) Count(text string) int {
	if b == nil || b.codec == nil {
		return len(text) / 4
	}
	n, err := b.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Truncate returns the longest prefix of text that fits in limit tokens.
// A non-positive limit disables truncation.
func (b *TokenBudget) Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	if b == nil || b.codec == nil {
		return truncateRunes(text, limit*4)
	}

	ids, _, err := b.codec.Encode(text)
	if err != nil {
		return truncateRunes(text, limit*4)
	}
	if len(ids) <= limit {
		return text
	}

	out, err := b.codec.Decode(ids[:limit])
	if err != nil {
		return truncateRunes(text, limit*4)
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
