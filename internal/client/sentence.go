package client

import "strings"

// SentenceBuffer holds streamed text only until a sentence is complete. A
// sentence ends at '.', '!' or '?' followed by whitespace.
type SentenceBuffer struct {
	pending string
}

// Push appends chunk and returns the sentences it completed, trimmed.
func (b *SentenceBuffer) Push(chunk string) []string {
	s := b.pending + chunk

	var out []string
	start := 0
	for i := 0; i+1 < len(s); i++ {
		if !isTerminator(s[i]) || !isSpace(s[i+1]) {
			continue
		}
		if sentence := strings.TrimSpace(s[start : i+1]); sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}

	b.pending = s[start:]
	return out
}

// Flush returns whatever is buffered and empties the buffer.
func (b *SentenceBuffer) Flush() string {
	rest := strings.TrimSpace(b.pending)
	b.pending = ""
	return rest
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
