// Package ollama adapts a local Ollama server to the llm interfaces.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/spigell/panel-interview/internal/llm"
)

const (
	defaultHost           = "http://localhost:11434"
	defaultModel          = "llama3.1:8b"
	defaultEmbeddingModel = "nomic-embed-text"
)

type Config struct {
	Host           string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// Client wraps api.Client.
type Client struct {
	client         *api.Client
	model          string
	embeddingModel string
}

// New builds a Client. An unparsable host falls back to the local default.
func New(cfg Config) *Client {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultHost
	}
	parsed, err := url.Parse(host)
	if err != nil || parsed.Scheme == "" {
		parsed, _ = url.Parse(defaultHost)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	embeddingModel := strings.TrimSpace(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	return &Client{
		client:         api.NewClient(parsed, httpClient),
		model:          model,
		embeddingModel: embeddingModel,
	}
}

func (c *Client) chatRequest(req llm.Request, stream bool) *api.ChatRequest {
	messages := make([]api.Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.User})

	chat := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
	}
	if req.JSON {
		chat.Format = json.RawMessage(`"json"`)
	}
	return chat
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	var builder strings.Builder
	err := c.client.Chat(ctx, c.chatRequest(req, false), func(resp api.ChatResponse) error {
		builder.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("ollama returned empty response")
	}
	return output, nil
}

func (c *Client) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		err := c.client.Chat(ctx, c.chatRequest(req, true), func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			if !llm.Send(ctx, ch, llm.Chunk{Text: resp.Message.Content}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			llm.Send(ctx, ch, llm.Chunk{Err: fmt.Errorf("ollama chat stream: %w", err)})
		}
	}()
	return ch, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{Model: c.embeddingModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, errors.New("ollama returned no embeddings")
	}

	values := resp.Embeddings[0]
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, nil
}

func (c *Client) Model() string          { return c.model }
func (c *Client) EmbeddingModel() string { return c.embeddingModel }
