// Package anthropic adapts the Anthropic Messages API to llm.Generator.
// Anthropic has no embedding endpoint, so this package never backs the
// embedding side of the gateway.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spigell/panel-interview/internal/llm"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 2048

	jsonInstruction = "Respond with a single JSON object and nothing else."
)

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
	Timeout   time.Duration
}

// Client wraps anthropic.Client.
type Client struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
	}, nil
}

func (c *Client) params(req llm.Request) anthropic.MessageNewParams {
	system := strings.TrimSpace(req.System)
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	var builder strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			builder.WriteString(block.AsText().Text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("anthropic api returned empty response")
	}
	return output, nil
}

func (c *Client) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(req))

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			if !llm.Send(ctx, ch, llm.Chunk{Text: text.Text}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			llm.Send(ctx, ch, llm.Chunk{Err: fmt.Errorf("message stream: %w", err)})
		}
	}()
	return ch, nil
}

func (c *Client) Model() string { return string(c.model) }
