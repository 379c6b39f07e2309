package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/domain"
	"github.com/spigell/panel-interview/internal/extract"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/llm/llmtest"
	"github.com/spigell/panel-interview/internal/store"
)

type countingStore struct {
	*store.Memory
	creates int
	updates int
}

func (c *countingStore) CreatePanel(ctx context.Context, p *domain.PanelRecord) error {
	c.creates++
	return c.Memory.CreatePanel(ctx, p)
}

func (c *countingStore) UpdatePanel(ctx context.Context, p *domain.PanelRecord) error {
	c.updates++
	return c.Memory.UpdatePanel(ctx, p)
}

func newTestBuilder(t *testing.T, fake *llmtest.Fake, cfg Config) (*Builder, *countingStore) {
	t.Helper()
	st := &countingStore{Memory: store.NewMemory()}
	gw := llm.NewGateway(fake, fake, llm.WithProviders("fake", "fake"))
	b := NewBuilder(gw, st, nil, cfg, nil, zap.NewNop())
	ids := 0
	b.newID = func() string {
		ids++
		return fmt.Sprintf("panel-%d", ids)
	}
	return b, st
}

func embedBy(vectors map[string][]float64) func(string) ([]float64, error) {
	return func(text string) ([]float64, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("no vector for %q", text)
	}
}

func TestAnalyzeGeneratesThenReuses(t *testing.T) {
	fake := llmtest.New()
	fake.GenerateFunc = func(llm.Request) (string, error) {
		return llmtest.PanelJSON("Go Expert", "Database Expert", "Behavioral Expert"), nil
	}
	fake.EmbedFunc = embedBy(map[string][]float64{
		"Backend Go engineer":          {1, 0, 0},
		"Backend Go engineer (remote)": {0.99, 0.1, 0},
		"Frontend React developer":     {0, 1, 0},
	})
	b, st := newTestBuilder(t, fake, Config{})
	ctx := context.Background()

	first, err := b.Analyze(ctx, Input{Text: "Backend Go engineer"})
	require.NoError(t, err)
	assert.False(t, first.Reused)
	require.Len(t, first.Panel.Agents, 3)
	assert.Equal(t, "Go Expert", first.Panel.Agents[0].Role)
	assert.Equal(t, 1, st.creates)

	generated, _, _ := fake.Counts()
	second, err := b.Analyze(ctx, Input{Text: "Backend Go engineer (remote)"})
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.GreaterOrEqual(t, second.Similarity, DefaultThreshold)
	assert.Equal(t, first.Panel.ID, second.Panel.ID)
	assert.Equal(t, 1, st.creates, "cache hit must not write")
	generatedAfter, _, _ := fake.Counts()
	assert.Equal(t, generated, generatedAfter, "cache hit must not generate")

	third, err := b.Analyze(ctx, Input{Text: "Frontend React developer"})
	require.NoError(t, err)
	assert.False(t, third.Reused)
	assert.NotEqual(t, first.Panel.ID, third.Panel.ID)
	assert.Equal(t, 2, st.creates)
	assert.Equal(t, 0, st.updates)
}

func TestAnalyzeThresholdIsConfigurable(t *testing.T) {
	fake := llmtest.New()
	fake.GenerateFunc = func(llm.Request) (string, error) { return llmtest.PanelJSON("A", "B", "C"), nil }
	fake.EmbedFunc = embedBy(map[string][]float64{
		"jd one": {1, 0},
		"jd two": {0.8, 0.6},
	})
	b, st := newTestBuilder(t, fake, Config{Threshold: 0.75})

	_, err := b.Analyze(context.Background(), Input{Text: "jd one"})
	require.NoError(t, err)
	res, err := b.Analyze(context.Background(), Input{Text: "jd two"})
	require.NoError(t, err)

	assert.True(t, res.Reused)
	assert.InDelta(t, 0.8, res.Similarity, 1e-9)
	assert.Equal(t, 1, st.creates)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		b, st := newTestBuilder(t, llmtest.New(), Config{})
		_, err := b.Analyze(context.Background(), Input{Text: "   "})
		var extractErr *extract.ExtractionError
		require.True(t, errors.As(err, &extractErr), "got %v", err)
		assert.Equal(t, 0, st.creates)
	})

	t.Run("unreadable document", func(t *testing.T) {
		b, _ := newTestBuilder(t, llmtest.New(), Config{})
		_, err := b.Analyze(context.Background(), Input{Document: []byte("not a pdf"), DocumentName: "jd.pdf"})
		var extractErr *extract.ExtractionError
		require.True(t, errors.As(err, &extractErr), "got %v", err)
		assert.Contains(t, err.Error(), "provide text instead")
	})

	t.Run("embedding failure", func(t *testing.T) {
		fake := llmtest.New()
		fake.EmbedFunc = func(string) ([]float64, error) { return nil, errors.New("rate limited") }
		b, st := newTestBuilder(t, fake, Config{})

		_, err := b.Analyze(context.Background(), Input{Text: "jd"})
		var embErr *llm.EmbeddingError
		require.True(t, errors.As(err, &embErr), "got %v", err)
		_, _, embeds := fake.Counts()
		assert.Equal(t, 1, embeds, "embedding is not retried")
		assert.Equal(t, 0, st.creates)
	})

	t.Run("generation failure", func(t *testing.T) {
		fake := llmtest.New()
		fake.GenerateFunc = func(llm.Request) (string, error) { return "", errors.New("overloaded") }
		b, st := newTestBuilder(t, fake, Config{})

		_, err := b.Analyze(context.Background(), Input{Text: "jd"})
		var genErr *llm.GenerationError
		require.True(t, errors.As(err, &genErr), "got %v", err)
		assert.Equal(t, 0, st.creates)
	})
}

func TestAnalyzeFallsBackOnUnusableResponse(t *testing.T) {
	fake := llmtest.New()
	fake.GenerateFunc = func(llm.Request) (string, error) { return llmtest.PanelJSON("Only One"), nil }
	b, st := newTestBuilder(t, fake, Config{})

	res, err := b.Analyze(context.Background(), Input{Text: "jd"})
	require.NoError(t, err)
	require.Len(t, res.Panel.Agents, 3)
	assert.Equal(t, "Domain Expert", res.Panel.Agents[0].Role)
	assert.Equal(t, "Behavioral Expert", res.Panel.Agents[2].Role)
	assert.Equal(t, 1, st.creates)
}

func TestAnalyzePromptsWithTruncatedJD(t *testing.T) {
	fake := llmtest.New()
	var prompt llm.Request
	fake.GenerateFunc = func(req llm.Request) (string, error) {
		prompt = req
		return llmtest.PanelJSON("A", "B"), nil
	}
	b, _ := newTestBuilder(t, fake, Config{Size: 2, MaxJDTokens: 10})

	long := strings.Repeat("kubernetes ", 200)
	res, err := b.Analyze(context.Background(), Input{Text: long})
	require.NoError(t, err)
	require.Len(t, res.Panel.Agents, 2)

	assert.True(t, prompt.JSON)
	assert.Contains(t, prompt.System, "exactly 2")
	assert.Less(t, len(prompt.User), len(long))
	assert.Equal(t, strings.TrimSpace(long), res.Panel.JobDescription, "stored JD is not truncated")
}

func TestSave(t *testing.T) {
	fake := llmtest.New()
	fake.GenerateFunc = func(llm.Request) (string, error) { return llmtest.PanelJSON("A", "B", "C"), nil }
	b, st := newTestBuilder(t, fake, Config{})
	ctx := context.Background()

	res, err := b.Analyze(ctx, Input{Text: "jd"})
	require.NoError(t, err)

	saved, err := b.Save(ctx, res.Panel.ID, []domain.Agent{{Role: " Staff Engineer ", Focus: "architecture", Persona: "You are strict."}})
	require.NoError(t, err)
	require.Len(t, saved.Agents, 1)
	assert.Equal(t, "Staff Engineer", saved.Agents[0].Role)
	assert.Equal(t, 1, st.updates)

	_, err = b.Save(ctx, res.Panel.ID, []domain.Agent{{Role: " "}})
	require.Error(t, err)
	_, err = b.Save(ctx, res.Panel.ID, nil)
	require.Error(t, err)

	_, err = b.Save(ctx, "missing", []domain.Agent{{Role: "X"}})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestParsePanel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		size    int
		want    []domain.Agent
		wantErr bool
	}{
		{
			name: "legacy field names in fences",
			raw:  "```json\n{\"panel\": [{\"name\": \"Security\", \"system_prompt\": \"You question threat models.\"}]}\n```",
			size: 1,
			want: []domain.Agent{{Role: "Security", Focus: "Security", Persona: "You question threat models."}},
		},
		{
			name: "blank fields defaulted",
			raw:  `{"panel": [{"role": ""}, {"role": "Data", "focus": "sql"}]}`,
			size: 2,
			want: []domain.Agent{
				{Role: "Expert 1", Focus: "Expert 1", Persona: defaultPersona},
				{Role: "Data", Focus: "sql", Persona: defaultPersona},
			},
		},
		{name: "wrong count", raw: `{"panel": [{"role": "A"}]}`, size: 3, wantErr: true},
		{name: "not json", raw: "I cannot help with that", size: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parsePanel(tt.raw, tt.size)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallbackPanelResizes(t *testing.T) {
	agents, err := fallbackPanel(4)
	require.NoError(t, err)
	require.Len(t, agents, 4)
	assert.Equal(t, "Systems Expert", agents[1].Role)
	assert.Equal(t, "Expert 4", agents[3].Role)

	agents, err = fallbackPanel(2)
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}
