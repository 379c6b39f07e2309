package panel

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/spigell/panel-interview/internal/domain"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

//go:embed fallback.yaml
var fallbackYAML []byte

const defaultPersona = "You are a helpful expert interviewer."

// rawAgent accepts both the current field names and the older
// name/system_prompt pair.
type rawAgent struct {
	Role         string `mapstructure:"role"`
	Name         string `mapstructure:"name"`
	Focus        string `mapstructure:"focus"`
	Persona      string `mapstructure:"persona"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type rawPanel struct {
	Panel []rawAgent `mapstructure:"panel"`
}

func buildPrompt(size int) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Choose exactly {{PANEL_SIZE}} interviewer roles. Return JSON {\"panel\": [{role, focus, persona}]}."
	}
	return strings.ReplaceAll(template, "{{PANEL_SIZE}}", fmt.Sprint(size))
}

func buildUserPrompt(jd string, size int) string {
	return fmt.Sprintf("JD:\n%s\n\nReturn JSON with array 'panel' of %d objects as specified.", jd, size)
}

// parsePanel decodes a model response into exactly size agents. Blank fields
// are defaulted; a wrong agent count is an error.
func parsePanel(raw string, size int) ([]domain.Agent, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse panel response: %w", err)
	}

	var decoded rawPanel
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &decoded,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode panel response: %w", err)
	}

	if len(decoded.Panel) != size {
		return nil, fmt.Errorf("panel response has %d agents, expected %d", len(decoded.Panel), size)
	}

	agents := make([]domain.Agent, 0, size)
	for i, a := range decoded.Panel {
		role := utils.FirstNonBlank(a.Role, a.Name, fmt.Sprintf("Expert %d", i+1))
		agents = append(agents, domain.Agent{
			Role:    role,
			Focus:   utils.FirstNonBlank(a.Focus, role),
			Persona: utils.FirstNonBlank(a.Persona, a.SystemPrompt, defaultPersona),
		})
	}
	return agents, nil
}

// fallbackPanel returns the embedded default panel resized to size.
func fallbackPanel(size int) ([]domain.Agent, error) {
	var decoded struct {
		Panel []domain.Agent `yaml:"panel"`
	}
	if err := yaml.Unmarshal(fallbackYAML, &decoded); err != nil {
		return nil, fmt.Errorf("decode fallback panel: %w", err)
	}

	agents := make([]domain.Agent, 0, size)
	for i := 0; i < size; i++ {
		if i < len(decoded.Panel) {
			agents = append(agents, decoded.Panel[i])
			continue
		}
		role := fmt.Sprintf("Expert %d", i+1)
		agents = append(agents, domain.Agent{Role: role, Focus: role, Persona: defaultPersona})
	}
	return agents, nil
}
