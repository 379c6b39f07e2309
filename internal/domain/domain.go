// Package domain holds the records shared by the panel builder, the store
// and the interview controller.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Agent is one subject-matter expert on a panel. Persona is the system
// prompt used when the agent asks questions.
type Agent struct {
	Role    string `json:"role" yaml:"role" mapstructure:"role"`
	Focus   string `json:"focus" yaml:"focus" mapstructure:"focus"`
	Persona string `json:"persona" yaml:"persona" mapstructure:"persona"`
}

// PanelRecord is a stored job description together with the panel
// generated for it.
type PanelRecord struct {
	ID             string    `json:"id"`
	JobDescription string    `json:"job_description"`
	Embedding      []float64 `json:"-"`
	Agents         []Agent   `json:"agents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (p *PanelRecord) Clone() *PanelRecord {
	if p == nil {
		return nil
	}
	out := *p
	out.Embedding = append([]float64(nil), p.Embedding...)
	out.Agents = CloneAgents(p.Agents)
	return &out
}

func CloneAgents(agents []Agent) []Agent {
	if agents == nil {
		return nil
	}
	return append([]Agent(nil), agents...)
}

// ErrInvalidPanel wraps every ValidateAgents failure.
var ErrInvalidPanel = errors.New("invalid panel")

// ValidateAgents reports the first agent with a blank role.
func ValidateAgents(agents []Agent) error {
	if len(agents) == 0 {
		return fmt.Errorf("%w: at least one agent is required", ErrInvalidPanel)
	}
	for i, agent := range agents {
		if strings.TrimSpace(agent.Role) == "" {
			return fmt.Errorf("%w: agent %d has an empty role", ErrInvalidPanel, i+1)
		}
	}
	return nil
}
