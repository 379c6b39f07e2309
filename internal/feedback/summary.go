// Package feedback turns a completed interview into a summary and renders it
// as PDF or HTML.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/interview"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/logger"
)

const (
	coachPrompt = "You are an interview coach who writes concise, helpful summaries."
	noAnswers   = "No answers recorded."
	overallRole = "Overall"
)

// ExportError is returned when a session cannot be summarized yet.
type ExportError struct {
	SessionID string
	Status    interview.Status
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("interview session %s is %s, feedback is only available once it is completed", e.SessionID, e.Status)
}

type Section struct {
	Agent string `json:"agent"`
	Body  string `json:"body"`
}

// Summary has exactly one section per panel agent, in panel order.
type Summary struct {
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	Sections    []Section `json:"sections"`
	Overall     string    `json:"overall"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Markdown renders the summary as a markdown document.
func (s *Summary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	for _, section := range s.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", section.Agent, strings.TrimSpace(section.Body))
	}
	if overall := strings.TrimSpace(s.Overall); overall != "" {
		fmt.Fprintf(&b, "## %s\n\n%s\n", overallRole, overall)
	}
	return b.String()
}

type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

type Exporter struct {
	generator Generator
	logger    *zap.Logger
	now       func() time.Time
}

func NewExporter(generator Generator, log *zap.Logger) *Exporter {
	return &Exporter{
		generator: generator,
		logger:    logger.Component(log, "feedback"),
		now:       time.Now,
	}
}

// Summarize makes one model call over the whole transcript. A session with
// no answers is summarized without calling the model.
func (x *Exporter) Summarize(ctx context.Context, session *interview.Session) (*Summary, error) {
	if session == nil {
		return nil, &ExportError{Status: interview.StatusNotStarted}
	}
	if session.Status != interview.StatusCompleted {
		return nil, &ExportError{SessionID: session.ID, Status: session.Status}
	}

	summary := &Summary{
		SessionID:   session.ID,
		Title:       "Interview Feedback",
		GeneratedAt: x.now().UTC(),
	}

	if len(session.Turns) == 0 {
		for _, agent := range session.Panel {
			summary.Sections = append(summary.Sections, Section{Agent: agent.Role, Body: noAnswers})
		}
		summary.Overall = "No interview conducted."
		return summary, nil
	}

	raw, err := x.generator.Generate(ctx, llm.Request{
		System: coachPrompt,
		User:   buildPrompt(session),
	})
	if err != nil {
		return nil, err
	}

	summary.Sections, summary.Overall = parseSections(raw, session)
	logger.WithSession(x.logger, session.ID).Info("feedback summarized",
		zap.Int("sections", len(summary.Sections)),
		zap.Int("turns", len(session.Turns)),
	)
	return summary, nil
}

func buildPrompt(session *interview.Session) string {
	items := make([]string, 0, len(session.Turns))
	for _, t := range session.Turns {
		item := fmt.Sprintf("Q by %s: %s\nA: %s", t.Agent, t.Question, t.Answer)
		if t.Feedback != "" {
			item += "\nFeedback: " + t.Feedback
		}
		items = append(items, item)
	}

	roles := make([]string, 0, len(session.Panel))
	for _, agent := range session.Panel {
		roles = append(roles, agent.Role)
	}

	return strings.Join(items, "\n\n") + "\n\n" +
		"Using the interview transcript and feedback, write a concise summary for the candidate: " +
		"what went well and what to improve. Include actionable tips.\n" +
		fmt.Sprintf("Format the answer as markdown with one section per interviewer, each starting with a '## <role>' heading, for these roles: %s. ", strings.Join(roles, ", ")) +
		"Finish with a '## Overall' section."
}

// parseSections maps '## <role>' headings onto the panel agents. Text outside
// a known heading goes to the overall section.
func parseSections(raw string, session *interview.Session) ([]Section, string) {
	bodies := make(map[string]*strings.Builder, len(session.Panel))
	index := make(map[string]string, len(session.Panel))
	for _, agent := range session.Panel {
		key := normalizeHeading(agent.Role)
		index[key] = agent.Role
		bodies[agent.Role] = &strings.Builder{}
	}

	var overall strings.Builder
	current := &overall
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := normalizeHeading(strings.TrimLeft(trimmed, "# "))
			if role, ok := index[heading]; ok {
				current = bodies[role]
				continue
			}
			if heading == normalizeHeading(overallRole) {
				current = &overall
				continue
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	sections := make([]Section, 0, len(session.Panel))
	for _, agent := range session.Panel {
		sections = append(sections, Section{Agent: agent.Role, Body: strings.TrimSpace(bodies[agent.Role].String())})
	}
	return sections, strings.TrimSpace(overall.String())
}

func normalizeHeading(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_:")
	return strings.ToLower(strings.TrimSpace(s))
}
