package interview

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/panel-interview/internal/domain"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Cursor points at the next question to ask. Agent == len(Plan) means the
// plan is exhausted.
type Cursor struct {
	Agent    int `json:"agent"`
	Question int `json:"question"`
}

// Turn is one answered question. Turns are append-only.
type Turn struct {
	Agent      string    `json:"agent"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Feedback   string    `json:"feedback,omitempty"`
	AskedAt    time.Time `json:"asked_at"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Pending is a question that was asked and not answered yet.
type Pending struct {
	Agent         string    `json:"agent"`
	AgentIndex    int       `json:"agent_index"`
	QuestionIndex int       `json:"question_index"`
	Question      string    `json:"question"`
	AskedAt       time.Time `json:"asked_at"`
}

// Session is the persisted state of one interview. A committed Session is
// never mutated; transitions work on a Clone.
type Session struct {
	ID           string         `json:"id"`
	PanelID      string         `json:"panel_id,omitempty"`
	Panel        []domain.Agent `json:"panel"`
	Plan         [][]string     `json:"plan"`
	Turns        []Turn         `json:"turns"`
	Cursor       Cursor         `json:"cursor"`
	Status       Status         `json:"status"`
	Pending      *Pending       `json:"pending,omitempty"`
	ResumeNotes  string         `json:"resume_notes,omitempty"`
	EndRequested bool           `json:"end_requested,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Panel = domain.CloneAgents(s.Panel)
	if s.Plan != nil {
		out.Plan = make([][]string, len(s.Plan))
		for i, topics := range s.Plan {
			out.Plan[i] = append([]string(nil), topics...)
		}
	}
	if s.Turns != nil {
		out.Turns = append([]Turn(nil), s.Turns...)
	}
	if s.Pending != nil {
		pending := *s.Pending
		out.Pending = &pending
	}
	return &out
}

// Exhausted reports whether every planned question has been asked.
func (s *Session) Exhausted() bool {
	return s.Cursor.Agent >= len(s.Plan)
}

// TotalQuestions is the size of the plan.
func (s *Session) TotalQuestions() int {
	total := 0
	for _, topics := range s.Plan {
		total += len(topics)
	}
	return total
}

func (s *Session) advance() {
	s.Cursor.Question++
	for s.Cursor.Agent < len(s.Plan) && s.Cursor.Question >= len(s.Plan[s.Cursor.Agent]) {
		s.Cursor.Agent++
		s.Cursor.Question = 0
	}
}

// Encode serializes the session document stored in the interviews collection.
func (s *Session) Encode() ([]byte, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return doc, nil
}

// Decode rebuilds a session from its stored document.
func Decode(doc []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	switch s.Status {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
	default:
		return nil, fmt.Errorf("decode session %s: unknown status %q", s.ID, s.Status)
	}
	return &s, nil
}

// buildPlan assigns perAgent topics to every agent, cycling through the
// topics listed in the agent focus.
func buildPlan(agents []domain.Agent, perAgent int) [][]string {
	plan := make([][]string, len(agents))
	for i, agent := range agents {
		topics := splitTopics(agent.Focus)
		if len(topics) == 0 {
			topics = []string{agent.Role}
		}
		plan[i] = make([]string, perAgent)
		for q := 0; q < perAgent; q++ {
			plan[i][q] = topics[q%len(topics)]
		}
	}
	return plan
}

func splitTopics(focus string) []string {
	fields := strings.FieldsFunc(focus, func(r rune) bool { return r == ';' || r == ',' })
	topics := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			topics = append(topics, f)
		}
	}
	return topics
}
