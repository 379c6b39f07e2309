package interview

import (
	"fmt"
	"strings"

	"github.com/spigell/panel-interview/internal/domain"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/utils"
)

const (
	defaultPersona = "You are an expert interviewer."

	askInstruction      = "Craft the next interview question. Ask a single, clear, challenging question tailored to the role and context."
	feedbackInstruction = "Provide brief feedback in 2-4 bullets: strengths and improvements."
)

func composeContext(s *Session, window int) string {
	var items []string
	if notes := strings.TrimSpace(s.ResumeNotes); notes != "" {
		items = append(items, "Resume Notes:\n"+notes)
	}

	recent := s.Turns
	if window > 0 && len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	if len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, t := range recent {
			lines = append(lines, fmt.Sprintf("Q by %s: %s\nUser: %s", t.Agent, t.Question, t.Answer))
		}
		items = append(items, "History (most recent last):\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(items, "\n\n")
}

func questionRequest(s *Session, agent domain.Agent, topic string, window int) llm.Request {
	parts := []string{}
	if ctx := composeContext(s, window); ctx != "" {
		parts = append(parts, ctx)
	}
	parts = append(parts,
		fmt.Sprintf("You are the %s on this panel. Focus this question on: %s.", agent.Role, topic),
		askInstruction,
	)
	return llm.Request{
		System: utils.FirstNonBlank(agent.Persona, defaultPersona),
		User:   strings.Join(parts, "\n\n"),
	}
}

func feedbackRequest(agent domain.Agent, question, answer string) llm.Request {
	return llm.Request{
		System: utils.FirstNonBlank(agent.Persona, defaultPersona),
		User:   fmt.Sprintf("Question: %s\nAnswer: %s\n\n%s", question, answer, feedbackInstruction),
	}
}
