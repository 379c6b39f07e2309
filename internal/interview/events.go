package interview

type EventKind string

const (
	EventQuestionStart EventKind = "question_start"
	EventQuestionChunk EventKind = "question_chunk"
	EventQuestionEnd   EventKind = "question_end"
	// EventQuestionFailed closes a question whose generation broke off after
	// question_start. Nothing is recorded; the question can be asked again.
	EventQuestionFailed EventKind = "question_failed"
	EventCompleted      EventKind = "completed"
)

// Event is streamed to the client while a question is generated. For a
// question the order is always start, one or more chunks, then end or
// failed. completed follows the last question.
type Event struct {
	Kind          EventKind `json:"type"`
	SessionID     string    `json:"session_id"`
	Agent         string    `json:"agent,omitempty"`
	AgentIndex    int       `json:"agent_index"`
	QuestionIndex int       `json:"question_index"`
	Text          string    `json:"text,omitempty"`
}

// Sink receives events. A failing sink does not abort generation; the
// question is still recorded and can be replayed on resume.
type Sink interface {
	Emit(Event) error
}

type SinkFunc func(Event) error

func (f SinkFunc) Emit(e Event) error { return f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) error { return nil })
