package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/interview"
	"github.com/spigell/panel-interview/internal/logger"
)

const (
	MessageStart  = "start_interview"
	MessageSubmit = "submit_answer"
	MessageEnd    = "end_interview"
	MessageResume = "resume"
	// MessageNext asks the question at the cursor again after a failed
	// generation.
	MessageNext = "next_question"

	// Outbound kinds besides the interview events.
	MessageSession = "session"
	MessageError   = "error"

	writeTimeout = 10 * time.Second
	maxMessage   = 1 << 20
	queueSize    = 8
)

// Inbound is a message sent by a client over /ws.
type Inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	PanelID   string `json:"panel_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// SessionMessage carries a session snapshot.
type SessionMessage struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	Session   *interview.Session `json:"session"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	ws  *websocket.Conn
	sid string

	writeMu sync.Mutex

	mu      sync.Mutex
	session string
}

func (c *wsConn) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

func (c *wsConn) close(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = c.ws.Close()
}

// Emit implements interview.Sink.
func (c *wsConn) Emit(ev interview.Event) error {
	return c.send(ev)
}

func (c *wsConn) current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *wsConn) setCurrent(id string) {
	c.mu.Lock()
	c.session = id
	c.mu.Unlock()
}

// resolve picks the session a message refers to: its own session_id, the
// session this connection works on, then the sid cookie.
func (c *wsConn) resolve(msg Inbound) string {
	if id := strings.TrimSpace(msg.SessionID); id != "" {
		return id
	}
	if id := c.current(); id != "" {
		return id
	}
	return c.sid
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var sid string
	if cookie, err := r.Cookie(s.cfg.CookieName); err == nil {
		sid = cookie.Value
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(maxMessage)

	conn := &wsConn{ws: ws, sid: sid}
	s.track(conn)
	defer s.untrack(conn)

	// Operations outlive the socket so a question generated for a client that
	// went away is still recorded and can be replayed on resume.
	ctx := context.WithoutCancel(r.Context())

	// Everything but end_interview runs one at a time in arrival order, off
	// the read loop, so end_interview is still read while a question streams.
	ops := make(chan Inbound, queueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ops {
			switch msg.Type {
			case MessageStart:
				s.startInterview(ctx, conn, msg)
			case MessageSubmit:
				s.submitAnswer(ctx, conn, msg)
			case MessageNext:
				s.nextQuestion(ctx, conn, msg)
			case MessageResume:
				s.resume(ctx, conn, msg)
			}
		}
	}()
	defer func() {
		close(ops)
		<-done
		_ = ws.Close()
	}()

	for {
		var msg Inbound
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}

		s.recorder.GatewayMessage(msg.Type)
		s.logger.Debug("websocket message",
			zap.String("type", msg.Type),
			zap.String(logger.FieldSession, msg.SessionID),
		)

		switch msg.Type {
		case MessageStart, MessageSubmit, MessageNext, MessageResume:
			select {
			case ops <- msg:
			default:
				s.sendError(conn, msg.SessionID, &interview.BusyError{ID: conn.resolve(msg)})
			}
		case MessageEnd:
			s.endInterview(ctx, conn, msg)
		default:
			s.sendError(conn, msg.SessionID, badRequest("unknown message type %q", msg.Type))
		}
	}
}

func (s *Server) startInterview(ctx context.Context, conn *wsConn, msg Inbound) {
	panelID := strings.TrimSpace(msg.PanelID)
	if panelID == "" {
		s.sendError(conn, msg.SessionID, badRequest("panel_id is required"))
		return
	}
	record, err := s.panels.Get(ctx, panelID)
	if err != nil {
		s.sendError(conn, msg.SessionID, err)
		return
	}

	id := strings.TrimSpace(msg.SessionID)
	if id == "" {
		id = conn.sid
	}
	if id == "" {
		id = s.newID()
	}
	notes := s.takeNotes(id, conn.sid)

	session, err := s.interviews.Start(ctx, id, record, notes)
	var invalid *interview.InvalidStateError
	if errors.As(err, &invalid) && invalid.Status != interview.StatusNotStarted {
		// The id already belongs to an interview; run this one under a fresh id.
		id = s.newID()
		session, err = s.interviews.Start(ctx, id, record, notes)
	}
	if err != nil {
		s.sendError(conn, id, err)
		return
	}

	conn.setCurrent(id)
	s.sendSession(conn, session)
	if session.Status == interview.StatusCompleted {
		// Ended while starting.
		s.sendCompleted(conn, id)
		return
	}

	if _, err := s.interviews.AskNext(ctx, id, conn); err != nil {
		s.sendError(conn, id, err)
	}
}

func (s *Server) nextQuestion(ctx context.Context, conn *wsConn, msg Inbound) {
	id := conn.resolve(msg)
	if id == "" {
		s.sendError(conn, "", badRequest("session_id is required"))
		return
	}
	if _, err := s.interviews.AskNext(ctx, id, conn); err != nil {
		s.sendError(conn, id, err)
	}
}

func (s *Server) submitAnswer(ctx context.Context, conn *wsConn, msg Inbound) {
	id := conn.resolve(msg)
	if id == "" {
		s.sendError(conn, "", badRequest("session_id is required"))
		return
	}
	if _, err := s.interviews.Submit(ctx, id, msg.Text, conn); err != nil {
		s.sendError(conn, id, err)
	}
}

func (s *Server) endInterview(ctx context.Context, conn *wsConn, msg Inbound) {
	id := conn.resolve(msg)
	if id == "" {
		s.sendError(conn, "", badRequest("session_id is required"))
		return
	}
	done, err := s.interviews.End(ctx, id)
	if err != nil {
		s.sendError(conn, id, err)
		return
	}
	// Otherwise the operation in flight reports completed after its events.
	if done {
		s.sendCompleted(conn, id)
	}
}

// resume sends the stored session and replays a pending question without
// generating it again. A session left without a question by a failed
// generation gets it asked now.
func (s *Server) resume(ctx context.Context, conn *wsConn, msg Inbound) {
	id := conn.resolve(msg)
	if id == "" {
		s.sendError(conn, "", badRequest("session_id is required"))
		return
	}
	session, err := s.interviews.Load(ctx, id)
	if err != nil {
		s.sendError(conn, id, err)
		return
	}

	conn.setCurrent(id)
	s.sendSession(conn, session)

	if session.Status == interview.StatusCompleted {
		s.sendCompleted(conn, id)
		return
	}
	p := session.Pending
	if p == nil {
		if session.Status == interview.StatusInProgress && !session.Exhausted() {
			if _, err := s.interviews.AskNext(ctx, id, conn); err != nil {
				s.sendError(conn, id, err)
			}
		}
		return
	}
	base := interview.Event{SessionID: id, Agent: p.Agent, AgentIndex: p.AgentIndex, QuestionIndex: p.QuestionIndex}
	for _, kind := range []interview.EventKind{interview.EventQuestionStart, interview.EventQuestionChunk, interview.EventQuestionEnd} {
		ev := base
		ev.Kind = kind
		if kind != interview.EventQuestionStart {
			ev.Text = p.Question
		}
		if err := conn.Emit(ev); err != nil {
			s.logger.Debug("replay not delivered", zap.Error(err))
			return
		}
	}
}

func (s *Server) sendSession(conn *wsConn, session *interview.Session) {
	if err := conn.send(SessionMessage{Type: MessageSession, SessionID: session.ID, Session: session}); err != nil {
		s.logger.Debug("session snapshot not delivered", zap.Error(err))
	}
}

func (s *Server) sendCompleted(conn *wsConn, id string) {
	if err := conn.Emit(interview.Event{Kind: interview.EventCompleted, SessionID: id}); err != nil {
		s.logger.Debug("completed event not delivered", zap.Error(err))
	}
}

func (s *Server) sendError(conn *wsConn, sessionID string, err error) {
	_, code := classify(err)
	logger.WithSession(s.logger, sessionID).Warn("websocket operation failed", zap.String("code", code), zap.Error(err))
	if werr := conn.send(ErrorMessage{Type: MessageError, SessionID: sessionID, Error: err.Error(), Code: code}); werr != nil {
		s.logger.Debug("error not delivered", zap.Error(werr))
	}
}
