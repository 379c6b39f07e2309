package client

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/gateway"
	"github.com/spigell/panel-interview/internal/interview"
	"github.com/spigell/panel-interview/internal/logger"
)

const (
	// EndCommand typed as an answer ends the interview early.
	EndCommand = "/end"

	// maxRetries bounds how often a failed question is asked again in a row.
	maxRetries = 2
)

// Interviewer plays one interview: questions go to the speaker sentence by
// sentence and answers come from the listener.
type Interviewer struct {
	conn     *Conn
	speaker  Speaker
	listener Listener
	logger   *zap.Logger
}

func NewInterviewer(conn *Conn, speaker Speaker, listener Listener, log *zap.Logger) *Interviewer {
	return &Interviewer{
		conn:     conn,
		speaker:  speaker,
		listener: listener,
		logger:   logger.Component(log, "client"),
	}
}

// Start begins a new interview on panelID and plays it to completion. It
// returns the session id the gateway assigned.
func (iv *Interviewer) Start(ctx context.Context, panelID, sessionID string) (string, error) {
	if err := iv.conn.Send(gateway.Inbound{Type: gateway.MessageStart, PanelID: panelID, SessionID: sessionID}); err != nil {
		return sessionID, err
	}
	return iv.play(ctx, sessionID)
}

// Resume continues a stored interview, replaying the question it stopped at.
func (iv *Interviewer) Resume(ctx context.Context, sessionID string) (string, error) {
	if err := iv.conn.Send(gateway.Inbound{Type: gateway.MessageResume, SessionID: sessionID}); err != nil {
		return sessionID, err
	}
	return iv.play(ctx, sessionID)
}

func (iv *Interviewer) play(ctx context.Context, id string) (string, error) {
	// Unblocks Receive when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = iv.conn.ws.Close() })
	defer stop()

	var (
		buf     SentenceBuffer
		retries int
	)
	for {
		msg, err := iv.conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return id, ctx.Err()
			}
			return id, err
		}

		switch msg.Type {
		case gateway.MessageSession:
			id = msg.SessionID
			logger.WithSession(iv.logger, id).Debug("session assigned")
		case gateway.MessageError:
			// Resuming replays a question still waiting for an answer or
			// generates the one that failed.
			if msg.Code == gateway.CodeGeneration && id != "" && retries < maxRetries {
				retries++
				logger.WithSession(iv.logger, id).Warn("question generation failed, retrying", zap.String("error", msg.Error), zap.Int("attempt", retries))
				if err := iv.conn.Send(gateway.Inbound{Type: gateway.MessageResume, SessionID: id}); err != nil {
					return id, err
				}
				continue
			}
			return id, &RemoteError{SessionID: msg.SessionID, Code: msg.Code, Message: msg.Error}
		case string(interview.EventCompleted):
			return id, nil
		case string(interview.EventQuestionStart):
			buf.Flush()
			if a, ok := iv.speaker.(Announcer); ok {
				if err := a.Announce(msg.Agent); err != nil {
					return id, err
				}
			}
		case string(interview.EventQuestionChunk):
			for _, sentence := range buf.Push(msg.Text) {
				if err := iv.speaker.Speak(sentence); err != nil {
					return id, err
				}
			}
		case string(interview.EventQuestionFailed):
			buf.Flush()
		case string(interview.EventQuestionEnd):
			retries = 0
			if rest := buf.Flush(); rest != "" {
				if err := iv.speaker.Speak(rest); err != nil {
					return id, err
				}
			}
			if err := iv.answer(ctx, id); err != nil {
				return id, err
			}
		default:
			iv.logger.Debug("ignoring message", zap.String("type", msg.Type))
		}
	}
}

// answer collects one answer and sends it, or ends the interview when the
// candidate asks to or input has run out.
func (iv *Interviewer) answer(ctx context.Context, id string) error {
	var (
		parts []string
		heard bool
	)
	for fragment := range iv.listener.Listen(ctx) {
		heard = true
		if f := strings.TrimSpace(fragment); f != "" {
			parts = append(parts, f)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := strings.Join(parts, " ")
	if !heard || strings.EqualFold(text, EndCommand) {
		logger.WithSession(iv.logger, id).Info("ending interview")
		return iv.conn.Send(gateway.Inbound{Type: gateway.MessageEnd, SessionID: id})
	}
	return iv.conn.Send(gateway.Inbound{Type: gateway.MessageSubmit, SessionID: id, Text: text})
}
