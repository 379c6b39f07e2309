// Package interview drives a panel interview: which agent asks which
// question, recording answers, and when the interview ends. Every transition
// is persisted so a session can be rehydrated after a reload.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/domain"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/logger"
	"github.com/spigell/panel-interview/internal/metrics"
	"github.com/spigell/panel-interview/internal/store"
)

const (
	DefaultQuestionsPerAgent = 2
	DefaultHistoryWindow     = 5
)

// Model is the part of the LLM gateway the controller needs.
type Model interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
	Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error)
}

type Config struct {
	QuestionsPerAgent int
	// TurnFeedback asks the current agent for a short note on every answer.
	TurnFeedback  bool
	HistoryWindow int
}

// Controller owns the in-memory sessions. At most one operation runs per
// session; a concurrent one is rejected with BusyError.
type Controller struct {
	model    Model
	store    store.Store
	cfg      Config
	recorder metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	// beforeUnlock runs at the end of every operation while it still holds
	// the session.
	beforeUnlock func()
}

// entry is the in-memory state of one session. Entries of finished sessions
// are retired and dropped; the store stays the source of truth.
type entry struct {
	id string
	op sync.Mutex
	// stop is set by End. notify is set along with it and cleared by whoever
	// reports the completion.
	stop    atomic.Bool
	notify  atomic.Bool
	session atomic.Pointer[Session]
	// retired is guarded by op.
	retired bool
}

func NewController(model Model, st store.Store, cfg Config, recorder metrics.Recorder, log *zap.Logger) *Controller {
	if cfg.QuestionsPerAgent <= 0 {
		cfg.QuestionsPerAgent = DefaultQuestionsPerAgent
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	return &Controller{
		model:    model,
		store:    st,
		cfg:      cfg,
		recorder: metrics.OrNop(recorder),
		logger:   logger.Component(log, "interview"),
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

func (c *Controller) entry(id string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{id: id}
		c.entries[id] = e
	}
	return e
}

// acquire takes the per-session operation lock without waiting.
func (c *Controller) acquire(id string) (*entry, error) {
	for {
		e := c.entry(id)
		if !e.op.TryLock() {
			return nil, &BusyError{ID: id}
		}
		if !e.retired {
			return e, nil
		}
		e.op.Unlock()
	}
}

// release ends an operation holding e. A session End flagged meanwhile is
// completed here and the completion is reported to sink after the
// operation's own events. It returns the session the operation should hand
// back to its caller.
func (c *Controller) release(ctx context.Context, e *entry, sink Sink, out *Session) *Session {
	ctx = context.WithoutCancel(ctx)

	ended := c.finishEnded(ctx, e)
	c.retireFinished(e)
	if c.beforeUnlock != nil {
		c.beforeUnlock()
	}
	e.op.Unlock()

	// End may have flagged the session after the check above while the lock
	// was still held.
	if e.stop.Load() && e.op.TryLock() {
		if !e.retired {
			if s := c.finishEnded(ctx, e); s != nil {
				ended = s
			}
			c.retireFinished(e)
		}
		e.op.Unlock()
	}

	if s := e.session.Load(); s != nil && s.Status == StatusCompleted && e.notify.CompareAndSwap(true, false) && sink != nil {
		if err := sink.Emit(Event{Kind: EventCompleted, SessionID: s.ID}); err != nil {
			logger.WithSession(c.logger, s.ID).Debug("event not delivered", zap.String("event", string(EventCompleted)), zap.Error(err))
		}
	}

	if ended != nil && out != nil {
		return ended.Clone()
	}
	return out
}

// finishEnded completes a session End flagged while it was busy. It returns
// nil when there was nothing to complete.
func (c *Controller) finishEnded(ctx context.Context, e *entry) *Session {
	if !e.stop.Load() {
		return nil
	}
	s := e.session.Load()
	if s == nil || s.Status != StatusInProgress {
		return nil
	}
	ended, err := c.endNow(ctx, e, s)
	if err != nil {
		logger.WithSession(c.logger, s.ID).Warn("completing ended session failed", zap.Error(err))
		return nil
	}
	return ended
}

// retireFinished drops e when its session is completed or does not exist.
// The caller holds e.op.
func (c *Controller) retireFinished(e *entry) {
	if s := e.session.Load(); s != nil && s.Status != StatusCompleted {
		return
	}
	c.retire(e)
}

func (c *Controller) retire(e *entry) {
	e.retired = true
	c.mu.Lock()
	if c.entries[e.id] == e {
		delete(c.entries, e.id)
	}
	c.mu.Unlock()
}

func (c *Controller) lookup(id string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id]
}

// current returns the committed session, reading it from the store on first
// use. It returns nil when the session does not exist anywhere.
func (c *Controller) current(ctx context.Context, id string, e *entry) (*Session, error) {
	if s := e.session.Load(); s != nil {
		return s, nil
	}

	doc, err := c.store.LoadInterview(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, err := Decode(doc)
	if err != nil {
		return nil, err
	}
	if !e.session.CompareAndSwap(nil, s) {
		return e.session.Load(), nil
	}
	return s, nil
}

// commit persists next and makes it the current session.
func (c *Controller) commit(ctx context.Context, e *entry, next *Session) error {
	next.UpdatedAt = c.now().UTC()
	doc, err := next.Encode()
	if err != nil {
		return err
	}
	if err := c.store.SaveInterview(ctx, next.ID, doc); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	e.session.Store(next)
	return nil
}

// Load rehydrates a session, from memory when cached and from the store
// otherwise.
func (c *Controller) Load(ctx context.Context, id string) (*Session, error) {
	if e := c.lookup(id); e != nil {
		if s := e.session.Load(); s != nil {
			return s.Clone(), nil
		}
	}

	doc, err := c.store.LoadInterview(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}

// Start begins the interview for a new session id with a snapshot of the
// panel.
func (c *Controller) Start(ctx context.Context, id string, panel *domain.PanelRecord, notes string) (out *Session, err error) {
	e, err := c.acquire(id)
	if err != nil {
		return nil, err
	}
	defer func() { out = c.release(ctx, e, nil, out) }()

	existing, err := c.current(ctx, id, e)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != StatusNotStarted {
		return nil, &InvalidStateError{ID: id, Op: "start", Status: existing.Status}
	}
	if panel == nil || len(panel.Agents) == 0 {
		return nil, &InvalidStateError{ID: id, Op: "start", Status: StatusNotStarted, Reason: "panel has no agents"}
	}

	now := c.now().UTC()
	agents := domain.CloneAgents(panel.Agents)
	next := &Session{
		ID:          id,
		PanelID:     panel.ID,
		Panel:       agents,
		Plan:        buildPlan(agents, c.cfg.QuestionsPerAgent),
		Turns:       []Turn{},
		Status:      StatusInProgress,
		ResumeNotes: strings.TrimSpace(notes),
		CreatedAt:   now,
	}
	if e.stop.Load() {
		next.Status = StatusCompleted
		next.EndRequested = true
	}
	if err := c.commit(ctx, e, next); err != nil {
		return nil, err
	}

	c.recorder.SessionStarted()
	logger.WithSession(c.logger, id).Info("interview started",
		zap.String(logger.FieldPanel, panel.ID),
		zap.Int("agents", len(agents)),
		zap.Int("questions", next.TotalQuestions()),
	)
	return next.Clone(), nil
}

// AskNext streams the question at the cursor to sink. After a generation
// failure it can simply be called again.
func (c *Controller) AskNext(ctx context.Context, id string, sink Sink) (out *Session, err error) {
	e, err := c.acquire(id)
	if err != nil {
		return nil, err
	}
	defer func() { out = c.release(ctx, e, sink, out) }()

	s, err := c.current(ctx, id, e)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, notStarted(id, "ask")
	}
	if s.Status == StatusInProgress && e.stop.Load() {
		ended, err := c.endNow(ctx, e, s)
		if err != nil {
			return nil, err
		}
		return ended.Clone(), nil
	}
	if err := c.checkAsk(s); err != nil {
		return nil, err
	}

	next, err := c.ask(ctx, e, s, sink)
	if err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (c *Controller) checkAsk(s *Session) error {
	switch {
	case s.Status != StatusInProgress:
		return &InvalidStateError{ID: s.ID, Op: "ask", Status: s.Status}
	case s.Pending != nil:
		return &InvalidStateError{ID: s.ID, Op: "ask", Status: s.Status, Reason: "a question is waiting for an answer"}
	case s.Exhausted():
		return &InvalidStateError{ID: s.ID, Op: "ask", Status: s.Status, Reason: "no questions left"}
	}
	return nil
}

// ask generates one question. On failure nothing is committed.
func (c *Controller) ask(ctx context.Context, e *entry, s *Session, sink Sink) (*Session, error) {
	log := logger.WithSession(c.logger, s.ID)
	if sink == nil {
		sink = Discard
	}

	agentIdx, questionIdx := s.Cursor.Agent, s.Cursor.Question
	agent := s.Panel[agentIdx]
	base := Event{SessionID: s.ID, Agent: agent.Role, AgentIndex: agentIdx, QuestionIndex: questionIdx}
	emit := func(kind EventKind, text string) {
		ev := base
		ev.Kind, ev.Text = kind, text
		if err := sink.Emit(ev); err != nil {
			log.Debug("event not delivered", zap.String("event", string(kind)), zap.Error(err))
		}
	}

	askedAt := c.now().UTC()
	stream, err := c.model.Stream(ctx, questionRequest(s, agent, s.Plan[agentIdx][questionIdx], c.cfg.HistoryWindow))
	if err != nil {
		log.Warn("question generation failed", zap.Error(err))
		return nil, err
	}

	// question_start waits for the first chunk; once it is out the question
	// ends with question_end or question_failed.
	started := false
	fail := func(err error) (*Session, error) {
		if started {
			emit(EventQuestionFailed, "")
		}
		return nil, err
	}

	var builder strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			log.Warn("question stream failed", zap.Int("received", builder.Len()), zap.Error(chunk.Err))
			return fail(chunk.Err)
		}
		if !started {
			emit(EventQuestionStart, "")
			started = true
		}
		builder.WriteString(chunk.Text)
		emit(EventQuestionChunk, chunk.Text)
	}
	if err := ctx.Err(); err != nil {
		return fail(&llm.GenerationError{Err: err})
	}

	question := strings.TrimSpace(builder.String())
	if question == "" {
		return fail(&llm.GenerationError{Err: errors.New("model returned an empty question")})
	}

	next := s.Clone()
	next.Pending = &Pending{
		Agent:         agent.Role,
		AgentIndex:    agentIdx,
		QuestionIndex: questionIdx,
		Question:      question,
		AskedAt:       askedAt,
	}
	next.advance()
	endedEarly := e.stop.Load()
	if endedEarly {
		next.Status = StatusCompleted
		next.EndRequested = true
	}
	if err := c.commit(ctx, e, next); err != nil {
		return fail(err)
	}
	emit(EventQuestionEnd, question)

	log.Info("question asked",
		zap.String("agent", agent.Role),
		zap.Int("agent_index", agentIdx),
		zap.Int("question_index", questionIdx),
	)
	if endedEarly {
		c.completed(next, true)
	}
	return next, nil
}

// RecordAnswer appends the answer to the pending question.
func (c *Controller) RecordAnswer(ctx context.Context, id, answer string) (out *Session, err error) {
	e, err := c.acquire(id)
	if err != nil {
		return nil, err
	}
	defer func() { out = c.release(ctx, e, nil, out) }()

	next, err := c.record(ctx, id, e, answer)
	if err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (c *Controller) record(ctx context.Context, id string, e *entry, answer string) (*Session, error) {
	s, err := c.current(ctx, id, e)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, notStarted(id, "record an answer for")
	}
	if s.Status != StatusInProgress {
		return nil, &InvalidStateError{ID: id, Op: "record an answer for", Status: s.Status}
	}
	if s.Pending == nil {
		return nil, &InvalidStateError{ID: id, Op: "record an answer for", Status: s.Status, Reason: "no question is pending"}
	}

	answer = strings.TrimSpace(answer)
	pending := s.Pending

	var feedback string
	if c.cfg.TurnFeedback {
		feedback, err = c.model.Generate(ctx, feedbackRequest(s.Panel[pending.AgentIndex], pending.Question, answer))
		if err != nil {
			logger.WithSession(c.logger, id).Warn("turn feedback failed", zap.Error(err))
			return nil, err
		}
		feedback = strings.TrimSpace(feedback)
	}

	next := s.Clone()
	next.Turns = append(next.Turns, Turn{
		Agent:      pending.Agent,
		Question:   pending.Question,
		Answer:     answer,
		Feedback:   feedback,
		AskedAt:    pending.AskedAt,
		AnsweredAt: c.now().UTC(),
	})
	next.Pending = nil

	endedEarly := e.stop.Load()
	if next.Exhausted() || endedEarly {
		next.Status = StatusCompleted
		next.EndRequested = endedEarly
	}
	if err := c.commit(ctx, e, next); err != nil {
		return nil, err
	}

	logger.WithSession(c.logger, id).Info("answer recorded",
		zap.String("agent", pending.Agent),
		zap.Int("turns", len(next.Turns)),
		zap.String("status", string(next.Status)),
	)
	if next.Status == StatusCompleted {
		c.completed(next, endedEarly)
	}
	return next, nil
}

// Submit records the answer and, unless the interview is over, streams the
// next question, all under one operation.
func (c *Controller) Submit(ctx context.Context, id, answer string, sink Sink) (out *Session, err error) {
	if sink == nil {
		sink = Discard
	}

	e, err := c.acquire(id)
	if err != nil {
		return nil, err
	}
	defer func() { out = c.release(ctx, e, sink, out) }()

	next, err := c.record(ctx, id, e, answer)
	if err != nil {
		return nil, err
	}

	if next.Status == StatusCompleted {
		if !next.EndRequested {
			_ = sink.Emit(Event{Kind: EventCompleted, SessionID: id})
		}
		return next.Clone(), nil
	}

	if e.stop.Load() {
		ended, err := c.endNow(ctx, e, next)
		if err != nil {
			return nil, err
		}
		return ended.Clone(), nil
	}

	asked, err := c.ask(ctx, e, next, sink)
	if err != nil {
		return nil, err
	}
	return asked.Clone(), nil
}

// End stops the interview and reports whether the session is completed on
// return. When another operation is in flight End only flags the session;
// that operation finishes its current step, completes the session and
// reports the completion to its own sink.
func (c *Controller) End(ctx context.Context, id string) (bool, error) {
	for {
		e := c.entry(id)
		// notify before stop: whoever sees stop also sees notify.
		e.notify.Store(true)
		e.stop.Store(true)
		if !e.op.TryLock() {
			logger.WithSession(c.logger, id).Info("end requested during an operation")
			return false, nil
		}
		if e.retired {
			e.op.Unlock()
			continue
		}
		done, err := c.end(ctx, id, e)
		e.op.Unlock()
		return done, err
	}
}

func (c *Controller) end(ctx context.Context, id string, e *entry) (bool, error) {
	s, err := c.current(ctx, id, e)
	if err != nil {
		e.notify.Store(false)
		return false, err
	}
	if s == nil || s.Status == StatusNotStarted {
		e.stop.Store(false)
		e.notify.Store(false)
		c.retire(e)
		if s == nil {
			return false, notStarted(id, "end")
		}
		return false, &InvalidStateError{ID: id, Op: "end", Status: s.Status}
	}

	if s.Status == StatusInProgress {
		if _, err := c.endNow(ctx, e, s); err != nil {
			e.notify.Store(false)
			return false, err
		}
	}
	c.retire(e)
	return e.notify.CompareAndSwap(true, false), nil
}

func (c *Controller) endNow(ctx context.Context, e *entry, s *Session) (*Session, error) {
	next := s.Clone()
	next.Status = StatusCompleted
	next.EndRequested = true
	if err := c.commit(ctx, e, next); err != nil {
		return nil, err
	}
	c.completed(next, true)
	return next, nil
}

func (c *Controller) completed(s *Session, endedEarly bool) {
	c.recorder.SessionCompleted(endedEarly)
	logger.WithSession(c.logger, s.ID).Info("interview completed",
		zap.Int("turns", len(s.Turns)),
		zap.Int("planned", s.TotalQuestions()),
		zap.Bool("ended_early", endedEarly),
	)
}

// notStarted reports an operation on a session id that was never started.
func notStarted(id, op string) error {
	return &InvalidStateError{ID: id, Op: op, Status: StatusNotStarted, Reason: "interview has not started"}
}
