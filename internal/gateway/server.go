// Package gateway exposes panels, interviews and feedback over HTTP and a
// WebSocket that streams interview questions as they are generated.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/domain"
	"github.com/spigell/panel-interview/internal/feedback"
	"github.com/spigell/panel-interview/internal/interview"
	"github.com/spigell/panel-interview/internal/logger"
	"github.com/spigell/panel-interview/internal/metrics"
	"github.com/spigell/panel-interview/internal/panel"
)

const (
	DefaultMaxUploadBytes  = 10 << 20
	DefaultCookieName      = "sid"
	DefaultSilenceTimeout  = 2500 * time.Millisecond
	DefaultShutdownTimeout = 5 * time.Second
	DefaultSummaryCache    = 256
	DefaultNotesTTL        = time.Hour

	maxPendingNotes = 4096
)

type Panels interface {
	Analyze(ctx context.Context, in panel.Input) (*panel.Result, error)
	Get(ctx context.Context, id string) (*domain.PanelRecord, error)
	Save(ctx context.Context, id string, agents []domain.Agent) (*domain.PanelRecord, error)
}

type Interviews interface {
	Load(ctx context.Context, id string) (*interview.Session, error)
	Start(ctx context.Context, id string, panel *domain.PanelRecord, notes string) (*interview.Session, error)
	AskNext(ctx context.Context, id string, sink interview.Sink) (*interview.Session, error)
	Submit(ctx context.Context, id, answer string, sink interview.Sink) (*interview.Session, error)
	// End reports whether the session is completed on return.
	End(ctx context.Context, id string) (bool, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, session *interview.Session) (*feedback.Summary, error)
}

type ResumeAnalyzer interface {
	KeyPoints(ctx context.Context, text string) (string, error)
}

type Config struct {
	MaxUploadBytes  int64
	CookieName      string
	SilenceTimeout  time.Duration
	ShutdownTimeout time.Duration
	// SummaryCache is how many feedback summaries are kept in memory.
	SummaryCache int
	// NotesTTL bounds how long resume notes wait for an interview to start.
	NotesTTL time.Duration
}

// Deps are the services behind the gateway. Gatherer is optional; without
// it /metrics is not served.
type Deps struct {
	Panels     Panels
	Interviews Interviews
	Feedback   Summarizer
	Resumes    ResumeAnalyzer
	Gatherer   prometheus.Gatherer
	Recorder   metrics.Recorder
	Logger     *zap.Logger
}

type Server struct {
	panels     Panels
	interviews Interviews
	feedback   Summarizer
	resumes    ResumeAnalyzer
	gatherer   prometheus.Gatherer
	recorder   metrics.Recorder
	logger     *zap.Logger
	cfg        Config
	upgrader   websocket.Upgrader
	newID      func() string

	notes     *expirable.LRU[string, string]
	summaries *lru.Cache[string, *feedback.Summary]

	// mu guards conns and makes taking notes atomic.
	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func New(deps Deps, cfg Config) (*Server, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultSilenceTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.SummaryCache <= 0 {
		cfg.SummaryCache = DefaultSummaryCache
	}
	if cfg.NotesTTL <= 0 {
		cfg.NotesTTL = DefaultNotesTTL
	}

	summaries, err := lru.New[string, *feedback.Summary](cfg.SummaryCache)
	if err != nil {
		return nil, fmt.Errorf("summary cache: %w", err)
	}

	return &Server{
		panels:     deps.Panels,
		interviews: deps.Interviews,
		feedback:   deps.Feedback,
		resumes:    deps.Resumes,
		gatherer:   deps.Gatherer,
		recorder:   metrics.OrNop(deps.Recorder),
		logger:     logger.Component(deps.Logger, "gateway"),
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		newID:     uuid.NewString,
		notes:     expirable.NewLRU[string, string](maxPendingNotes, nil, cfg.NotesTTL),
		summaries: summaries,
		conns:     make(map[*wsConn]struct{}),
	}, nil
}

// RegisterRoutes registers every gateway endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/panels/{id}", s.handleGetPanel)
	mux.HandleFunc("PUT /api/panels/{id}", s.handleSavePanel)
	mux.HandleFunc("POST /api/resume", s.handleResume)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSession)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/sessions/{id}/feedback", s.handleFeedbackHTML)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.handleExport)
	mux.HandleFunc("GET /api/client-config", s.handleClientConfig)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Run serves on addr until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(s.closeConnections)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gateway")
	// ctx is already cancelled here.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	//nolint:contextcheck
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown gateway: %w", err)
	}
	return nil
}

// Hijacked WebSocket connections are not tracked by http.Server.Shutdown.
func (s *Server) closeConnections() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (s *Server) track(c *wsConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) storeNotes(sid, notes string) {
	s.notes.Add(sid, notes)
}

// takeNotes returns the first notes stored under one of ids and forgets
// them.
func (s *Server) takeNotes(ids ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if notes, ok := s.notes.Peek(id); ok {
			s.notes.Remove(id)
			return notes
		}
	}
	return ""
}

// sessionID returns the sid cookie, issuing a new one when absent.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := s.newID()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
