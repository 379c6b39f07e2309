package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/extract"
	"github.com/spigell/panel-interview/internal/feedback"
	"github.com/spigell/panel-interview/internal/interview"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/llm/llmtest"
	"github.com/spigell/panel-interview/internal/metrics"
	"github.com/spigell/panel-interview/internal/panel"
	"github.com/spigell/panel-interview/internal/resume"
	"github.com/spigell/panel-interview/internal/store"
)

const resumeNotes = "- Built payment systems in Go"

func scriptedModel() *llmtest.Fake {
	fake := llmtest.New()
	fake.GenerateFunc = func(req llm.Request) (string, error) {
		switch {
		case req.JSON:
			return llmtest.PanelJSON("Go Expert", "Database Expert"), nil
		case strings.Contains(req.User, "Resume:"):
			return resumeNotes, nil
		default:
			return "## Go Expert\nSolid.\n## Database Expert\nReview indexes.\n## Overall\nGood.", nil
		}
	}
	return fake
}

type testEnv struct {
	server *httptest.Server
	fake   *llmtest.Fake
	st     *store.Memory
}

func newTestEnv(t *testing.T, fake *llmtest.Fake) *testEnv {
	t.Helper()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus(reg)
	gw := llm.NewGateway(fake, fake, llm.WithProviders("fake", "fake"), llm.WithRecorder(recorder))
	st := store.NewMemory()
	log := zap.NewNop()

	srv, err := New(Deps{
		Panels:     panel.NewBuilder(gw, st, nil, panel.Config{Size: 2}, recorder, log),
		Interviews: interview.NewController(gw, st, interview.Config{QuestionsPerAgent: 1}, recorder, log),
		Feedback:   feedback.NewExporter(gw, log),
		Resumes:    resume.NewAnalyzer(gw, nil, 0, log),
		Gatherer:   reg,
		Recorder:   recorder,
		Logger:     log,
	}, Config{})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, fake: fake, st: st}
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values, cookie string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookie})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) postFile(t *testing.T, path, field, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.server.URL+path, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) analyze(t *testing.T, jd string) *panel.Result {
	t.Helper()
	resp := e.postForm(t, "/api/analyze", url.Values{"jd_text": {jd}}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[*panel.Result](t, resp)
}

func (e *testEnv) dial(t *testing.T, cookie string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", DefaultCookieName+"="+cookie)
	}
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type message struct {
	Type          string             `json:"type"`
	SessionID     string             `json:"session_id"`
	Agent         string             `json:"agent"`
	AgentIndex    int                `json:"agent_index"`
	QuestionIndex int                `json:"question_index"`
	Text          string             `json:"text"`
	Code          string             `json:"code"`
	Error         string             `json:"error"`
	Session       *interview.Session `json:"session"`
}

func read(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

// readUntil collects messages up to and including the first of kind.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) []message {
	t.Helper()
	var out []message
	for {
		m := read(t, conn)
		out = append(out, m)
		if m.Type == kind || m.Type == MessageError {
			return out
		}
	}
}

func types(msgs []message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestAnalyzeGeneratesThenReuses(t *testing.T) {
	env := newTestEnv(t, scriptedModel())

	first := env.analyze(t, "Senior Go engineer")
	assert.False(t, first.Reused)
	require.Len(t, first.Panel.Agents, 2)
	assert.Equal(t, "Go Expert", first.Panel.Agents[0].Role)

	second := env.analyze(t, "Senior Go engineer, remote")
	assert.True(t, second.Reused)
	assert.Equal(t, first.Panel.ID, second.Panel.ID)
	assert.Equal(t, 1, env.st.PanelCount())
}

func TestAnalyzeErrors(t *testing.T) {
	fake := scriptedModel()
	env := newTestEnv(t, fake)

	resp := env.postForm(t, "/api/analyze", url.Values{}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeBadRequest, decode[errorResponse](t, resp).Code)

	resp = env.postFile(t, "/api/analyze", "jd_pdf", "jd.txt", []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.postFile(t, "/api/analyze", "jd_pdf", "jd.pdf", []byte("not really a pdf"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, CodeExtraction, decode[errorResponse](t, resp).Code)

	fake.EmbedFunc = func(string) ([]float64, error) { return nil, errors.New("quota exceeded") }
	resp = env.postForm(t, "/api/analyze", url.Values{"jd_text": {"Go engineer"}}, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, CodeEmbedding, decode[errorResponse](t, resp).Code)
}

func TestAnalyzeRejectsOversizedUpload(t *testing.T) {
	srv, err := New(Deps{Logger: zap.NewNop()}, Config{MaxUploadBytes: 64})
	require.NoError(t, err)

	form := url.Values{"jd_text": {strings.Repeat("a", 512)}}
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeTooLarge, body.Code)
}

func TestPanelGetAndSave(t *testing.T) {
	env := newTestEnv(t, scriptedModel())
	result := env.analyze(t, "Data engineer")

	body := `{"agents":[{"role":" Spark Expert ","focus":"joins"},{"role":"Behavioral Expert"}]}`
	req, err := http.NewRequest(http.MethodPut, env.server.URL+"/api/panels/"+result.Panel.ID, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := env.get(t, "/api/panels/"+result.Panel.ID)
	require.Equal(t, http.StatusOK, got.StatusCode)
	saved := decode[map[string]any](t, got)
	agents := saved["agents"].([]any)
	require.Len(t, agents, 2)
	assert.Equal(t, "Spark Expert", agents[0].(map[string]any)["role"])

	req, err = http.NewRequest(http.MethodPut, env.server.URL+"/api/panels/"+result.Panel.ID, strings.NewReader(`{"agents":[{"role":""}]}`))
	require.NoError(t, err)
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	missing := env.get(t, "/api/panels/nope")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, CodeNotFound, decode[errorResponse](t, missing).Code)
}

func TestInterviewOverWebSocket(t *testing.T) {
	env := newTestEnv(t, scriptedModel())
	result := env.analyze(t, "Backend engineer")
	conn := env.dial(t, "")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, PanelID: result.Panel.ID}))
	msgs := readUntil(t, conn, string(interview.EventQuestionEnd))
	assert.Equal(t, []string{"session", "question_start", "question_chunk", "question_chunk", "question_end"}, types(msgs))
	id := msgs[0].SessionID
	require.NotEmpty(t, id)
	assert.Equal(t, interview.StatusInProgress, msgs[0].Session.Status)
	assert.Equal(t, "Go Expert", msgs[1].Agent)
	assert.Equal(t, "Question 1?", msgs[4].Text)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageSubmit, Text: "Goroutines are cheap."}))
	msgs = readUntil(t, conn, string(interview.EventQuestionEnd))
	assert.Equal(t, "question_start", msgs[0].Type)
	assert.Equal(t, "Database Expert", msgs[0].Agent)
	assert.Equal(t, 1, msgs[0].AgentIndex)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageSubmit, Text: "Index the foreign keys."}))
	done := read(t, conn)
	assert.Equal(t, string(interview.EventCompleted), done.Type)
	assert.Equal(t, id, done.SessionID)

	resp := env.get(t, "/api/sessions/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[*interview.Session](t, resp)
	assert.Equal(t, interview.StatusCompleted, session.Status)
	require.Len(t, session.Turns, 2)
	assert.Equal(t, "Index the foreign keys.", session.Turns[1].Answer)

	resp = env.get(t, "/api/sessions/"+id+"/summary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[*feedback.Summary](t, resp)
	require.Len(t, summary.Sections, 2)
	assert.Equal(t, "Review indexes.", summary.Sections[1].Body)
	generated, _, _ := env.fake.Counts()

	resp = env.get(t, "/api/sessions/"+id+"/export")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	pdf, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	resp = env.get(t, "/api/sessions/"+id+"/feedback")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h2>Database Expert</h2>")

	generatedAfter, _, _ := env.fake.Counts()
	assert.Equal(t, generated, generatedAfter, "summary is generated once")
}

func TestResumeNotesReachTheFirstQuestion(t *testing.T) {
	env := newTestEnv(t, scriptedModel())
	result := env.analyze(t, "Payments engineer")

	resp := env.postForm(t, "/api/resume", url.Values{"resume_text": {"Ten years of Go at a payments company."}}, "abc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored := decode[resumeResponse](t, resp)
	assert.Equal(t, "abc", stored.SessionID)
	assert.Equal(t, resumeNotes, stored.Notes)

	conn := env.dial(t, "abc")
	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, PanelID: result.Panel.ID}))
	msgs := readUntil(t, conn, string(interview.EventQuestionEnd))
	assert.Equal(t, "abc", msgs[0].SessionID)
	assert.Equal(t, resumeNotes, msgs[0].Session.ResumeNotes)
	assert.Contains(t, env.fake.LastStream().User, "Resume Notes:\n"+resumeNotes)
}

func TestStartOnUsedSessionAllocatesNewID(t *testing.T) {
	env := newTestEnv(t, scriptedModel())
	result := env.analyze(t, "SRE")
	conn := env.dial(t, "abc")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, PanelID: result.Panel.ID}))
	first := readUntil(t, conn, string(interview.EventQuestionEnd))
	assert.Equal(t, "abc", first[0].SessionID)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, SessionID: "abc", PanelID: result.Panel.ID}))
	second := readUntil(t, conn, string(interview.EventQuestionEnd))
	require.Equal(t, MessageSession, second[0].Type)
	assert.NotEqual(t, "abc", second[0].SessionID)
	assert.NotEmpty(t, second[0].SessionID)
}

func TestResumeReplaysPendingQuestion(t *testing.T) {
	env := newTestEnv(t, scriptedModel())
	result := env.analyze(t, "Platform engineer")

	conn := env.dial(t, "")
	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, PanelID: result.Panel.ID}))
	msgs := readUntil(t, conn, string(interview.EventQuestionEnd))
	id := msgs[0].SessionID
	question := msgs[len(msgs)-1].Text
	require.NoError(t, conn.Close())

	_, streams, _ := env.fake.Counts()

	again := env.dial(t, "")
	require.NoError(t, again.WriteJSON(Inbound{Type: MessageResume, SessionID: id}))
	replay := readUntil(t, again, string(interview.EventQuestionEnd))
	assert.Equal(t, []string{"session", "question_start", "question_chunk", "question_end"}, types(replay))
	assert.Equal(t, question, replay[3].Text)
	require.NotNil(t, replay[0].Session.Pending)

	_, streamsAfter, _ := env.fake.Counts()
	assert.Equal(t, streams, streamsAfter, "replay must not call the model")

	require.NoError(t, again.WriteJSON(Inbound{Type: MessageResume, SessionID: "unknown"}))
	notFound := read(t, again)
	assert.Equal(t, MessageError, notFound.Type)
	assert.Equal(t, CodeNotFound, notFound.Code)
}

func TestEndInterviewOverWebSocket(t *testing.T) {
	env := newTestEnv(t, scriptedModel())
	result := env.analyze(t, "QA engineer")
	conn := env.dial(t, "")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, PanelID: result.Panel.ID}))
	msgs := readUntil(t, conn, string(interview.EventQuestionEnd))
	id := msgs[0].SessionID

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageEnd}))
	done := read(t, conn)
	assert.Equal(t, string(interview.EventCompleted), done.Type)

	require.Eventually(t, func() bool {
		resp, err := http.Get(env.server.URL + "/api/sessions/" + id)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var s interview.Session
		return json.NewDecoder(resp.Body).Decode(&s) == nil && s.Status == interview.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageSubmit, Text: "late"}))
	rejected := read(t, conn)
	assert.Equal(t, MessageError, rejected.Type)
	assert.Equal(t, CodeInvalidState, rejected.Code)
}

func TestFailedQuestionIsAskedAgain(t *testing.T) {
	fake := scriptedModel()
	var streams atomic.Int32
	fake.StreamFunc = func(llm.Request) ([]string, error) {
		if streams.Add(1) <= 2 {
			return []string{"Half a "}, errors.New("stream reset")
		}
		return []string{"Question ", fmt.Sprintf("%d?", streams.Load())}, nil
	}
	env := newTestEnv(t, fake)
	result := env.analyze(t, "Backend engineer")
	conn := env.dial(t, "")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, PanelID: result.Panel.ID}))
	msgs := readUntil(t, conn, MessageError)
	assert.Equal(t, []string{"session", "question_start", "question_chunk", "question_failed", "error"}, types(msgs))
	assert.Equal(t, CodeGeneration, msgs[4].Code)
	id := msgs[0].SessionID

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageNext}))
	msgs = readUntil(t, conn, MessageError)
	assert.Equal(t, []string{"question_start", "question_chunk", "question_failed", "error"}, types(msgs))
	assert.Equal(t, id, msgs[3].SessionID)

	// A reconnecting client resumes and gets the question generated now.
	again := env.dial(t, "")
	require.NoError(t, again.WriteJSON(Inbound{Type: MessageResume, SessionID: id}))
	msgs = readUntil(t, again, string(interview.EventQuestionEnd))
	assert.Equal(t, []string{"session", "question_start", "question_chunk", "question_chunk", "question_end"}, types(msgs))
	assert.Nil(t, msgs[0].Session.Pending)
	assert.Equal(t, id, msgs[4].SessionID)
	assert.Equal(t, "Question 3?", msgs[4].Text)

	require.NoError(t, again.WriteJSON(Inbound{Type: MessageSubmit, Text: "Goroutines are cheap."}))
	msgs = readUntil(t, again, string(interview.EventQuestionEnd))
	assert.Equal(t, "Database Expert", msgs[len(msgs)-1].Agent)

	require.NoError(t, again.WriteJSON(Inbound{Type: MessageSubmit, Text: "Index the foreign keys."}))
	done := read(t, again)
	assert.Equal(t, string(interview.EventCompleted), done.Type)
	assert.Equal(t, id, done.SessionID)

	resp := env.get(t, "/api/sessions/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[*interview.Session](t, resp)
	assert.Equal(t, interview.StatusCompleted, session.Status)
	assert.Len(t, session.Turns, 2)
}

func TestEndDuringQuestionCompletesAfterIt(t *testing.T) {
	fake := scriptedModel()
	fake.Gate = make(chan struct{})
	env := newTestEnv(t, fake)
	result := env.analyze(t, "Data engineer")
	conn := env.dial(t, "")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, PanelID: result.Panel.ID}))
	var msgs []message
	for range 4 {
		msgs = append(msgs, read(t, conn))
	}
	assert.Equal(t, []string{"session", "question_start", "question_chunk", "question_chunk"}, types(msgs))
	id := msgs[0].SessionID

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageEnd}))
	time.Sleep(50 * time.Millisecond)
	close(fake.Gate)

	msgs = readUntil(t, conn, string(interview.EventCompleted))
	assert.Equal(t, []string{"question_end", "completed"}, types(msgs))

	resp := env.get(t, "/api/sessions/"+id+"/export")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCachesAreBounded(t *testing.T) {
	srv, err := New(Deps{Logger: zap.NewNop()}, Config{SummaryCache: 1, NotesTTL: 20 * time.Millisecond})
	require.NoError(t, err)

	srv.storeNotes("a", "- Go")
	assert.Equal(t, "- Go", srv.takeNotes("", "a"))
	assert.Empty(t, srv.takeNotes("a"), "notes are handed out once")

	srv.storeNotes("b", "- SQL")
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, srv.takeNotes("b"), "unclaimed notes expire")

	srv.summaries.Add("s1", &feedback.Summary{})
	srv.summaries.Add("s2", &feedback.Summary{})
	assert.Equal(t, 1, srv.summaries.Len())
	_, ok := srv.summaries.Get("s2")
	assert.True(t, ok)
}

func TestSummaryBeforeCompletionConflicts(t *testing.T) {
	env := newTestEnv(t, scriptedModel())
	result := env.analyze(t, "ML engineer")
	conn := env.dial(t, "")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageStart, PanelID: result.Panel.ID}))
	msgs := readUntil(t, conn, string(interview.EventQuestionEnd))

	resp := env.get(t, "/api/sessions/"+msgs[0].SessionID+"/export")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeExportNotReady, decode[errorResponse](t, resp).Code)

	resp = env.get(t, "/api/sessions/missing/summary")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownMessageType(t *testing.T) {
	env := newTestEnv(t, scriptedModel())
	conn := env.dial(t, "")

	require.NoError(t, conn.WriteJSON(Inbound{Type: "dance"}))
	m := read(t, conn)
	assert.Equal(t, MessageError, m.Type)
	assert.Equal(t, CodeBadRequest, m.Code)
}

func TestClientConfigHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, scriptedModel())

	resp := env.get(t, "/api/client-config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2500), decode[clientConfig](t, resp).SilenceTimeoutMS)

	resp = env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn := env.dial(t, "")
	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageResume, SessionID: "nope"}))
	read(t, conn)

	resp = env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `panel_gateway_messages_total{type="resume"} 1`)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{badRequest("x"), http.StatusBadRequest, CodeBadRequest},
		{&extract.ExtractionError{Reason: "x"}, http.StatusUnprocessableEntity, CodeExtraction},
		{&llm.EmbeddingError{Err: errors.New("x")}, http.StatusBadGateway, CodeEmbedding},
		{fmt.Errorf("wrapped: %w", &llm.GenerationError{Err: errors.New("x")}), http.StatusBadGateway, CodeGeneration},
		{&interview.NotFoundError{ID: "x"}, http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("panel x: %w", store.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{&interview.InvalidStateError{ID: "x"}, http.StatusConflict, CodeInvalidState},
		{&interview.BusyError{ID: "x"}, http.StatusTooManyRequests, CodeBusy},
		{&feedback.ExportError{SessionID: "x"}, http.StatusConflict, CodeExportNotReady},
		{context.DeadlineExceeded, http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("classify(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
