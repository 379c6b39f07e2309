package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/domain"
	"github.com/spigell/panel-interview/internal/extract"
	"github.com/spigell/panel-interview/internal/feedback"
	"github.com/spigell/panel-interview/internal/logger"
	"github.com/spigell/panel-interview/internal/panel"
)

// upload is a form submission carrying either text or a PDF document.
type upload struct {
	Text     string
	Document []byte
	Name     string
}

// readUpload reads textField or the fileField PDF from a urlencoded or
// multipart form limited to the configured upload size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, textField, fileField string) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, badRequest("invalid multipart form: %v", err)
		}
	} else if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, badRequest("invalid form: %v", err)
	}

	up := &upload{Text: strings.TrimSpace(r.FormValue(textField))}

	file, header, err := r.FormFile(fileField)
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		return nil, badRequest("reading %s: %v", fileField, err)
	default:
		defer func() {
			if cerr := file.Close(); cerr != nil {
				s.logger.Warn("closing uploaded file", zap.Error(cerr))
			}
		}()
		if !extract.IsPDF(header.Filename, header.Header.Get("Content-Type")) {
			return nil, badRequest("only PDF documents are accepted")
		}
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("reading uploaded file: %w", err)
		}
		up.Document = data
		up.Name = header.Filename
	}

	if up.Text == "" && len(up.Document) == 0 {
		return nil, badRequest("provide %s or a %s document", textField, fileField)
	}
	return up, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r, "jd_text", "jd_pdf")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.panels.Analyze(r.Context(), panel.Input{
		Text:         up.Text,
		Document:     up.Document,
		DocumentName: up.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	record, err := s.panels.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type savePanelRequest struct {
	Agents []domain.Agent `json:"agents"`
}

func (s *Server) handleSavePanel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req savePanelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid panel document: %v", err))
		return
	}

	record, err := s.panels.Save(r.Context(), r.PathValue("id"), req.Agents)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type resumeResponse struct {
	SessionID string `json:"session_id"`
	Notes     string `json:"notes"`
}

// handleResume condenses a resume and keeps the notes for the next interview
// started by the same session.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)

	up, err := s.readUpload(w, r, "resume_text", "resume_pdf")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if id := strings.TrimSpace(r.FormValue("session_id")); id != "" {
		sid = id
	}

	text := up.Text
	if len(up.Document) > 0 {
		if text, err = extract.PDF(up.Document); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	notes, err := s.resumes.KeyPoints(r.Context(), text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.storeNotes(sid, notes)

	logger.WithSession(s.logger, sid).Info("resume notes stored", zap.Int("notes_length", len(notes)))
	writeJSON(w, http.StatusOK, resumeResponse{SessionID: sid, Notes: notes})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.interviews.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// summary loads the session and summarizes it once. A completed session
// never changes, so the summary is cached.
func (s *Server) summary(r *http.Request) (*feedback.Summary, error) {
	id := r.PathValue("id")

	if cached, ok := s.summaries.Get(id); ok {
		return cached, nil
	}

	session, err := s.interviews.Load(r.Context(), id)
	if err != nil {
		return nil, err
	}
	summary, err := s.feedback.Summarize(r.Context(), session)
	if err != nil {
		return nil, err
	}

	s.summaries.Add(id, summary)
	return summary, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.summary(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFeedbackHTML(w http.ResponseWriter, r *http.Request) {
	summary, err := s.summary(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := feedback.HTML(summary)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	summary, err := s.summary(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := feedback.Render(summary)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "interview-feedback-"+summary.SessionID+".pdf"))
	_, _ = w.Write(body)
}

type clientConfig struct {
	SilenceTimeoutMS int64 `json:"silence_timeout_ms"`
}

func (s *Server) handleClientConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, clientConfig{SilenceTimeoutMS: s.cfg.SilenceTimeout.Milliseconds()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
