package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/domain"
	"github.com/spigell/panel-interview/internal/extract"
	"github.com/spigell/panel-interview/internal/feedback"
	"github.com/spigell/panel-interview/internal/interview"
	"github.com/spigell/panel-interview/internal/llm"
	"github.com/spigell/panel-interview/internal/store"
)

const (
	CodeBadRequest     = "bad_request"
	CodeTooLarge       = "too_large"
	CodeExtraction     = "extraction_failed"
	CodeEmbedding      = "embedding_failed"
	CodeGeneration     = "generation_failed"
	CodeNotFound       = "not_found"
	CodeInvalidState   = "invalid_state"
	CodeExportNotReady = "export_unavailable"
	CodeBusy           = "busy"
	CodeInternal       = "internal"
)

// requestError is a problem with the request itself.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error onto an HTTP status and a stable code.
func classify(err error) (int, string) {
	var (
		reqErr     *requestError
		maxErr     *http.MaxBytesError
		extractErr *extract.ExtractionError
		embedErr   *llm.EmbeddingError
		genErr     *llm.GenerationError
		notFound   *interview.NotFoundError
		invalid    *interview.InvalidStateError
		busy       *interview.BusyError
		exportErr  *feedback.ExportError
	)

	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, CodeTooLarge
	case errors.As(err, &reqErr):
		return reqErr.status, CodeBadRequest
	case errors.Is(err, domain.ErrInvalidPanel):
		return http.StatusBadRequest, CodeBadRequest
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity, CodeExtraction
	case errors.As(err, &embedErr):
		return http.StatusBadGateway, CodeEmbedding
	case errors.As(err, &genErr):
		return http.StatusBadGateway, CodeGeneration
	case errors.As(err, &notFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &busy):
		return http.StatusTooManyRequests, CodeBusy
	case errors.As(err, &invalid):
		return http.StatusConflict, CodeInvalidState
	case errors.As(err, &exportErr):
		return http.StatusConflict, CodeExportNotReady
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	log := s.logger.With(
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Warn("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
