package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"docqa/internal/domain"
	"docqa/internal/service"
)

// retryAfterSeconds is advertised on 503 responses for retryable collaborator failures.
const retryAfterSeconds = 5

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *domain.CollaboratorError
	switch {
	case errors.Is(err, domain.ErrUnsupportedType):
		writeDetail(w, http.StatusBadRequest, "Unsupported file type. Use pdf/docx/txt.")
	case errors.Is(err, domain.ErrNoContent):
		writeDetail(w, http.StatusBadRequest, "No text could be extracted from the document.")
	case errors.Is(err, domain.ErrEmptyQuery):
		writeDetail(w, http.StatusBadRequest, "query is required")
	case errors.Is(err, domain.ErrExtraction):
		writeDetail(w, http.StatusUnprocessableEntity, "The document could not be read.")
	case errors.Is(err, service.ErrNoResponder):
		writeDetail(w, http.StatusServiceUnavailable, "No responder is configured.")
	case errors.As(err, &ce):
		s.logger.WarnContext(r.Context(), "collaborator failure",
			"kind", ce.Kind,
			"reason", ce.Reason,
			"op", ce.Op,
			"error", ce.Err,
		)
		if ce.Retryable() {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			writeDetail(w, http.StatusServiceUnavailable, string(ce.Kind)+" "+string(ce.Reason))
			return
		}
		writeDetail(w, http.StatusBadGateway, string(ce.Kind)+" "+string(ce.Reason))
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}
