package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body; anything unreadable is a
// validation failure on "body".
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.NewValidationError("body", "request body is empty")
		}
		return apperr.NewValidationError("body", "malformed JSON")
	}
	return nil
}

// writeError maps the error taxonomy onto status codes. Server-side
// failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Details: ve.Fields})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, apperr.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "resource was modified concurrently, retry"})
	case errors.Is(err, apperr.ErrStatusMismatch):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "notification does not match gateway status"})
	case errors.Is(err, apperr.ErrInvalidSignature):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "invalid signature"})
	default:
		if log != nil {
			log.Error("request failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// pathID reads a numeric id from the route; anything that is not a
// positive integer cannot name a row.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrNotFound
	}
	return id, nil
}
