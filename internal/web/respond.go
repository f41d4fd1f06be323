package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/stockwallet/backend/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

// writeError maps domain errors to HTTP statuses. Validation and unknown
// reference problems are the caller's fault, missing resources are 404,
// an insufficient sale is a conflict with the recorded history, and a
// failing store is a temporary condition.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *domain.ValidationError
		rerr *domain.ReferenceError
		qerr *domain.InsufficientQuantityError
		serr *domain.StoreError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &rerr):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &qerr):
		s.writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &serr):
		s.logger.Error("store failure", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage unavailable"})
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
