package web

import (
	"errors"
	"net/http"

	"github.com/stockwallet/backend/internal/domain"
	"github.com/stockwallet/backend/internal/usecase"
)

func (s *Server) handleAllPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.ledger.ListAllPositions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handlePortfolioPositions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.portfolios.GetPortfolio(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	positions, err := s.ledger.ComputePositionsForPortfolio(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleStockPosition(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	portfolioID := r.URL.Query().Get("portfolio")
	if portfolioID == "" {
		s.writeError(w, &domain.ValidationError{Field: "portfolio", Reason: "query parameter is required"})
		return
	}
	pos, err := s.ledger.ComputePosition(r.Context(), portfolioID, symbol)
	if err != nil {
		var iqe *domain.InsufficientQuantityError
		if errors.As(err, &iqe) && pos != nil {
			// Broken scopes still expose their last valid state so the
			// client can show what needs fixing.
			s.writeJSON(w, http.StatusConflict, struct {
				Error    string           `json:"error"`
				Position *domain.Position `json:"position"`
			}{Error: err.Error(), Position: pos})
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	bucket, err := usecase.ParseBucketing(r.URL.Query().Get("bucket"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	series, err := s.perf.Series(r.Context(), r.URL.Query().Get("id"), bucket)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, series)
}
