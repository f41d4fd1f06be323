package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stockwallet/backend/internal/domain"
)

func (s *Server) handleAddPortfolio(w http.ResponseWriter, r *http.Request) {
	var p domain.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed portfolio: " + err.Error()})
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		s.writeError(w, &domain.ValidationError{Field: "name", Reason: "must not be empty"})
		return
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.portfolios.SavePortfolio(r.Context(), &p); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &p)
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	items, err := s.portfolios.ListPortfolios(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := parseListOptions(r)
	sortPortfolios(items, opts)
	s.writeJSON(w, http.StatusOK, page(w, opts, items))
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.portfolios.GetPortfolio(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	var p domain.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed portfolio: " + err.Error()})
		return
	}
	p.ID = r.PathValue("id")
	if _, err := s.portfolios.GetPortfolio(r.Context(), p.ID); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.portfolios.SavePortfolio(r.Context(), &p); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &p)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolios.DeletePortfolio(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleAddBroker(w http.ResponseWriter, r *http.Request) {
	var b domain.Broker
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed broker: " + err.Error()})
		return
	}
	if strings.TrimSpace(b.Name) == "" {
		s.writeError(w, &domain.ValidationError{Field: "name", Reason: "must not be empty"})
		return
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := s.brokers.SaveBroker(r.Context(), &b); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &b)
}

func (s *Server) handleListBrokers(w http.ResponseWriter, r *http.Request) {
	items, err := s.brokers.ListBrokers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := parseListOptions(r)
	sortBrokers(items, opts)
	s.writeJSON(w, http.StatusOK, page(w, opts, items))
}

func (s *Server) handleGetBroker(w http.ResponseWriter, r *http.Request) {
	b, err := s.brokers.GetBroker(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBroker(w http.ResponseWriter, r *http.Request) {
	var b domain.Broker
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed broker: " + err.Error()})
		return
	}
	b.ID = r.PathValue("id")
	if _, err := s.brokers.GetBroker(r.Context(), b.ID); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.brokers.SaveBroker(r.Context(), &b); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &b)
}

func (s *Server) handleDeleteBroker(w http.ResponseWriter, r *http.Request) {
	if err := s.brokers.DeleteBroker(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}
