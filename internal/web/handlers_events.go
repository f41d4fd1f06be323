package web

import (
	"encoding/json"
	"net/http"

	"github.com/stockwallet/backend/internal/domain"
)

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed event: " + err.Error()})
		return
	}
	saved, err := s.ledger.AddEvent(r.Context(), &ev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.ledger.ListEvents(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		filtered := events[:0]
		for _, ev := range events {
			if ev.Symbol == symbol {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	opts := parseListOptions(r)
	sortEvents(events, opts)
	s.writeJSON(w, http.StatusOK, page(w, opts, events))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.ledger.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed event: " + err.Error()})
		return
	}
	saved, err := s.ledger.UpdateEvent(r.Context(), r.PathValue("id"), &ev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ledger.RemoveEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, removed)
}
