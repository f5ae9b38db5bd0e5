package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/servomount/internal/thing"
)

// Query limits for the history endpoint.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleListProperties returns every property value keyed by name.
func (s *Server) handleListProperties(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.thing.PropertyValues())
}

// handleGetProperty returns {name: value} for one property.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := s.thing.Property(name)
	if err != nil {
		writeNotFound(w, "property not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{name: p.Value()})
}

// handleSetProperty applies {name: value} and echoes the accepted value.
func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.thing.Property(name); err != nil {
		writeNotFound(w, "property not found")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	value, ok := body[name]
	if !ok {
		writeBadRequest(w, "body must contain the property name as key")
		return
	}

	accepted, err := s.thing.SetProperty(name, value, thing.SourceHTTP)
	if err != nil {
		s.logger.Warn("property write rejected",
			"property", name,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writePropertyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{name: accepted})
}

// handlePropertyHistory returns the most recent accepted writes of a property.
func (s *Server) handlePropertyHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.thing.Property(name); err != nil {
		writeNotFound(w, "property not found")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "property history is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.GetHistory(r.Context(), s.thing.ID(), name, limit)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		s.logger.Error("history query failed", "property", name, "error", err)
		writeInternalError(w, "failed to load history")
		return
	}
	if entries == nil {
		entries = []thing.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"property": name,
		"entries":  entries,
		"count":    len(entries),
	})
}
