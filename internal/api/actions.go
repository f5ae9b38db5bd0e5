package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/servomount/internal/thing"
)

// handleListActions lists action requests. The thing keeps none.
func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []any{})
}

// handleRequestActions accepts {actionName: {input: ...}} at /actions.
func (s *Server) handleRequestActions(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body) != 1 {
		writeBadRequest(w, "body must contain exactly one action")
		return
	}
	for name, raw := range body {
		s.requestAction(w, name, raw)
	}
}

// handleRequestAction accepts {actionName: {input: ...}} at /actions/{name}.
func (s *Server) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	raw, ok := body[name]
	if !ok {
		writeBadRequest(w, "body must contain the action name as key")
		return
	}
	s.requestAction(w, name, raw)
}

// handleGetAction answers lookups and cancellations of action requests.
func (s *Server) handleGetAction(w http.ResponseWriter, _ *http.Request) {
	writeNotFound(w, "action request not found")
}

// handleListEvents lists emitted events. The thing defines none.
func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []any{})
}

// requestAction hands the request to the thing's action generator and
// reports the result.
func (s *Server) requestAction(w http.ResponseWriter, name string, raw json.RawMessage) {
	var req struct {
		Input any `json:"input"`
	}
	if len(raw) > 0 {
		//nolint:errcheck // Input is optional; a malformed one is treated as absent
		json.Unmarshal(raw, &req)
	}

	action, err := s.thing.RequestAction(name, req.Input)
	if err != nil {
		if errors.Is(err, thing.ErrNoSuchAction) {
			writeError(w, http.StatusBadRequest, ErrCodeNoSuchAction, "no such action")
			return
		}
		writeInternalError(w, "action request failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		name: map[string]any{
			"href":   "/actions/" + name + "/" + action.ID(),
			"status": "created",
		},
	})
}
