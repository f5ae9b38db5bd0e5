package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// handleThing serves the thing description, or upgrades to the thing's
// WebSocket endpoint when the request asks for it.
func (s *Server) handleThing(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}

	base, wsHref := s.thingURLs(r)
	writeJSON(w, http.StatusOK, s.thing.Describe(base, wsHref))
}

// thingURLs derives the HTTP base URL and the WebSocket URL from the request,
// so the description stays valid whichever hostname the client used.
func (s *Server) thingURLs(r *http.Request) (string, string) {
	scheme, wsScheme := "http", "ws"
	if r.TLS != nil {
		scheme, wsScheme = "https", "wss"
	}
	return scheme + "://" + r.Host + "/", wsScheme + "://" + r.Host + "/"
}
