package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/randlist/app/bridge"
)

// APIVersionResponse is the JSON response for /api/v1/version
type APIVersionResponse struct {
	App    string `json:"app"`
	Assets string `json:"assets"`
}

// handleFlags returns startup flags with the latest accepted state, or null if there is none
func (s *Server) handleFlags(w http.ResponseWriter, _ *http.Request) {
	flags := s.currentFlags()

	if flags == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, errNotReady.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, flags)
}

// handleSaveState accepts state snapshot and queues it for the bridge
func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "can't read request body")
		return
	}

	state, err := bridge.JSON{}.Unmarshal(body)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid state: "+err.Error())
		return
	}

	if err := s.push(r.Context(), state); err != nil {
		switch {
		case errors.Is(err, errNotReady), errors.Is(err, errShutdown):
			s.writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		default:
			log.Printf("[WARN] state from %s dropped, %v", r.RemoteAddr, err)
			s.writeJSONError(w, http.StatusServiceUnavailable, "state not accepted")
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleVersion returns application and assets versions, the page polls it to detect a new bundle
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	resp := APIVersionResponse{App: s.version, Assets: "unknown"}
	if s.assets != nil {
		resp.Assets = s.assets.Version()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}
