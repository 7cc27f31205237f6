package api

import (
	"net/http"

	"github.com/seenimoa/fairvalue/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/config.
type ConfigResponse struct {
	Config config.Config `json:"config"`
}

// handleGetConfig returns the running configuration with secrets masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ConfigResponse{Config: s.cfg.Redacted()},
	})
}

// handleGetSecrets returns where each secret setting comes from.
func (s *Server) handleGetSecrets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckSecrets(s.cfg),
	})
}
