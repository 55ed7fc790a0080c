package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/domo-bridge/internal/bridge"
)

// handleCommand executes one element command. The body is the same
// flat shape the MQTT set topics accept: an action name plus
// action-specific parameters.
//
// The command runs through the bridge's optimistic path, so 202 means
// accepted and predicted, not confirmed; the verification read-back
// settles the truth shortly after.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	elementID, ok := s.elementID(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "element not found")
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	action, _ := raw["action"].(string)
	if action == "" {
		writeBadRequest(w, "action is required")
		return
	}
	delete(raw, "action")

	err := s.commander.ExecuteCommand(r.Context(), elementID, action, raw, bridge.SourceAPI)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":     "accepted",
			"element_id": elementID,
			"action":     action,
		})
	case errors.Is(err, bridge.ErrUnknownElement):
		writeNotFound(w, "element not found")
	case errors.Is(err, bridge.ErrUnsupportedAction), errors.Is(err, bridge.ErrInvalidArgument):
		writeBadRequest(w, err.Error())
	default:
		writeBadGateway(w, "panel command failed: "+err.Error())
	}
}
