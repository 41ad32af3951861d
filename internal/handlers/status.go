package handlers

import (
	"net/http"

	"coursehub/internal/auth"
)

// IntegrationStatus reports the link state of both providers for the
// caller.
func (h *Handlers) IntegrationStatus(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)

	googleState, err := h.tokens.LinkedStatus(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	creds, err := h.storage.GetCredentials(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	canvas := map[string]interface{}{"linked": false}
	if creds.CanvasLinked() {
		canvas["linked"] = true
		canvas["domain"] = creds.CanvasDomain
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"google": map[string]interface{}{"state": string(googleState)},
		"canvas": canvas,
	})
}

// DisconnectGoogle clears the caller's Google credential.
func (h *Handlers) DisconnectGoogle(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Disconnect(r.Context(), auth.UserID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": false})
}
