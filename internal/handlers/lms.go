package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"coursehub/internal/auth"
)

type connectLmsRequest struct {
	Domain      string `json:"domain"`
	AccessToken string `json:"access_token"`
}

// ConnectLms verifies and stores the caller's Canvas domain and API key.
func (h *Handlers) ConnectLms(w http.ResponseWriter, r *http.Request) {
	var req connectLmsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.lms.Connect(r.Context(), auth.UserID(r), req.Domain, req.AccessToken); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": true})
}

// DisconnectLms clears the caller's Canvas credential.
func (h *Handlers) DisconnectLms(w http.ResponseWriter, r *http.Request) {
	if err := h.lms.Disconnect(r.Context(), auth.UserID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": false})
}

// ListCourses lists the caller's active courses on their tenant.
func (h *Handlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.lms.ListActiveCourses(r.Context(), auth.UserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"courses": courses})
}

// ListAssignments lists upcoming assignments for one course.
func (h *Handlers) ListAssignments(w http.ResponseWriter, r *http.Request) {
	courseID := mux.Vars(r)["courseID"]
	assignments, err := h.lms.ListCourseAssignments(r.Context(), auth.UserID(r), courseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments})
}
