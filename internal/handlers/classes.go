package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"coursehub/internal/auth"
	"coursehub/internal/common/errors"
	"coursehub/internal/importer"
	"coursehub/internal/models"
)

type createClassRequest struct {
	Name           string `json:"name"`
	Code           string `json:"code,omitempty"`
	Instructor     string `json:"instructor,omitempty"`
	CanvasCourseID string `json:"canvas_course_id,omitempty"`
}

// CreateClass creates a class for the caller.
func (h *Handlers) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, errors.ValidationError("class name is required"))
		return
	}

	class, err := h.storage.CreateClass(r.Context(), &models.Class{
		UserID:         auth.UserID(r),
		Name:           req.Name,
		Code:           req.Code,
		Instructor:     req.Instructor,
		CanvasCourseID: req.CanvasCourseID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, class)
}

// ListClasses lists the caller's classes.
func (h *Handlers) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.storage.ListClasses(r.Context(), auth.UserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"classes": classes})
}

// ListTasks lists the tasks imported into one class.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	classID := mux.Vars(r)["classID"]

	owns, err := h.storage.UserOwnsClass(r.Context(), classID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !owns {
		writeError(w, errors.NotFoundError("class"))
		return
	}

	tasks, err := h.storage.ListTasks(r.Context(), classID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

type importRequest struct {
	// CourseID overrides the class's linked course when set.
	CourseID      string   `json:"course_id,omitempty"`
	AssignmentIDs []string `json:"assignment_ids"`
}

// ImportAssignments fetches the course's upcoming assignments and imports
// the selected ones into the class. Re-running the same import is a no-op.
func (h *Handlers) ImportAssignments(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	classID := mux.Vars(r)["classID"]

	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	class, err := h.storage.GetClass(r.Context(), classID)
	if err != nil {
		writeError(w, err)
		return
	}
	if class.UserID != userID {
		writeError(w, errors.NotFoundError("class"))
		return
	}

	courseID := req.CourseID
	if courseID == "" {
		courseID = class.CanvasCourseID
	}
	if courseID == "" {
		writeError(w, errors.ValidationError("class is not linked to a course and no course_id was given"))
		return
	}

	assignments, err := h.lms.ListCourseAssignments(r.Context(), userID, courseID)
	if err != nil {
		writeError(w, err)
		return
	}

	records := make([]importer.RemoteRecord, 0, len(assignments))
	for _, a := range assignments {
		records = append(records, importer.RemoteRecord{
			RemoteID:    a.ID,
			Title:       a.Name,
			Description: a.Description,
			DueAt:       a.DueAt,
			HTMLURL:     a.HTMLURL,
			Points:      a.PointsPossible,
		})
	}

	report, err := h.importer.ImportSelected(r.Context(), userID, classID, records, req.AssignmentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
