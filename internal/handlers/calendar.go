package handlers

import (
	"net/http"
	"strconv"
	"time"

	"coursehub/internal/auth"
	"coursehub/internal/calendar"
)

// CreateEvent creates an event on the caller's primary calendar.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input calendar.EventInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, err)
		return
	}

	event, err := h.calendar.CreateEvent(r.Context(), auth.UserID(r), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents lists the caller's upcoming events. A mid-walk provider
// failure still returns the events collected so far, flagged partial.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	maxResults := 0
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			maxResults = parsed
		}
	}

	events, err := h.calendar.ListUpcomingEvents(r.Context(), auth.UserID(r), maxResults)
	if err != nil {
		if len(events) == 0 {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"events":  events,
			"partial": true,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// CalendarFeed renders the caller's imported deadlines as an iCalendar
// feed.
func (h *Handlers) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)

	classes, err := h.storage.ListClasses(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	var events []calendar.Event
	for _, class := range classes {
		tasks, err := h.storage.ListTasks(r.Context(), class.ID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, task := range tasks {
			if task.DueAt == nil {
				continue
			}
			events = append(events, calendar.Event{
				ID:          task.ID + "@coursehub",
				Summary:     class.Name + ": " + task.Title,
				Description: task.HTMLURL,
				Start:       *task.DueAt,
				End:         task.DueAt.Add(time.Hour),
			})
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="coursehub.ics"`)
	if err := calendar.WriteICS(w, "coursehub deadlines", events); err != nil {
		h.logger.Error("failed to render calendar feed", err)
	}
}
