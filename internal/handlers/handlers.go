// Package handlers is the thin HTTP surface over the integration layer.
// Handlers validate input, resolve the caller, call the core and shape the
// response; every domain decision lives below this package.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"coursehub/internal/auth"
	"coursehub/internal/calendar"
	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
	"coursehub/internal/importer"
	"coursehub/internal/lms"
	"coursehub/internal/middleware"
	"coursehub/internal/storage"
	"coursehub/internal/token"
)

// Handlers carries the wired core components.
type Handlers struct {
	storage  storage.Storage
	tokens   *token.Manager
	calendar *calendar.Client
	lms      *lms.Client
	importer *importer.Importer
	auth     *auth.Auth
	logger   logging.Logger
}

// New creates the handler set.
func New(store storage.Storage, tokens *token.Manager, cal *calendar.Client, lmsClient *lms.Client, imp *importer.Importer, authn *auth.Auth, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		storage:  store,
		tokens:   tokens,
		calendar: cal,
		lms:      lmsClient,
		importer: imp,
		auth:     authn,
		logger:   logger,
	}
}

// Router builds the full route table. Everything under /api requires a
// bearer token.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.auth.Middleware)

	api.HandleFunc("/integrations/status", h.IntegrationStatus).Methods(http.MethodGet)
	api.HandleFunc("/integrations/google", h.DisconnectGoogle).Methods(http.MethodDelete)

	api.HandleFunc("/lms/connect", h.ConnectLms).Methods(http.MethodPost)
	api.HandleFunc("/lms/connect", h.DisconnectLms).Methods(http.MethodDelete)
	api.HandleFunc("/lms/courses", h.ListCourses).Methods(http.MethodGet)
	api.HandleFunc("/lms/courses/{courseID}/assignments", h.ListAssignments).Methods(http.MethodGet)

	api.HandleFunc("/classes", h.ListClasses).Methods(http.MethodGet)
	api.HandleFunc("/classes", h.CreateClass).Methods(http.MethodPost)
	api.HandleFunc("/classes/{classID}/tasks", h.ListTasks).Methods(http.MethodGet)
	api.HandleFunc("/classes/{classID}/import", h.ImportAssignments).Methods(http.MethodPost)

	api.HandleFunc("/calendar/events", h.CreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/calendar/events", h.ListEvents).Methods(http.MethodGet)
	api.HandleFunc("/calendar/feed.ics", h.CalendarFeed).Methods(http.MethodGet)

	return r
}

// Health reports storage health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Health(); err != nil {
		writeError(w, errors.StorageError("storage unavailable", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. Provider
// rejections keep the provider's status code so callers see what the
// provider said.
func writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	body := map[string]interface{}{
		"error": err.Error(),
		"type":  string(errors.GetType(err)),
	}
	if code := errors.ProviderStatusCode(err); code != 0 {
		body["provider_status"] = code
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errors.ValidationError("invalid request body")
	}
	return nil
}
