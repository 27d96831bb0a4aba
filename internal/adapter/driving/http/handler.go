// Package httphandler is the JSON REST driving adapter: gate check-in,
// health, admin registry operations, imports and exports.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

const maxJSONBody = 1 << 20

// MetricsRecorder receives one observation per served request and exposes
// the scrape endpoint.
type MetricsRecorder interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
	Handler() http.Handler
}

// Services bundles the application services the handler drives.
type Services struct {
	CheckIn  *application.CheckInService
	Import   *application.ImportService
	Registry *application.RegistryService
	Auth     *application.AuthService
	Health   *application.HealthService
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	checkin      *application.CheckInService
	importer     *application.ImportService
	registry     *application.RegistryService
	auth         *application.AuthService
	health       *application.HealthService
	metrics      MetricsRecorder
	cookieSecure bool
	logger       *slog.Logger
	now          func() time.Time
}

// NewHandler creates a Handler with all required dependencies. metrics may be nil.
func NewHandler(svc Services, metrics MetricsRecorder, cookieSecure bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		checkin:      svc.CheckIn,
		importer:     svc.Import,
		registry:     svc.Registry,
		auth:         svc.Auth,
		health:       svc.Health,
		metrics:      metrics,
		cookieSecure: cookieSecure,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterAPIRoutes registers every REST route on mux. Gate and health
// routes are open; /api/v1/admin routes other than login require a session.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /api/v1/scan", h.Scan)
	mux.HandleFunc("POST /api/v1/checkin/manual", h.ManualCheckIn)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("POST /api/v1/admin/login", h.Login)
	mux.HandleFunc("POST /api/v1/admin/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/admin/session", h.Session)

	admin := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, h.requireAdmin(fn))
	}
	admin("POST /api/v1/admin/import", h.Import)
	admin("GET /api/v1/admin/attendees", h.ListAttendees)
	admin("POST /api/v1/admin/attendees", h.CreateAttendee)
	admin("GET /api/v1/admin/attendees/{id}", h.GetAttendee)
	admin("PATCH /api/v1/admin/attendees/{id}", h.UpdateAttendee)
	admin("DELETE /api/v1/admin/attendees/{id}", h.DeleteAttendee)
	admin("POST /api/v1/admin/attendees/{id}/reset", h.ResetAttendee)
	admin("POST /api/v1/admin/attendees/{id}/checkin", h.AdminCheckIn)
	admin("GET /api/v1/admin/attendees/{id}/credential", h.GetCredential)
	admin("GET /api/v1/admin/attendees/{id}/qr.png", h.CredentialImage)
	admin("PUT /api/v1/admin/attendees/{id}/photo", h.PutPhoto)
	admin("GET /api/v1/admin/attendees/{id}/photo", h.GetPhoto)
	admin("DELETE /api/v1/admin/attendees/{id}/photo", h.DeletePhoto)
	admin("GET /api/v1/admin/credentials.zip", h.CredentialArchive)
	admin("POST /api/v1/admin/reset", h.ResetAll)
	admin("POST /api/v1/admin/clear", h.ClearAll)
	admin("GET /api/v1/admin/export.csv", h.ExportCSV)
	admin("GET /api/v1/admin/export.json", h.ExportJSON)
	admin("GET /api/v1/admin/stats", h.Stats)
	admin("GET /api/v1/admin/scan-events", h.ScanEvents)

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

// ApplyMiddleware wraps handler with request id, logging, metrics and
// recovery middleware.
func ApplyMiddleware(handler http.Handler, logger *slog.Logger, recorder MetricsRecorder) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, handler)
	wrapped = loggingMiddleware(logger, recorder, wrapped)
	wrapped = requestIDMiddleware(wrapped)
	return wrapped
}

// NewServeMux creates an http.Handler serving only the REST API, wrapped
// with middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger, h.metrics)
}

// Health reports storage reachability; 503 when degraded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != application.HealthOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, toHealthResponse(report, h.now()))
}

// writeServiceError maps service and port errors onto HTTP statuses.
// Server-side failures are logged with the request id; their details never
// reach the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, driven.ErrAttendeeNotFound):
		writeError(w, http.StatusNotFound, "attendee not found")
	case errors.Is(err, driven.ErrDuplicateTicketID):
		writeError(w, http.StatusConflict, "ticket id already registered")
	case errors.Is(err, application.ErrInvalidAttendee), errors.Is(err, application.ErrInvalidPhoto):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrPhotoNotFound):
		writeError(w, http.StatusNotFound, "photo not found")
	case errors.Is(err, application.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, driven.ErrStorageUnavailable):
		h.logger.Warn("storage unavailable", "op", op, "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, try again")
	default:
		h.logger.Error("request failed", "op", op, "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
