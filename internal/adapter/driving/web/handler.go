// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	httphandler "github.com/ericfisherdev/gatecheck/internal/adapter/driving/http"
	"github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

const (
	maxFormBytes         = 10 << 20
	dashboardEventsLimit = 20
)

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	checkin      *application.CheckInService
	importer     *application.ImportService
	registry     *application.RegistryService
	auth         *application.AuthService
	eventLabel   string
	notesHTML    string
	cookieSecure bool
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. eventNotes
// is markdown rendered once at construction.
func NewHandler(
	svc httphandler.Services,
	eventLabel string,
	eventNotes string,
	cookieSecure bool,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		checkin:      svc.CheckIn,
		importer:     svc.Import,
		registry:     svc.Registry,
		auth:         svc.Auth,
		eventLabel:   eventLabel,
		notesHTML:    RenderMarkdown(eventNotes),
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// render buffers the page so a rendering failure can still produce a 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title string, c templ.Component) {
	var buf bytes.Buffer
	if err := templates.Layout(title, c).Render(r.Context(), &buf); err != nil {
		h.logger.Error("failed to render page", "title", title, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// csrf rejects state-changing requests whose form token does not match the
// CSRF cookie. Request bodies are capped before the form is parsed.
func (h *Handler) csrf(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if !validateCSRF(r) {
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// admin redirects to the login page unless the request carries a live
// admin session.
func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := httphandler.SessionToken(r)
		sess, err := h.auth.Authenticate(r.Context(), token)
		switch {
		case err == nil:
			httphandler.SetSessionCookie(w, token, sess.ExpiresAt, h.cookieSecure)
			next(w, r)
		case errors.Is(err, application.ErrUnauthorized):
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		default:
			h.logger.Error("admin session check failed", "error", err)
			http.Error(w, userMessage(err), statusFor(err))
		}
	}
}

// Gate renders the operator page.
func (h *Handler) Gate(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, h.eventLabel, pages.Gate(h.gateView(w, r)))
}

// GateScan checks in the credential typed by a keyboard-wedge scanner.
func (h *Handler) GateScan(w http.ResponseWriter, r *http.Request) {
	out, err := h.checkin.Scan(r.Context(), r.FormValue("payload"))
	h.renderOutcome(w, r, out, err)
}

// GateManual checks in the single attendee matching the search form.
func (h *Handler) GateManual(w http.ResponseWriter, r *http.Request) {
	out, err := h.checkin.ManualCheckIn(r.Context(), r.FormValue("name"), r.FormValue("ticket_id"))
	h.renderOutcome(w, r, out, err)
}

func (h *Handler) renderOutcome(w http.ResponseWriter, r *http.Request, out model.CheckInOutcome, err error) {
	v := h.gateView(w, r)
	status := http.StatusOK
	if err != nil && !application.IsBusinessOutcome(err) {
		h.logger.Error("gate check-in failed", "error", err)
		v.Error = userMessage(err)
		status = statusFor(err)
	} else {
		v.Outcome = toOutcomeViewModel(out)
		v.Outcome.PhotoURI = h.outcomePhoto(r, out)
	}
	h.render(w, r, status, h.eventLabel, pages.Gate(v))
}

// outcomePhoto inlines the attendee's photo so the operator can compare
// faces without an admin session. A failed lookup only drops the photo.
func (h *Handler) outcomePhoto(r *http.Request, out model.CheckInOutcome) string {
	if out.Attendee == nil || !out.Attendee.HasPhoto {
		return ""
	}
	photo, err := h.registry.Photo(r.Context(), out.Attendee.ID)
	if err != nil {
		h.logger.Warn("gate photo lookup failed", "id", out.Attendee.ID, "error", err)
		return ""
	}
	return photoDataURI(photo)
}

func (h *Handler) gateView(w http.ResponseWriter, r *http.Request) vm.GateViewModel {
	return vm.GateViewModel{
		EventLabel: h.eventLabel,
		NotesHTML:  h.notesHTML,
		CSRFToken:  csrfToken(w, r, h.cookieSecure),
	}
}

// LoginPage renders the admin login form, or skips it for a live session.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Authenticate(r.Context(), httphandler.SessionToken(r)); err == nil {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, "")
}

// LoginSubmit checks the password and starts an admin session.
func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	token, sess, err := h.auth.Login(r.Context(), r.FormValue("password"))
	if errors.Is(err, application.ErrInvalidPassword) {
		h.renderLogin(w, r, http.StatusUnauthorized, "Wrong password")
		return
	}
	if err != nil {
		h.logger.Error("admin login failed", "error", err)
		h.renderLogin(w, r, statusFor(err), userMessage(err))
		return
	}

	httphandler.SetSessionCookie(w, token, sess.ExpiresAt, h.cookieSecure)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, h.eventLabel+" admin", pages.Login(vm.LoginViewModel{
		EventLabel: h.eventLabel,
		CSRFToken:  csrfToken(w, r, h.cookieSecure),
		Error:      msg,
	}))
}

// Logout ends the admin session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), httphandler.SessionToken(r)); err != nil {
		h.logger.Warn("admin logout failed", "error", err)
	}
	httphandler.ClearSessionCookie(w, h.cookieSecure)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// Dashboard renders the admin dashboard. ?q= filters the attendee table;
// ?notice= and ?error= carry the result of the previous action.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := h.dashboardView(w, r, q.Get("q"))
	if v.Error == "" {
		v.Error = q.Get("error")
	}
	v.Notice = q.Get("notice")

	status := http.StatusOK
	if v.Error != "" && q.Get("error") == "" {
		status = http.StatusServiceUnavailable
	}
	h.render(w, r, status, h.eventLabel+" admin", pages.Dashboard(v))
}

func (h *Handler) dashboardView(w http.ResponseWriter, r *http.Request, query string) vm.DashboardViewModel {
	ctx := r.Context()
	v := vm.DashboardViewModel{
		EventLabel: h.eventLabel,
		CSRFToken:  csrfToken(w, r, h.cookieSecure),
		Query:      query,
		Attendees:  []vm.AttendeeRowViewModel{},
	}

	stats, err := h.registry.Stats(ctx)
	if err != nil {
		h.logger.Error("dashboard stats failed", "error", err)
		v.Error = userMessage(err)
		return v
	}
	v.Stats = toStatsViewModel(stats)

	if query != "" {
		matches, err := h.registry.Search(ctx, query)
		if err != nil {
			h.logger.Error("dashboard search failed", "error", err)
			v.Error = userMessage(err)
			return v
		}
		for _, a := range matches {
			v.Attendees = append(v.Attendees, toAttendeeRowViewModel(a))
		}
	} else {
		for a, err := range h.registry.List(ctx) {
			if err != nil {
				h.logger.Error("dashboard list failed", "error", err)
				v.Error = userMessage(err)
				return v
			}
			v.Attendees = append(v.Attendees, toAttendeeRowViewModel(a))
		}
	}

	events, err := h.checkin.RecentEvents(ctx, dashboardEventsLimit)
	if err != nil {
		h.logger.Warn("dashboard scan events failed", "error", err)
	}
	for _, e := range events {
		v.Events = append(v.Events, toScanEventViewModel(e))
	}

	return v
}

// ImportUpload imports an uploaded spreadsheet and shows the summary.
func (h *Handler) ImportUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		redirectDashboard(w, r, "", "Choose a .csv or .xlsx file to upload")
		return
	}
	defer func() { _ = file.Close() }()

	rows, err := httphandler.ParseSpreadsheet(header.Filename, file)
	if err != nil {
		redirectDashboard(w, r, "", "Could not read the spreadsheet: "+err.Error())
		return
	}

	res, importErr := h.importer.ImportRows(r.Context(), rows)
	if importErr != nil {
		h.logger.Error("dashboard import aborted", "batch_id", res.BatchID, "error", importErr)
	}

	v := h.dashboardView(w, r, "")
	v.Import = toImportSummaryViewModel(res)
	if importErr != nil && v.Error == "" {
		v.Error = userMessage(importErr)
	}
	h.render(w, r, http.StatusOK, h.eventLabel+" admin", pages.Dashboard(v))
}

// UploadPhoto stores the photo picked or captured on the dashboard.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		redirectDashboard(w, r, "", "Invalid attendee")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		redirectDashboard(w, r, "", "Choose a photo to upload")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, application.MaxPhotoBytes+1))
	if err != nil {
		redirectDashboard(w, r, "", "Could not read the photo")
		return
	}

	if _, err := h.registry.SetPhoto(r.Context(), id, data); err != nil {
		redirectDashboard(w, r, "", userMessage(err))
		return
	}
	redirectDashboard(w, r, "Photo saved", "")
}

// RemovePhoto deletes an attendee's photo.
func (h *Handler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		redirectDashboard(w, r, "", "Invalid attendee")
		return
	}

	if err := h.registry.DeletePhoto(r.Context(), id); err != nil {
		redirectDashboard(w, r, "", userMessage(err))
		return
	}
	redirectDashboard(w, r, "Photo removed", "")
}

// AddAttendee registers a single attendee from the dashboard form.
func (h *Handler) AddAttendee(w http.ResponseWriter, r *http.Request) {
	a, err := h.registry.Add(r.Context(), model.AttendeeDraft{
		Name:     r.FormValue("name"),
		TicketID: r.FormValue("ticket_id"),
		Email:    r.FormValue("email"),
	})
	if err != nil {
		redirectDashboard(w, r, "", userMessage(err))
		return
	}
	redirectDashboard(w, r, "Added "+a.Name, "")
}

// CheckInAttendee admits an attendee through the check-in state machine.
func (h *Handler) CheckInAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		redirectDashboard(w, r, "", "Invalid attendee")
		return
	}

	out, err := h.checkin.CheckInByID(r.Context(), id)
	if err != nil && !application.IsBusinessOutcome(err) {
		redirectDashboard(w, r, "", userMessage(err))
		return
	}
	redirectDashboard(w, r, out.Message, "")
}

// ResetAttendee returns one attendee to unused.
func (h *Handler) ResetAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		redirectDashboard(w, r, "", "Invalid attendee")
		return
	}

	if err := h.registry.ResetScan(r.Context(), id); err != nil {
		redirectDashboard(w, r, "", userMessage(err))
		return
	}
	redirectDashboard(w, r, "Check-in reset", "")
}

// DeleteAttendee removes one attendee.
func (h *Handler) DeleteAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		redirectDashboard(w, r, "", "Invalid attendee")
		return
	}

	if err := h.registry.Delete(r.Context(), id); err != nil {
		redirectDashboard(w, r, "", userMessage(err))
		return
	}
	redirectDashboard(w, r, "Attendee deleted", "")
}

// ResetAll returns every attendee to unused.
func (h *Handler) ResetAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.registry.ResetAll(r.Context())
	if err != nil {
		redirectDashboard(w, r, "", userMessage(err))
		return
	}
	redirectDashboard(w, r, "Reset "+strconv.FormatInt(n, 10)+" check-ins", "")
}

// ClearAll deletes every attendee.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.registry.ClearAll(r.Context())
	if err != nil {
		redirectDashboard(w, r, "", userMessage(err))
		return
	}
	redirectDashboard(w, r, "Deleted "+strconv.FormatInt(n, 10)+" attendees", "")
}

func redirectDashboard(w http.ResponseWriter, r *http.Request, notice, errMsg string) {
	q := url.Values{}
	if notice != "" {
		q.Set("notice", notice)
	}
	if errMsg != "" {
		q.Set("error", errMsg)
	}
	target := "/admin"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func formID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// userMessage turns service errors into operator-facing text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, driven.ErrAttendeeNotFound):
		return "Attendee not found"
	case errors.Is(err, driven.ErrDuplicateTicketID):
		return "Ticket ID already registered"
	case errors.Is(err, application.ErrInvalidAttendee):
		return err.Error()
	case errors.Is(err, application.ErrInvalidPhoto):
		return "Photo must be a JPEG, PNG, WebP or GIF image of at most 5 MB"
	case errors.Is(err, application.ErrPhotoNotFound):
		return "No photo stored"
	case errors.Is(err, driven.ErrStorageUnavailable):
		return "Storage unavailable, try again"
	case errors.Is(err, application.ErrGeneration):
		return "Credential generation failed; restart the service"
	default:
		return "Something went wrong"
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, driven.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, driven.ErrAttendeeNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
