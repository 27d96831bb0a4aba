package httphandler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

const (
	defaultScanEventLimit = 50
	maxScanEventLimit     = 500
)

// Login checks the admin password and starts a session. The token is
// returned in the body for API clients and set as an HttpOnly cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, sess, err := h.auth.Login(r.Context(), req.Password)
	if errors.Is(err, application.ErrInvalidPassword) {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}

	h.setSessionCookie(w, token, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, SessionResponse{Token: token, ExpiresAt: formatTime(sess.ExpiresAt)})
}

// Logout ends the current session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), SessionToken(r)); err != nil {
		h.writeServiceError(w, r, "logout", err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Session verifies the current session and slides its expiry.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token := SessionToken(r)
	sess, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, r, "verify_session", err)
		return
	}

	if _, cerr := r.Cookie(SessionCookieName); cerr == nil {
		h.setSessionCookie(w, token, sess.ExpiresAt)
	}
	writeJSON(w, http.StatusOK, SessionResponse{ExpiresAt: formatTime(sess.ExpiresAt)})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	SetSessionCookie(w, token, expiresAt, h.cookieSecure)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	ClearSessionCookie(w, h.cookieSecure)
}

// SetSessionCookie stores the admin session token in an HttpOnly cookie
// that expires with the session.
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the admin session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ListAttendees returns every attendee, or the matches of ?q= when set.
func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		matches, err := h.registry.Search(r.Context(), q)
		if err != nil {
			h.writeServiceError(w, r, "search_attendees", err)
			return
		}
		resp := make([]AttendeeResponse, 0, len(matches))
		for _, a := range matches {
			resp = append(resp, toAttendeeResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp := []AttendeeResponse{}
	for a, err := range h.registry.List(r.Context()) {
		if err != nil {
			h.writeServiceError(w, r, "list_attendees", err)
			return
		}
		resp = append(resp, toAttendeeResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateAttendee adds a single attendee with a freshly minted credential.
func (h *Handler) CreateAttendee(w http.ResponseWriter, r *http.Request) {
	var req AttendeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.registry.Add(r.Context(), model.AttendeeDraft{
		Name:     req.Name,
		TicketID: req.TicketID,
		Email:    req.Email,
	})
	if err != nil {
		h.writeServiceError(w, r, "create_attendee", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAttendeeResponse(*a))
}

// GetAttendee returns one attendee by id.
func (h *Handler) GetAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	a, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get_attendee", err)
		return
	}

	writeJSON(w, http.StatusOK, toAttendeeResponse(*a))
}

// UpdateAttendee applies an admin edit of name, ticket id or email.
func (h *Handler) UpdateAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	var req AttendeePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.registry.Update(r.Context(), id, model.AttendeePatch{
		Name:     req.Name,
		TicketID: req.TicketID,
		Email:    req.Email,
	})
	if err != nil {
		h.writeServiceError(w, r, "update_attendee", err)
		return
	}

	writeJSON(w, http.StatusOK, toAttendeeResponse(*a))
}

// DeleteAttendee removes an attendee together with its credential.
func (h *Handler) DeleteAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	if err := h.registry.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete_attendee", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetAttendee returns one attendee to unused.
func (h *Handler) ResetAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	if err := h.registry.ResetScan(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "reset_attendee", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetAll returns every attendee to unused.
func (h *Handler) ResetAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.registry.ResetAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "reset_all", err)
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// ClearAll deletes every attendee.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.registry.ClearAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "clear_all", err)
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// Stats returns total, used and pending counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "stats", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// ScanEvents returns the most recent audit trail entries, ?limit= capped at 500.
func (h *Handler) ScanEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultScanEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxScanEventLimit)
	}

	events, err := h.checkin.RecentEvents(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "scan_events", err)
		return
	}

	resp := make([]ScanEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toScanEventResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}
