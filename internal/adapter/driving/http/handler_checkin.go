package httphandler

import (
	"net/http"

	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

// Scan checks in the credential carried by a scanner payload.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.checkin.Scan(r.Context(), req.Payload)
	h.writeCheckIn(w, r, "scan", out, err)
}

// ManualCheckIn checks in the single attendee matching a name and/or ticket id.
func (h *Handler) ManualCheckIn(w http.ResponseWriter, r *http.Request) {
	var req ManualCheckInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.checkin.ManualCheckIn(r.Context(), req.Name, req.TicketID)
	h.writeCheckIn(w, r, "manual_check_in", out, err)
}

// AdminCheckIn admits an attendee by id from the dashboard.
func (h *Handler) AdminCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	out, err := h.checkin.CheckInByID(r.Context(), id)
	h.writeCheckIn(w, r, "admin_check_in", out, err)
}

// writeCheckIn reports business outcomes with 200 and the outcome body;
// everything else goes through writeServiceError.
func (h *Handler) writeCheckIn(w http.ResponseWriter, r *http.Request, op string, out model.CheckInOutcome, err error) {
	if err != nil && !application.IsBusinessOutcome(err) {
		h.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckInResponse(out))
}
