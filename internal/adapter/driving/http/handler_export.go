package httphandler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

var exportHeader = []string{"Name", "Ticket ID", "Email", "Scanned", "Scan Time", "Photo"}

// GetCredential returns the scannable payload and bare token of one attendee.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	a, cred, err := h.registry.Credential(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get_credential", err)
		return
	}

	writeJSON(w, http.StatusOK, CredentialResponse{AttendeeID: a.ID, Token: cred.Token, Payload: cred.Payload})
}

// CredentialImage serves the PNG credential of one attendee.
func (h *Handler) CredentialImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	_, png, err := h.registry.RenderCredential(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "render_credential", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

// CredentialArchive serves a ZIP of every credential image. The archive is
// built in memory so a failure part way through still yields an error status.
func (h *Handler) CredentialArchive(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := h.registry.WriteCredentialArchive(r.Context(), &buf)
	if err != nil {
		h.writeServiceError(w, r, "credential_archive", err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "no attendees registered")
		return
	}

	setDownloadHeaders(w, "application/zip", "credentials.zip")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// ExportCSV streams the attendee listing as CSV.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var cw *csv.Writer
	start := func() {
		setDownloadHeaders(w, "text/csv; charset=utf-8", "attendees.csv")
		cw = csv.NewWriter(w)
		_ = cw.Write(exportHeader)
	}

	for a, err := range h.registry.List(r.Context()) {
		if err != nil {
			h.abortStream(w, r, "export_csv", cw != nil, err)
			return
		}
		if cw == nil {
			start()
		}
		_ = cw.Write(exportRecord(a))
	}
	if cw == nil {
		start()
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warn("csv export write failed", "error", err, "request_id", RequestID(r.Context()))
	}
}

// ExportJSON streams the attendee listing as a JSON array.
func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	started := false
	start := func() {
		setDownloadHeaders(w, "application/json; charset=utf-8", "attendees.json")
		_, _ = w.Write([]byte("["))
		started = true
	}

	first := true
	for a, err := range h.registry.List(r.Context()) {
		if err != nil {
			h.abortStream(w, r, "export_json", started, err)
			return
		}
		if !started {
			start()
		}
		data, err := json.Marshal(toAttendeeResponse(a))
		if err != nil {
			h.abortStream(w, r, "export_json", started, err)
			return
		}
		if !first {
			_, _ = w.Write([]byte(","))
		}
		first = false
		_, _ = w.Write(data)
	}
	if !started {
		start()
	}
	_, _ = w.Write([]byte("]"))
}

// abortStream reports a failure of a streamed export. Once the body has
// started the status cannot change, so the error is only logged and the
// truncated body signals the failure.
func (h *Handler) abortStream(w http.ResponseWriter, r *http.Request, op string, started bool, err error) {
	if !started {
		h.writeServiceError(w, r, op, err)
		return
	}
	h.logger.Error("export interrupted", "op", op, "error", err, "request_id", RequestID(r.Context()))
}

func exportRecord(a model.Attendee) []string {
	scanned := "No"
	scanTime := ""
	if a.Used {
		scanned = "Yes"
	}
	if a.ScanTime != nil {
		scanTime = formatTime(*a.ScanTime)
	}
	photo := ""
	if p := photoURL(a); p != nil {
		photo = *p
	}
	return []string{a.Name, a.TicketID, a.Email, scanned, scanTime, photo}
}

func setDownloadHeaders(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
}
