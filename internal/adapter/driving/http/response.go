package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AttendeeResponse is the JSON representation of an attendee. The credential
// token is only exposed through the credential endpoint.
type AttendeeResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	TicketID  string  `json:"ticket_id"`
	Email     string  `json:"email"`
	Used      bool    `json:"used"`
	State     string  `json:"state"`
	ScanTime  *string `json:"scan_time"`
	PhotoURL  *string `json:"photo_url"`
	CreatedAt string  `json:"created_at"`
}

// PhotoResponse describes a stored attendee photo.
type PhotoResponse struct {
	AttendeeID  int64  `json:"attendee_id"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
}

// CheckInResponse is the JSON body returned by every check-in endpoint.
// Business outcomes are reported with status 200 and Success false.
type CheckInResponse struct {
	Success  bool              `json:"success"`
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Attendee *AttendeeResponse `json:"attendee,omitempty"`
	ScanTime *string           `json:"scan_time,omitempty"`
	Matches  int               `json:"matches,omitempty"`
}

// ScanRequest is the JSON body for the scan endpoint.
type ScanRequest struct {
	Payload string `json:"payload"`
}

// ManualCheckInRequest is the JSON body for the manual check-in endpoint.
type ManualCheckInRequest struct {
	Name     string `json:"name"`
	TicketID string `json:"ticket_id"`
}

// LoginRequest is the JSON body for the admin login endpoint.
type LoginRequest struct {
	Password string `json:"password"`
}

// SessionResponse describes an admin session. Token is only set on login.
type SessionResponse struct {
	Token     string `json:"token,omitempty"`
	ExpiresAt string `json:"expires_at"`
}

// AttendeeRequest is the JSON body for creating an attendee.
type AttendeeRequest struct {
	Name     string `json:"name"`
	TicketID string `json:"ticket_id"`
	Email    string `json:"email"`
}

// AttendeePatchRequest is the JSON body for editing an attendee. Absent
// fields are left unchanged.
type AttendeePatchRequest struct {
	Name     *string `json:"name"`
	TicketID *string `json:"ticket_id"`
	Email    *string `json:"email"`
}

// ImportRequest is the JSON body for a row import.
type ImportRequest struct {
	Rows []map[string]any `json:"rows"`
}

// ImportResponse summarizes a bulk import.
type ImportResponse struct {
	BatchID  string                `json:"batch_id"`
	Imported int                   `json:"imported"`
	Rejected []RejectedRowResponse `json:"rejected"`
	Aborted  bool                  `json:"aborted"`
	Error    string                `json:"error,omitempty"`
}

// RejectedRowResponse is one rejected import row.
type RejectedRowResponse struct {
	Index  int            `json:"index"`
	Row    map[string]any `json:"row"`
	Reason string         `json:"reason"`
}

// CredentialResponse carries the scannable payload and bare token of an attendee.
type CredentialResponse struct {
	AttendeeID int64  `json:"attendee_id"`
	Token      string `json:"token"`
	Payload    string `json:"payload"`
}

// CountResponse reports how many rows a bulk operation affected.
type CountResponse struct {
	Count int64 `json:"count"`
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	Total   int `json:"total"`
	Used    int `json:"used"`
	Pending int `json:"pending"`
}

// ScanEventResponse is one audit trail entry.
type ScanEventResponse struct {
	ID         int64  `json:"id"`
	AttendeeID *int64 `json:"attendee_id"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	Detail     string `json:"detail"`
	OccurredAt string `json:"occurred_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string         `json:"status"`
	Backend    string         `json:"backend"`
	EventLabel string         `json:"event_label"`
	Stats      *StatsResponse `json:"stats,omitempty"`
	Error      string         `json:"error,omitempty"`
	Time       string         `json:"time"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// toAttendeeResponse converts a domain Attendee to its JSON response representation.
func toAttendeeResponse(a model.Attendee) AttendeeResponse {
	return AttendeeResponse{
		ID:        a.ID,
		Name:      a.Name,
		TicketID:  a.TicketID,
		Email:     a.Email,
		Used:      a.Used,
		State:     string(a.State()),
		ScanTime:  formatTimePtr(a.ScanTime),
		PhotoURL:  photoURL(a),
		CreatedAt: formatTime(a.CreatedAt),
	}
}

func photoURL(a model.Attendee) *string {
	if !a.HasPhoto {
		return nil
	}
	p := PhotoPath(a.ID)
	return &p
}

func toCheckInResponse(out model.CheckInOutcome) CheckInResponse {
	resp := CheckInResponse{
		Success:  out.Status == model.CheckInSuccess,
		Status:   string(out.Status),
		Message:  out.Message,
		ScanTime: formatTimePtr(out.ScanTime),
		Matches:  out.Matches,
	}
	if out.Attendee != nil {
		a := toAttendeeResponse(*out.Attendee)
		resp.Attendee = &a
	}
	return resp
}

func toImportResponse(res model.ImportResult) ImportResponse {
	rejected := make([]RejectedRowResponse, 0, len(res.Rejected))
	for _, r := range res.Rejected {
		rejected = append(rejected, RejectedRowResponse{Index: r.Index, Row: r.Row, Reason: r.Reason})
	}
	return ImportResponse{
		BatchID:  res.BatchID,
		Imported: res.Imported,
		Rejected: rejected,
		Aborted:  res.Aborted,
	}
}

func toStatsResponse(s model.Stats) StatsResponse {
	return StatsResponse{Total: s.Total, Used: s.Used, Pending: s.Pending}
}

func toScanEventResponse(e model.ScanEvent) ScanEventResponse {
	return ScanEventResponse{
		ID:         e.ID,
		AttendeeID: e.AttendeeID,
		Source:     string(e.Source),
		Status:     string(e.Status),
		Detail:     e.Detail,
		OccurredAt: formatTime(e.OccurredAt),
	}
}

func toHealthResponse(r application.HealthReport, now time.Time) HealthResponse {
	resp := HealthResponse{
		Status:     r.Status,
		Backend:    r.Backend,
		EventLabel: r.EventLabel,
		Error:      r.Error,
		Time:       now.UTC().Format(time.RFC3339),
	}
	if r.Stats != nil {
		s := toStatsResponse(*r.Stats)
		resp.Stats = &s
	}
	return resp
}
