// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// OutcomeViewModel is the banner shown after a gate check-in attempt.
type OutcomeViewModel struct {
	Success  bool
	Status   string
	Message  string
	Name     string
	TicketID string
	ScanTime string
	PhotoURI string // inline data: URI, empty when no photo is stored
}

// GateViewModel holds the data for the gate operator page.
type GateViewModel struct {
	EventLabel string
	NotesHTML  string // sanitized markdown output
	CSRFToken  string
	Outcome    *OutcomeViewModel
	Error      string
}

// LoginViewModel holds the data for the admin login page.
type LoginViewModel struct {
	EventLabel string
	CSRFToken  string
	Error      string
}

// StatsViewModel holds the dashboard counters.
type StatsViewModel struct {
	Total   int
	Used    int
	Pending int
}

// AttendeeRowViewModel is one row of the dashboard attendee table.
type AttendeeRowViewModel struct {
	ID       int64
	Name     string
	TicketID string
	Email    string
	Used     bool
	ScanTime string
	QRPath   string // GET target for the credential image
	PhotoURL string // empty when no photo is stored
}

// RejectedRowViewModel is one rejected row of an import summary.
type RejectedRowViewModel struct {
	Row    int // 1-based for display
	Reason string
}

// ImportSummaryViewModel reports the outcome of a dashboard upload.
type ImportSummaryViewModel struct {
	Imported int
	Rejected []RejectedRowViewModel
	Aborted  bool
}

// ScanEventViewModel is one audit trail entry.
type ScanEventViewModel struct {
	When   string
	Source string
	Status string
	Detail string
}

// DashboardViewModel holds the data for the admin dashboard page.
type DashboardViewModel struct {
	EventLabel string
	CSRFToken  string
	Query      string
	Notice     string
	Error      string
	Stats      StatsViewModel
	Attendees  []AttendeeRowViewModel
	Events     []ScanEventViewModel
	Import     *ImportSummaryViewModel
}
