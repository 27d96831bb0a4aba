package model

import "time"

// Attendee is one row of the event roll together with its credential token
// and scan state. ScanTime is nil exactly when Used is false. ScanAttempt
// identifies the check-in attempt that made the transition.
type Attendee struct {
	ID          int64
	Name        string
	TicketID    string
	Email       string
	Token       string
	Used        bool
	ScanTime    *time.Time
	ScanAttempt string
	HasPhoto    bool
	CreatedAt   time.Time
}

// State returns the scan state derived from Used.
func (a Attendee) State() ScanState {
	if a.Used {
		return ScanStateUsed
	}
	return ScanStateUnused
}

// Photo is an attendee's identity picture, shown at the gate to confirm who
// is holding a credential.
type Photo struct {
	ContentType string
	Data        []byte
}

// AttendeeDraft is the input to credential issuance and registry insertion.
// Name and TicketID are required; Email is optional.
type AttendeeDraft struct {
	Name     string `validate:"required,max=200"`
	TicketID string `validate:"required,max=100"`
	Email    string `validate:"omitempty,email,max=254"`
}

// AttendeePatch holds an admin edit. Nil fields are left unchanged.
type AttendeePatch struct {
	Name     *string `validate:"omitempty,min=1,max=200"`
	TicketID *string `validate:"omitempty,min=1,max=100"`
	Email    *string `validate:"omitempty,max=254"`
}

// IsEmpty reports whether the patch changes nothing.
func (p AttendeePatch) IsEmpty() bool {
	return p.Name == nil && p.TicketID == nil && p.Email == nil
}

// SearchQuery selects attendees for the manual check-in fallback and the
// admin search. NameContains matches case-insensitively anywhere in the
// name; TicketID must match exactly. When both are set, both must match.
type SearchQuery struct {
	NameContains string
	TicketID     string
}

// IsEmpty reports whether neither criterion is set.
func (q SearchQuery) IsEmpty() bool {
	return q.NameContains == "" && q.TicketID == ""
}

// Stats summarizes the registry for dashboards and health reports.
type Stats struct {
	Total   int
	Used    int
	Pending int
}
