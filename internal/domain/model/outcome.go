package model

import "time"

// CheckInOutcome is the result of one check-in attempt. Attendee is set for
// success and already_used; ScanTime is the commit time on success and the
// original scan time on already_used.
type CheckInOutcome struct {
	Status   CheckInStatus
	Message  string
	Attendee *Attendee
	ScanTime *time.Time
	Matches  int
}

// ScanEvent is one entry of the check-in audit trail.
type ScanEvent struct {
	ID         int64
	AttendeeID *int64
	Source     CheckInSource
	Status     CheckInStatus
	Detail     string
	OccurredAt time.Time
}
