package model

// ScanState represents whether a credential has been admitted at the gate.
type ScanState string

const (
	ScanStateUnused ScanState = "unused"
	ScanStateUsed   ScanState = "used"
)

// CheckInStatus is the stable machine-readable tag of a check-in outcome.
type CheckInStatus string

const (
	CheckInSuccess             CheckInStatus = "success"
	CheckInAlreadyUsed         CheckInStatus = "already_used"
	CheckInUnknown             CheckInStatus = "unknown"
	CheckInMalformed           CheckInStatus = "malformed"
	CheckInAmbiguousOrNotFound CheckInStatus = "ambiguous_or_not_found"
)

// CheckInSource identifies how a check-in attempt reached the state machine.
type CheckInSource string

const (
	SourceScan   CheckInSource = "scan"   // Raw payload from a scanner.
	SourceManual CheckInSource = "manual" // Gate operator name/ticket search.
	SourceAdmin  CheckInSource = "admin"  // Admin dashboard action on a known id.
)
