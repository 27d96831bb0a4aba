package model

// RejectedRow is an import row that was not registered, with a
// human-readable reason.
type RejectedRow struct {
	Index  int
	Row    map[string]any
	Reason string
}

// ImportResult summarizes one bulk import. Aborted is set when a storage or
// credential generation failure stopped the batch early; rows imported
// before the failure stay imported.
type ImportResult struct {
	BatchID  string
	Imported int
	Rejected []RejectedRow
	Aborted  bool
}
