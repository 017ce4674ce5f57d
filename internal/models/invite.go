package models

// InviteEntry is one normalized guest invitation ready for submission.
// Email is always lowercase and shape-validated before the entry is usable.
// SendEmail and ResetRedemption are pointers so the wire payload can omit
// them entirely when the caller never expressed a choice.
type InviteEntry struct {
	Email           string
	FirstName       string
	LastName        string
	DisplayName     string
	RedirectURL     string
	SendEmail       *bool
	CustomMessage   string
	ResetRedemption *bool
}

// RowError records why a single input line was discarded.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseResult is the outcome of normalizing a bulk submission. Entries and
// Errors partition the non-blank input lines: every discarded line produces
// exactly one error, except template boilerplate rows which are skipped
// silently.
type ParseResult struct {
	Entries []InviteEntry
	Errors  []RowError
}

// InviteOutcome captures the upstream result for one submitted entry.
type InviteOutcome struct {
	Email  string         `json:"email"`
	OK     bool           `json:"ok"`
	Error  string         `json:"error,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// BulkResult aggregates a whole bulk submission for display.
type BulkResult struct {
	TotalRows   int             `json:"totalRows"`
	ValidRows   int             `json:"validRows"`
	InvalidRows int             `json:"invalidRows"`
	Invited     int             `json:"invited"`
	Failed      int             `json:"failed"`
	Failures    []InviteOutcome `json:"failures,omitempty"`
	RowErrors   []RowError      `json:"rowErrors,omitempty"`
}

// Bool returns a pointer to b, for populating optional invite flags.
func Bool(b bool) *bool { return &b }
