package logging

import "time"

// #region call-entry
// CallEntry is a single row in the oracle_calls table.
type CallEntry struct {
	ID        int64
	SessionID string
	Field     string
	Kind      string
	Purpose   string // "validate" | "extract" | "acknowledge"
	Verdict   string // "PASS" | "FAIL" | "" for non-validating calls
	Error     string
	Latency   time.Duration
	CreatedAt time.Time
}

// #endregion call-entry
