package store

import (
	"encoding/json"
	"time"
)

// #region record
// Record is one archived session report.
type Record struct {
	ID         string
	SessionID  string
	ModuleID   string
	Assessment string
	Score      string // percent, "N/A", or "" when the module has no logic
	Similarity float64
	CreatedAt  time.Time
	Report     json.RawMessage // the report as written to disk
}

// #endregion record

// #region filter
// Filter narrows List. Zero values match everything.
type Filter struct {
	ModuleID   string
	SessionID  string
	Assessment string
	Limit      int
}

// #endregion filter
