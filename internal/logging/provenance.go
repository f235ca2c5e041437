package logging

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
)

// #region log-call
// LogOracleCall writes one oracle call to the oracle_calls table.
func LogOracleCall(db *sql.DB, entry CallEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO oracle_calls (session_id, field, kind, purpose, verdict, error, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Field,
		nullIfEmpty(entry.Kind),
		entry.Purpose,
		nullIfEmpty(entry.Verdict),
		nullIfEmpty(entry.Error),
		entry.Latency.Milliseconds(),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log oracle call: %w", err)
	}
	return nil
}

// #endregion log-call

// #region list-calls
// ListCalls returns a session's oracle calls in the order they were made.
func ListCalls(db *sql.DB, sessionID string) ([]CallEntry, error) {
	rows, err := db.Query(
		`SELECT id, session_id, field, kind, purpose, verdict, error, latency_ms, created_at
		 FROM oracle_calls WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list oracle calls: %w", err)
	}
	defer rows.Close()

	var out []CallEntry
	for rows.Next() {
		var e CallEntry
		var kind, verdict, errText sql.NullString
		var latencyMS int64
		var createdStr string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Field, &kind, &e.Purpose, &verdict, &errText, &latencyMS, &createdStr); err != nil {
			return nil, fmt.Errorf("scan oracle call: %w", err)
		}
		e.Kind = kind.String
		e.Verdict = verdict.String
		e.Error = errText.String
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-calls

// #region observer
// CallLogger records a session's dispatcher calls. Write failures are logged
// and never reach the dialogue.
type CallLogger struct {
	DB        *sql.DB
	SessionID string
}

var _ dispatch.Observer = CallLogger{}

func (c CallLogger) ObserveCall(rec dispatch.CallRecord) {
	entry := CallEntry{
		SessionID: c.SessionID,
		Field:     rec.Field,
		Kind:      string(rec.Kind),
		Purpose:   string(rec.Purpose),
		Verdict:   string(rec.Verdict),
		Latency:   rec.Latency,
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	}
	if err := LogOracleCall(c.DB, entry); err != nil {
		log.Printf("[STORE] session=%s: %v", c.SessionID, err)
	}
}

// #endregion observer

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
