package logging

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/speaking-coach/internal/behavior"
	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/oracle"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE oracle_calls (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		field       TEXT NOT NULL,
		kind        TEXT,
		purpose     TEXT NOT NULL,
		verdict     TEXT,
		error       TEXT,
		latency_ms  INTEGER NOT NULL,
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// #endregion helpers

// #region log-call-tests
func TestLogOracleCall_Success(t *testing.T) {
	db := setupDB(t)

	entry := CallEntry{
		SessionID: "s1",
		Field:     "svo",
		Kind:      "validate_svo",
		Purpose:   "validate",
		Verdict:   "PASS",
		Latency:   42 * time.Millisecond,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogOracleCall(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls, err := ListCalls(db, "s1")
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 row, got %d", len(calls))
	}
	got := calls[0]
	if got.Verdict != "PASS" || got.Kind != "validate_svo" || got.Latency != 42*time.Millisecond {
		t.Errorf("unexpected entry: %+v", got)
	}
	if !got.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
}

func TestLogOracleCall_NullOptionalColumns(t *testing.T) {
	db := setupDB(t)
	if err := LogOracleCall(db, CallEntry{SessionID: "s1", Field: "city", Purpose: "extract"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var nulls int
	db.QueryRow(`SELECT COUNT(*) FROM oracle_calls WHERE verdict IS NULL AND error IS NULL AND kind IS NULL`).Scan(&nulls)
	if nulls != 1 {
		t.Errorf("expected optional columns stored as NULL")
	}

	var created string
	db.QueryRow(`SELECT created_at FROM oracle_calls`).Scan(&created)
	if created == "" {
		t.Error("expected created_at to default to now")
	}
}

func TestLogOracleCall_MissingTable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := LogOracleCall(db, CallEntry{SessionID: "s", Field: "f", Purpose: "validate"}); err == nil {
		t.Fatal("expected error without oracle_calls table")
	}
}

// #endregion log-call-tests

// #region observer-tests
func TestCallLoggerRecordsSessionCalls(t *testing.T) {
	db := setupDB(t)
	logger := CallLogger{DB: db, SessionID: "s7"}

	logger.ObserveCall(dispatch.CallRecord{
		Field: "svo", Kind: behavior.KindSVO, Purpose: oracle.PurposeValidate,
		Verdict: dispatch.VerdictFail, Err: errors.New("malformed"), Latency: time.Second,
	})
	logger.ObserveCall(dispatch.CallRecord{Field: "city", Kind: behavior.KindExtractValue, Purpose: oracle.PurposeExtract})

	calls, err := ListCalls(db, "s7")
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Field != "svo" || calls[0].Error != "malformed" || calls[0].Verdict != "FAIL" {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[1].Purpose != "extract" || calls[1].Verdict != "" {
		t.Errorf("second call = %+v", calls[1])
	}

	other, _ := ListCalls(db, "other")
	if len(other) != 0 {
		t.Errorf("calls leaked across sessions: %v", other)
	}
}

func TestCallLoggerWithDispatcher(t *testing.T) {
	db := setupDB(t)
	b, _ := behavior.Parse("validate_svo", behavior.Params{})
	d := dispatch.New(oracle.NewScripted("Yes"), dispatch.WithObserver(CallLogger{DB: db, SessionID: "s"}))

	_ = d.Evaluate(context.Background(), dispatch.Request{Answer: "I eat apples", Field: lesson.Field{Key: "svo", Behavior: b}})

	calls, _ := ListCalls(db, "s")
	if len(calls) != 1 || calls[0].Verdict != "PASS" {
		t.Fatalf("expected one PASS call, got %+v", calls)
	}
}

// #endregion observer-tests
