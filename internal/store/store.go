package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/speaking-coach/internal/report"
)

// ErrNotFound is returned by Get for an unknown report id.
var ErrNotFound = errors.New("report not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	module        TEXT NOT NULL,
	assessment    TEXT NOT NULL,
	score         TEXT,
	similarity    REAL NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	report_json   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS reports_module ON reports(module, created_at);
CREATE INDEX IF NOT EXISTS reports_session ON reports(session_id);

CREATE TABLE IF NOT EXISTS oracle_calls (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	field         TEXT NOT NULL,
	kind          TEXT,
	purpose       TEXT NOT NULL,
	verdict       TEXT,
	error         TEXT,
	latency_ms    INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS oracle_calls_session ON oracle_calls(session_id, id);
`

// #endregion schema

// #region store-struct
// Store archives finished session reports in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the oracle call log.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region emit
// Emit archives r. It satisfies report.Sink; the location is "sqlite:<id>".
func (s *Store) Emit(ctx context.Context, r *report.Report) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	id := uuid.New().String()
	created := r.CompletedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, session_id, module, assessment, score, similarity, created_at, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.SessionID, r.ModuleID, string(r.Assessment), scoreColumn(r.Score),
		r.SimilarityScore, created.UTC().Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	log.Printf("[STORE] archived report %s session=%s module=%s", id, r.SessionID, r.ModuleID)
	return "sqlite:" + id, nil
}

func scoreColumn(score any) interface{} {
	switch v := score.(type) {
	case nil:
		return nil
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// #endregion emit

// #region get
// Get retrieves one report by archive id. A "sqlite:" prefix is accepted.
func (s *Store) Get(id string) (Record, error) {
	id = strings.TrimPrefix(id, "sqlite:")
	row := s.db.QueryRow(
		`SELECT id, session_id, module, assessment, score, similarity, created_at, report_json
		 FROM reports WHERE id = ?`, id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return rec, nil
}

// Latest returns the most recent report for a session.
func (s *Store) Latest(sessionID string) (Record, error) {
	recs, err := s.List(Filter{SessionID: sessionID, Limit: 1})
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return recs[0], nil
}

// #endregion get

// #region list
// List returns archived reports, newest first.
func (s *Store) List(f Filter) ([]Record, error) {
	query := `SELECT id, session_id, module, assessment, score, similarity, created_at, report_json FROM reports`
	var where []string
	var args []interface{}
	if f.ModuleID != "" {
		where = append(where, "module = ?")
		args = append(args, f.ModuleID)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Assessment != "" {
		where = append(where, "assessment = ?")
		args = append(args, f.Assessment)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats counts archived reports per assessment.
func (s *Store) Stats() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT assessment, COUNT(*) FROM reports GROUP BY assessment`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var a string
		var n int
		if err := rows.Scan(&a, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out[a] = n
	}
	return out, rows.Err()
}

// #endregion list

// #region scan
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var score sql.NullString
	var createdStr, data string
	if err := sc.Scan(&rec.ID, &rec.SessionID, &rec.ModuleID, &rec.Assessment, &score,
		&rec.Similarity, &createdStr, &data); err != nil {
		return Record{}, err
	}
	if score.Valid {
		rec.Score = score.String
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	rec.Report = json.RawMessage(data)
	return rec, nil
}

// #endregion scan
