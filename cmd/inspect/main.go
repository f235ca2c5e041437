package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/speaking-coach/internal/logging"
	"github.com/danielpatrickdp/speaking-coach/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to coach.db")
	last := flag.Int("last", 20, "show N most recent reports")
	id := flag.String("id", "", "show one archived report")
	module := flag.String("module", "", "filter by module id")
	sessionID := flag.String("session", "", "filter by session id")
	assessment := flag.String("assessment", "", "filter by assessment (PASS, FAIL, SKIPPED)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/coach.db [--last N] [--id report] [--module m] [--session s] [--assessment a] [--json]")
		os.Exit(2)
	}

	archive, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	if *id != "" {
		err = runDetailMode(archive, *id, *jsonOut)
	} else {
		err = runListMode(archive, store.Filter{
			ModuleID:   *module,
			SessionID:  *sessionID,
			Assessment: *assessment,
			Limit:      *last,
		}, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"session_id"`
	Module     string  `json:"module"`
	Assessment string  `json:"assessment"`
	Score      string  `json:"score,omitempty"`
	Similarity float64 `json:"similarity"`
	CreatedAt  string  `json:"created_at"`
}

func runListMode(archive *store.Store, f store.Filter, jsonOut bool) error {
	records, err := archive.List(f)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no reports found")
		return nil
	}

	// store returns newest first; print chronologically
	rows := make([]listRow, len(records))
	for i, r := range records {
		rows[len(records)-1-i] = listRow{
			ID:         r.ID,
			SessionID:  r.SessionID,
			Module:     r.ModuleID,
			Assessment: r.Assessment,
			Score:      r.Score,
			Similarity: r.Similarity,
			CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-10s  %-28s  %-10s  %7s  %5s  %s\n",
		"Report", "Session", "Module", "Assessment", "Score", "Sim", "Time")
	fmt.Printf("%-10s+-%-10s+-%-28s+-%-10s+-%7s+-%5s+-%s\n",
		"----------", "----------", "----------------------------", "----------", "-------", "-----", "--------------------")
	for _, r := range rows {
		score := r.Score
		if score == "" {
			score = "-"
		}
		fmt.Printf("%-10s  %-10s  %-28s  %-10s  %7s  %5.2f  %s\n",
			shortID(r.ID), shortID(r.SessionID), truncate(r.Module, 28), r.Assessment, score, r.Similarity, r.CreatedAt)
	}

	stats, err := archive.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("\nAssessments (all reports):\n")
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-10s %d\n", k, stats[k])
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	ID     string              `json:"id"`
	Report json.RawMessage     `json:"report"`
	Calls  []logging.CallEntry `json:"oracle_calls"`
}

func runDetailMode(archive *store.Store, id string, jsonOut bool) error {
	rec, err := archive.Get(id)
	if err != nil {
		return err
	}
	calls, err := logging.ListCalls(archive.DB(), rec.SessionID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(detailOutput{ID: rec.ID, Report: rec.Report, Calls: calls})
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Report, &body); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}

	fmt.Printf("Report:     %s\n", rec.ID)
	fmt.Printf("Session:    %s\n", rec.SessionID)
	fmt.Printf("Module:     %s\n", rec.ModuleID)
	fmt.Printf("Created:    %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Assessment: %s\n", rec.Assessment)
	fmt.Printf("Score:      %s\n", orDash(rec.Score))
	fmt.Printf("Similarity: %.2f\n", rec.Similarity)
	if fb, ok := body["feedback"].(string); ok {
		fmt.Printf("Feedback:   %s\n", fb)
	}

	fmt.Printf("\nFields:\n")
	results, _ := body["field_results"].(map[string]any)
	for _, k := range fieldKeys(body) {
		verdict := "-"
		if v, ok := results[k].(string); ok {
			verdict = v
		}
		fmt.Printf("  %-16s %-5s %v\n", k, verdict, body[k])
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Expected: %v\n", body["expected_summary"])
	fmt.Printf("  Spoken:   %v\n", body["user_summary_spoken"])

	if len(calls) > 0 {
		fmt.Printf("\nOracle calls:\n")
		for _, c := range calls {
			fmt.Printf("  %-16s %-12s %-5s %6dms  %s\n",
				c.Field, c.Purpose, orDash(c.Verdict), c.Latency.Milliseconds(), c.Error)
		}
	}
	return nil
}

var reportKeys = map[string]bool{
	"module": true, "session_id": true, "field_results": true, "score": true, "feedback": true,
	"expected_summary": true, "user_summary_spoken": true, "similarity_score": true,
	"assessment": true, "completed_at": true,
}

func fieldKeys(body map[string]any) []string {
	var keys []string
	for k := range body {
		if !reportKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-1] + "~"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion output
