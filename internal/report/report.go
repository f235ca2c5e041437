package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielpatrickdp/speaking-coach/internal/summary"
)

// #region report

// Report is the outcome of one completed session.
type Report struct {
	SessionID         string
	ModuleID          string
	Fields            map[string]string // filled values, sentinel included
	Extras            map[string]any    // e.g. <key>_pron_score
	FieldResults      map[string]string // key -> PASS|FAIL
	Score             any               // float64 percent, "N/A", or nil when no logic
	Feedback          string
	ExpectedSummary   string
	UserSummarySpoken string
	SimilarityScore   float64
	Assessment        summary.Assessment
	CompletedAt       time.Time
}

// MarshalJSON writes one flat object: filled fields and extras first, then
// the fixed result keys. A field value never stands in for a result key,
// even an omitted one; the loader rejects such field keys anyway.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+len(r.Extras)+10)
	for k, v := range r.Fields {
		out[k] = v
	}
	for k, v := range r.Extras {
		out[k] = v
	}

	results := r.FieldResults
	if results == nil {
		results = map[string]string{}
	}
	out["module"] = r.ModuleID
	out["session_id"] = r.SessionID
	out["field_results"] = results
	if r.Score != nil {
		out["score"] = r.Score
	} else {
		delete(out, "score")
	}
	if r.Feedback != "" {
		out["feedback"] = r.Feedback
	} else {
		delete(out, "feedback")
	}
	out["expected_summary"] = r.ExpectedSummary
	out["user_summary_spoken"] = r.UserSummarySpoken
	out["similarity_score"] = summary.Round2(r.SimilarityScore)
	out["assessment"] = r.Assessment
	out["completed_at"] = r.CompletedAt.UTC().Format(time.RFC3339)
	return json.Marshal(out)
}

// FileName is <module>_output_<YYYY-MM-DD_HH-MM-SS>.json.
func FileName(moduleID string, at time.Time) string {
	safe := strings.NewReplacer("/", "_", `\`, "_", " ", "_").Replace(moduleID)
	return fmt.Sprintf("%s_output_%s.json", safe, at.Format("2006-01-02_15-04-05"))
}

// #endregion

// #region sinks

// Sink persists a finished report and says where it went.
type Sink interface {
	Emit(ctx context.Context, r *Report) (string, error)
}

// FileEmitter writes each report as an indented JSON file in Dir.
type FileEmitter struct {
	Dir string
}

func (f FileEmitter) Emit(_ context.Context, r *Report) (string, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := filepath.Join(f.Dir, FileName(r.ModuleID, r.CompletedAt))
	tmp, err := os.CreateTemp(f.Dir, ".report-*")
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename report: %w", err)
	}
	return path, nil
}

// Multi emits to every sink. The first sink's location is returned; errors
// from all sinks are joined.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, r *Report) (string, error) {
	var first string
	var errs []error
	for i, s := range m {
		loc, err := s.Emit(ctx, r)
		if err != nil {
			log.Printf("[REPORT] sink %d failed: %v", i, err)
			errs = append(errs, err)
			continue
		}
		if first == "" {
			first = loc
		}
	}
	return first, errors.Join(errs...)
}

// #endregion
