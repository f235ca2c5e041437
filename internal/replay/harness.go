package replay

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/engine"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/notify"
	"github.com/danielpatrickdp/speaking-coach/internal/oracle"
	"github.com/danielpatrickdp/speaking-coach/internal/report"
)

// #region types

// TurnResult is what the engine said about one turn.
type TurnResult struct {
	Index int
	Field string
	Ack   engine.Ack
	Err   error
}

// Run is the outcome of replaying a whole fixture.
type Run struct {
	Turns    []TurnResult
	Final    engine.Snapshot
	Report   *report.Report // nil when the session did not close
	Events   []notify.Event
	Unused   int // oracle replies left over
	Mismatch []string
}

// ReplaySummary provides aggregate stats from a run.
type ReplaySummary struct {
	TotalTurns int
	Accepted   int
	Rejected   int
	Errors     int
	State      engine.State
	Assessment string
}

// #endregion types

// #region replay

// Replay runs turns through a fresh session of cfg with a scripted oracle.
// Operates entirely in memory; no report is written anywhere.
func Replay(ctx context.Context, cfg *lesson.Config, replies []string, turns []FixtureTurn) *Run {
	orc := oracle.NewScripted(replies...)
	rec := &notify.Recorder{}
	runner := engine.NewRunner(cfg, dispatch.New(orc), engine.WithNotifier(rec), engine.WithSessionID("replay"))

	run := &Run{}
	if err := runner.Start(ctx); err != nil {
		run.Mismatch = append(run.Mismatch, fmt.Sprintf("start: %v", err))
		return run
	}
	for i, turn := range turns {
		var ack engine.Ack
		var err error
		if turn.Skip {
			ack, err = runner.Skip(ctx, turn.Field)
		} else {
			ack, err = runner.Submit(ctx, turn.Field, turn.Text)
		}
		run.Turns = append(run.Turns, TurnResult{Index: i, Field: turn.Field, Ack: ack, Err: err})
	}

	run.Final = runner.Snapshot()
	run.Report, _ = runner.Report()
	run.Events = rec.Events()
	run.Unused = orc.Remaining()
	return run
}

// ReplayFixture resolves the fixture's module and replays it, then checks
// the run against the fixture's expectations.
func ReplayFixture(ctx context.Context, f *Fixture, loader *lesson.Loader) (*Run, error) {
	cfg, err := f.ModuleConfig(loader)
	if err != nil {
		return nil, fmt.Errorf("fixture module: %w", err)
	}
	run := Replay(ctx, cfg, f.OracleReplies, f.Turns)
	run.Mismatch = append(run.Mismatch, Check(f, run)...)
	return run, nil
}

// Summarize computes aggregate stats from a run.
func Summarize(run *Run) ReplaySummary {
	s := ReplaySummary{TotalTurns: len(run.Turns), State: run.Final.State}
	for _, t := range run.Turns {
		switch {
		case t.Err != nil:
			s.Errors++
		case t.Ack.Accepted:
			s.Accepted++
		default:
			s.Rejected++
		}
	}
	if run.Report != nil {
		s.Assessment = string(run.Report.Assessment)
	}
	return s
}

// #endregion replay

// #region check

// Check compares a run with the fixture's expectations and describes every
// difference. An empty result means the run matched.
func Check(f *Fixture, run *Run) []string {
	var out []string
	for i, turn := range f.Turns {
		if turn.Expect == nil || i >= len(run.Turns) {
			continue
		}
		got := run.Turns[i]
		want := turn.Expect
		if want.Error != "" {
			if name := errorName(got.Err); name != want.Error {
				out = append(out, fmt.Sprintf("turn %d (%s): error %q, want %q", i, turn.Field, name, want.Error))
			}
			continue
		}
		if got.Err != nil {
			out = append(out, fmt.Sprintf("turn %d (%s): unexpected error %v", i, turn.Field, got.Err))
			continue
		}
		if want.Accepted != nil && got.Ack.Accepted != *want.Accepted {
			out = append(out, fmt.Sprintf("turn %d (%s): accepted=%v, want %v", i, turn.Field, got.Ack.Accepted, *want.Accepted))
		}
		if want.Verdict != "" && string(got.Ack.Verdict) != want.Verdict {
			out = append(out, fmt.Sprintf("turn %d (%s): verdict %q, want %q", i, turn.Field, got.Ack.Verdict, want.Verdict))
		}
		if want.NextField != "" && got.Ack.NextField != want.NextField {
			out = append(out, fmt.Sprintf("turn %d (%s): next field %q, want %q", i, turn.Field, got.Ack.NextField, want.NextField))
		}
	}

	exp := f.Expected
	if exp.State != "" && string(run.Final.State) != exp.State {
		out = append(out, fmt.Sprintf("state %s, want %s", run.Final.State, exp.State))
	}
	for _, k := range sortedKeys(exp.FilledFields) {
		if got := run.Final.FilledFields[k]; got != exp.FilledFields[k] {
			out = append(out, fmt.Sprintf("field %s = %q, want %q", k, got, exp.FilledFields[k]))
		}
	}
	for _, k := range sortedKeys(exp.FieldResults) {
		if got := run.Final.FieldResults[k]; got != exp.FieldResults[k] {
			out = append(out, fmt.Sprintf("field_results[%s] = %q, want %q", k, got, exp.FieldResults[k]))
		}
	}
	if exp.Assessment != "" || exp.Score != nil {
		if run.Report == nil {
			return append(out, "session did not produce a report")
		}
		if exp.Assessment != "" && string(run.Report.Assessment) != exp.Assessment {
			out = append(out, fmt.Sprintf("assessment %s, want %s", run.Report.Assessment, exp.Assessment))
		}
		if exp.Score != nil && !reflect.DeepEqual(run.Report.Score, exp.Score) {
			out = append(out, fmt.Sprintf("score %v, want %v", run.Report.Score, exp.Score))
		}
	}
	return out
}

func errorName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrFieldMismatch):
		return "field_mismatch"
	case errors.Is(err, engine.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, engine.ErrNotStarted):
		return "not_started"
	default:
		return err.Error()
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion check
