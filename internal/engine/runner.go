package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/notify"
	"github.com/danielpatrickdp/speaking-coach/internal/report"
	"github.com/danielpatrickdp/speaking-coach/internal/scoring"
	"github.com/danielpatrickdp/speaking-coach/internal/summary"
)

// Evaluator judges one answer. *dispatch.Dispatcher implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, r dispatch.Request) dispatch.Outcome
}

// #region runner-struct

// Runner drives one session through a module's fields. All methods are
// serialized by the runner's mutex.
type Runner struct {
	mu sync.Mutex

	id       string
	cfg      *lesson.Config
	eval     Evaluator
	notifier notify.Notifier
	sink     report.Sink
	now      func() time.Time

	state        State
	started      bool
	index        int
	activePrompt string
	lastActivity time.Time

	filled       map[string]string
	extras       map[string]any
	scores       map[string]bool
	results      map[string]string
	attempts     map[string]int
	lastFeedback string

	aggregate       *scoring.Result
	expectedSummary string
	userSummary     string
	summaryTries    int
	similarity      float64
	assessment      summary.Assessment

	report *report.Report
}

// #endregion

// #region constructor

// Option configures a Runner.
type Option func(*Runner)

// WithNotifier sets the event target. Default discards events.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithReportSink sets where the finished report is written.
func WithReportSink(s report.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(r *Runner) { r.id = id }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a session for cfg. Nothing is emitted until Start.
func NewRunner(cfg *lesson.Config, eval Evaluator, opts ...Option) *Runner {
	r := &Runner{
		id:       uuid.NewString(),
		cfg:      cfg,
		eval:     eval,
		notifier: notify.Discard,
		now:      time.Now,
		state:    StateWelcome,
		filled:   map[string]string{},
		extras:   map[string]any{},
		scores:   map[string]bool{},
		results:  map[string]string{},
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastActivity = r.now()
	return r
}

// ID returns the session id.
func (r *Runner) ID() string { return r.id }

// ModuleID returns the module the session runs.
func (r *Runner) ModuleID() string { return r.cfg.ModuleID }

// #endregion

// #region start

// Start emits the welcome and the first prompt. A module without fields
// finishes immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return ErrSessionClosed
	}
	if r.started {
		return fmt.Errorf("session %s already started", r.id)
	}
	r.started = true
	r.touch()

	log.Printf("[ENGINE] session=%s start module=%s fields=%d", r.id, r.cfg.ModuleID, len(r.cfg.Fields))
	if r.cfg.Welcome != "" {
		r.emit(notify.Event{Label: notify.Welcome, Message: r.cfg.Welcome})
	}
	if len(r.cfg.Fields) == 0 {
		r.finish(ctx)
		return nil
	}
	r.promptCurrent()
	return nil
}

// #endregion

// #region submit

// Submit delivers the learner's answer for fieldKey, which must be the active
// field (or "summary" during the summary step). A mismatched key is rejected
// without touching session state.
func (r *Runner) Submit(ctx context.Context, fieldKey, text string) (Ack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkActive(fieldKey); err != nil {
		return Ack{}, err
	}
	r.touch()

	if r.state == StateSummary {
		return r.submitSummary(ctx, text), nil
	}
	return r.submitField(ctx, text), nil
}

// Skip abandons the active field (storing the sentinel) or the summary step.
func (r *Runner) Skip(ctx context.Context, fieldKey string) (Ack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkActive(fieldKey); err != nil {
		return Ack{}, err
	}
	r.touch()

	if r.state == StateSummary {
		log.Printf("[ENGINE] session=%s summary skipped", r.id)
		r.skipSummary()
		r.close(ctx)
		return Ack{Field: lesson.SummaryKey, State: r.state, Assessment: r.assessment}, nil
	}

	f := r.cfg.Fields[r.index]
	log.Printf("[ENGINE] session=%s field=%s skipped", r.id, f.Key)
	r.emit(notify.Event{Label: notify.Status, Message: "skipped", Field: f.Key})
	r.filled[f.Key] = Sentinel
	r.advance(ctx)
	return Ack{Field: f.Key, Attempt: r.attempts[f.Key], State: r.state, NextField: r.activeKey()}, nil
}

func (r *Runner) checkActive(fieldKey string) error {
	if r.state == StateClosed {
		return ErrSessionClosed
	}
	if !r.started {
		return ErrNotStarted
	}
	if expected := r.activeKey(); fieldKey != expected {
		log.Printf("[ENGINE] session=%s rejected answer for %q, active field is %q", r.id, fieldKey, expected)
		return &FieldMismatchError{Expected: expected, Got: fieldKey}
	}
	return nil
}

func (r *Runner) submitField(ctx context.Context, text string) Ack {
	f := r.cfg.Fields[r.index]
	r.state = StateValidating
	r.emit(notify.Event{Label: notify.Status, Message: StatusValidating, Field: f.Key})
	r.emit(notify.Event{Label: notify.Transcript, Message: text, Field: f.Key})

	out := r.eval.Evaluate(ctx, dispatch.Request{Field: f, Prompt: r.activePrompt, Answer: text})
	r.attempts[f.Key]++
	attempt := r.attempts[f.Key]

	if out.Acknowledgment != "" {
		r.emit(notify.Event{Label: notify.Acknowledge, Message: out.Acknowledgment, Field: f.Key})
	}
	if out.Feedback != "" {
		r.lastFeedback = out.Feedback
		r.emit(notify.Event{Label: notify.Feedback, Message: out.Feedback, Field: f.Key})
	}
	maps.Copy(r.extras, out.Extras)
	if out.Verdict != dispatch.VerdictNone {
		r.scores[f.Key] = out.Verdict == dispatch.VerdictPass
		r.results[f.Key] = string(out.Verdict)
	}

	var accepted bool
	switch out.Verdict {
	case dispatch.VerdictPass:
		accepted = true
	case dispatch.VerdictFail:
		accepted = false
	default:
		accepted = out.Value != ""
	}

	ack := Ack{Field: f.Key, Accepted: accepted, Verdict: out.Verdict, Attempt: attempt}
	switch {
	case accepted:
		r.filled[f.Key] = out.Value
		log.Printf("[ENGINE] session=%s field=%s accepted on attempt %d", r.id, f.Key, attempt)
		r.advance(ctx)
	case attempt < maxAttempts(f):
		log.Printf("[ENGINE] session=%s field=%s attempt %d/%d not accepted, retrying", r.id, f.Key, attempt, maxAttempts(f))
		r.emit(notify.Event{Label: notify.Retry, Message: RetryMessage, Field: f.Key})
		r.promptCurrent()
	default:
		log.Printf("[ENGINE] session=%s field=%s unresolved after %d attempts", r.id, f.Key, attempt)
		r.filled[f.Key] = Sentinel
		r.advance(ctx)
	}
	ack.State = r.state
	ack.NextField = r.activeKey()
	return ack
}

func maxAttempts(f lesson.Field) int {
	if f.MaxAttempts < 1 {
		return lesson.DefaultMaxAttempts
	}
	return f.MaxAttempts
}

// #endregion

// #region prompting

func (r *Runner) promptCurrent() {
	f := r.cfg.Fields[r.index]
	r.state = StatePrompting

	text, err := f.Prompt.Render(r.filled)
	if err != nil {
		var mk *lesson.MissingKeyError
		if errors.As(err, &mk) {
			log.Printf("[ENGINE] session=%s field=%s prompt: %v", r.id, f.Key, err)
			r.emit(notify.Event{
				Label:   notify.Status,
				Message: "Missing value for " + strings.Join(mk.Keys, ", "),
				Field:   f.Key,
			})
		}
	}
	r.activePrompt = text

	r.emit(notify.Event{Label: notify.Prompt, Message: text, Duration: f.Duration, Field: f.Key})
	if f.Hint != "" {
		r.emit(notify.Event{Label: notify.Hint, Message: f.Hint, Field: f.Key})
	}
	r.emit(notify.Event{Label: notify.Status, Message: StatusRecording, Duration: f.Duration, Field: f.Key})
	r.state = StateAwaitingAnswer
}

func (r *Runner) advance(ctx context.Context) {
	r.state = StateAdvancing
	r.index++
	if r.index < len(r.cfg.Fields) {
		r.promptCurrent()
		return
	}
	r.finish(ctx)
}

// activeKey is the key Submit currently accepts, or "" when none.
func (r *Runner) activeKey() string {
	switch {
	case r.state == StateSummary:
		return lesson.SummaryKey
	case r.state == StateClosed, r.index >= len(r.cfg.Fields):
		return ""
	default:
		return r.cfg.Fields[r.index].Key
	}
}

// #endregion

// #region finish

func (r *Runner) finish(ctx context.Context) {
	if logic := r.cfg.Logic; logic != nil {
		res := scoring.Aggregate(r.cfg, logic, r.scores)
		r.aggregate = &res
		r.emit(notify.Event{Label: notify.Feedback, Message: res.Feedback})
	} else {
		r.emit(notify.Event{Label: notify.Status, Message: NoLogicStatus})
	}

	if r.beginSummary() {
		return
	}
	r.skipSummary()
	r.close(ctx)
}

// beginSummary enters the summary step when the module has a template and
// every field holds a real value.
func (r *Runner) beginSummary() bool {
	if r.cfg.SummaryTemplate == nil {
		return false
	}
	for _, f := range r.cfg.Fields {
		if v := r.filled[f.Key]; v == "" || v == Sentinel {
			log.Printf("[ENGINE] session=%s summary skipped: field %s unresolved", r.id, f.Key)
			return false
		}
	}
	text, err := r.cfg.SummaryTemplate.Render(r.filled)
	if err != nil {
		log.Printf("[ENGINE] session=%s summary skipped: %v", r.id, err)
		var mk *lesson.MissingKeyError
		if errors.As(err, &mk) {
			r.emit(notify.Event{
				Label:   notify.Status,
				Message: "Missing value for " + strings.Join(mk.Keys, ", "),
				Field:   lesson.SummaryKey,
			})
		}
		return false
	}

	r.expectedSummary = text
	r.state = StateSummary
	r.emit(notify.Event{Label: notify.Prompt, Message: SummaryIntro, Duration: lesson.DefaultSummaryDuration, Field: lesson.SummaryKey})
	r.emit(notify.Event{Label: notify.Example, Message: text, Field: lesson.SummaryKey})
	r.emit(notify.Event{Label: notify.Status, Message: StatusRecording, Duration: lesson.DefaultSummaryDuration, Field: lesson.SummaryKey})
	return true
}

func (r *Runner) submitSummary(ctx context.Context, text string) Ack {
	r.emit(notify.Event{Label: notify.Status, Message: StatusValidating, Field: lesson.SummaryKey})
	r.emit(notify.Event{Label: notify.Transcript, Message: text, Field: lesson.SummaryKey})

	r.summaryTries++
	r.userSummary = text
	r.similarity = summary.Similarity(r.expectedSummary, text)
	band := summary.SummaryBands.Classify(r.similarity)
	log.Printf("[ENGINE] session=%s summary attempt %d: similarity=%.2f band=%s", r.id, r.summaryTries, r.similarity, band)

	ack := Ack{Field: lesson.SummaryKey, Attempt: r.summaryTries, Assessment: band}
	switch {
	case band == summary.Pass:
		ack.Accepted = true
		r.assessment = summary.Pass
		r.close(ctx)
	case r.summaryTries < summaryAttempts:
		msg := SummaryFailMessage
		if band == summary.Retry {
			msg = SummaryRetryMessage
		}
		r.emit(notify.Event{Label: notify.Retry, Message: msg, Field: lesson.SummaryKey})
		r.emit(notify.Event{Label: notify.Status, Message: StatusRecording, Duration: lesson.DefaultSummaryDuration, Field: lesson.SummaryKey})
	default:
		r.assessment = summary.Fail
		ack.Assessment = summary.Fail
		r.close(ctx)
	}
	ack.State = r.state
	ack.NextField = r.activeKey()
	return ack
}

func (r *Runner) skipSummary() {
	r.expectedSummary = SkippedSummary
	r.userSummary = SkippedSummary
	r.similarity = 0
	r.assessment = summary.Skipped
}

func (r *Runner) close(ctx context.Context) {
	if msg := r.cfg.PostSummaryFeedback[string(r.assessment)]; msg != "" {
		r.emit(notify.Event{Label: notify.Feedback, Message: msg})
	}
	if r.cfg.Closing != "" {
		r.emit(notify.Event{Label: notify.Closing, Message: r.cfg.Closing})
	}

	r.report = r.buildReport()
	if r.sink != nil {
		loc, err := r.sink.Emit(ctx, r.report)
		if err != nil {
			log.Printf("[ENGINE] session=%s report write failed: %v", r.id, err)
			r.emit(notify.Event{Label: notify.Status, Message: "Report write failed: " + err.Error()})
		}
		if loc != "" {
			r.emit(notify.Event{Label: notify.Status, Message: "Results saved to " + loc})
		}
	}

	r.emit(notify.Event{Label: notify.Closing, Message: StaticClosing})
	r.state = StateClosed
	log.Printf("[ENGINE] session=%s closed assessment=%s", r.id, r.assessment)
}

func (r *Runner) buildReport() *report.Report {
	rep := &report.Report{
		SessionID:         r.id,
		ModuleID:          r.cfg.ModuleID,
		Fields:            maps.Clone(r.filled),
		Extras:            maps.Clone(r.extras),
		FieldResults:      maps.Clone(r.results),
		ExpectedSummary:   r.expectedSummary,
		UserSummarySpoken: r.userSummary,
		SimilarityScore:   r.similarity,
		Assessment:        r.assessment,
		CompletedAt:       r.now(),
	}
	if r.aggregate != nil {
		rep.Score = r.aggregate.ReportScore()
		rep.Feedback = r.aggregate.Feedback
	}
	return rep
}

// #endregion

// #region accessors

// State returns the current dialogue state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastActivity is when the session last started or received input.
func (r *Runner) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Summary returns copies of the filled values and recorded verdicts.
func (r *Runner) Summary() (map[string]string, map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.filled), maps.Clone(r.scores)
}

// Snapshot returns a copy of the whole session state.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		SessionID:       r.id,
		ModuleID:        r.cfg.ModuleID,
		State:           r.state,
		FieldIndex:      r.index,
		ActiveField:     r.activeKey(),
		FilledFields:    maps.Clone(r.filled),
		FieldScores:     maps.Clone(r.scores),
		FieldResults:    maps.Clone(r.results),
		Attempts:        maps.Clone(r.attempts),
		Extras:          maps.Clone(r.extras),
		ExpectedSummary: r.expectedSummary,
		LastFeedback:    r.lastFeedback,
	}
}

// Report returns the final report once the session is closed.
func (r *Runner) Report() (*report.Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report, r.report != nil
}

// #endregion

// #region helpers

func (r *Runner) touch() {
	r.lastActivity = r.now()
}

func (r *Runner) emit(e notify.Event) {
	e.SessionID = r.id
	e.Time = r.now()
	r.notifier.Notify(e)
}

// #endregion
