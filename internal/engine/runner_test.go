package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/speaking-coach/internal/behavior"
	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/notify"
	"github.com/danielpatrickdp/speaking-coach/internal/oracle"
	"github.com/danielpatrickdp/speaking-coach/internal/report"
	"github.com/danielpatrickdp/speaking-coach/internal/summary"
)

// #region fixtures

type countingEval struct {
	calls   map[string]int
	verdict dispatch.Verdict
}

func (c *countingEval) Evaluate(_ context.Context, r dispatch.Request) dispatch.Outcome {
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[r.Field.Key]++
	return dispatch.Outcome{Value: r.Answer, Verdict: c.verdict}
}

type memSink struct {
	reports []*report.Report
	err     error
}

func (m *memSink) Emit(_ context.Context, r *report.Report) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.reports = append(m.reports, r)
	return "mem://" + r.SessionID, nil
}

func plainField(key, prompt string) lesson.Field {
	return lesson.Field{Key: key, Prompt: lesson.MustParseTemplate(prompt), Duration: 5, MaxAttempts: 2}
}

func checkField(key, tag string, maxAttempts int) lesson.Field {
	b, _ := behavior.Parse(tag, behavior.Params{})
	f := plainField(key, "Say a sentence for "+key)
	f.Behavior = b
	f.MaxAttempts = maxAttempts
	return f
}

func introConfig() *lesson.Config {
	return &lesson.Config{
		ModuleID: "introduction",
		Welcome:  "Welcome to the introduction module!",
		Closing:  "Thanks for practising.",
		Fields: []lesson.Field{
			plainField("name", "What is your name?"),
			plainField("city", "Where are you from, {name}?"),
			plainField("age", "How old are you?"),
		},
		SummaryTemplate:     lesson.MustParseTemplate("My name is {name}. I am from {city}. I am {age} years old."),
		PostSummaryFeedback: map[string]string{"PASS": "Excellent restatement!", "FAIL": "Keep practising that sentence."},
	}
}

func newRunner(t *testing.T, cfg *lesson.Config, eval Evaluator) (*Runner, *notify.Recorder, *memSink) {
	t.Helper()
	rec := &notify.Recorder{}
	sink := &memSink{}
	clock := func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }
	r := NewRunner(cfg, eval, WithNotifier(rec), WithReportSink(sink), WithClock(clock), WithSessionID("sess-1"))
	require.NoError(t, r.Start(context.Background()))
	return r, rec, sink
}

// #endregion

// #region start

func TestStartEmitsWelcomeAndFirstPrompt(t *testing.T) {
	_, rec, _ := newRunner(t, introConfig(), &countingEval{})
	labels := rec.Labels()
	require.GreaterOrEqual(t, len(labels), 3)
	assert.Equal(t, []notify.Label{notify.Welcome, notify.Prompt, notify.Status}, labels[:3])
	assert.Equal(t, []string{"What is your name?"}, rec.Messages(notify.Prompt))
	for _, e := range rec.Events() {
		assert.Equal(t, "sess-1", e.SessionID)
	}
}

func TestStartTwiceFails(t *testing.T) {
	r, _, _ := newRunner(t, introConfig(), &countingEval{})
	assert.Error(t, r.Start(context.Background()))
}

func TestSubmitBeforeStart(t *testing.T) {
	r := NewRunner(introConfig(), &countingEval{})
	_, err := r.Submit(context.Background(), "name", "Ana")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestNoFieldsFinishesImmediately(t *testing.T) {
	cfg := &lesson.Config{ModuleID: "empty"}
	r, rec, sink := newRunner(t, cfg, &countingEval{})
	assert.Equal(t, StateClosed, r.State())
	require.Len(t, sink.reports, 1)
	assert.Equal(t, summary.Skipped, sink.reports[0].Assessment)
	assert.Contains(t, rec.Messages(notify.Status), NoLogicStatus)
	assert.Contains(t, rec.Messages(notify.Closing), StaticClosing)
}

// #endregion

// #region fields

func TestFieldsVisitedInOrder(t *testing.T) {
	r, rec, _ := newRunner(t, introConfig(), &countingEval{})
	ctx := context.Background()

	last := r.Snapshot().FieldIndex
	for _, a := range []struct{ key, text string }{{"name", "Ana"}, {"city", "Lima"}, {"age", "22"}} {
		_, err := r.Submit(ctx, a.key, a.text)
		require.NoError(t, err)
		idx := r.Snapshot().FieldIndex
		assert.GreaterOrEqual(t, idx, last)
		last = idx
	}

	var order []string
	for _, e := range rec.Events() {
		if e.Label == notify.Prompt && e.Field != lesson.SummaryKey {
			order = append(order, e.Field)
		}
	}
	assert.Equal(t, []string{"name", "city", "age"}, order)
	assert.Contains(t, rec.Messages(notify.Prompt), "Where are you from, Ana?")
}

func TestPlainFieldAcceptsFirstAnswer(t *testing.T) {
	r, rec, _ := newRunner(t, introConfig(), &countingEval{})
	ack, err := r.Submit(context.Background(), "name", "Ana")
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.Equal(t, 1, ack.Attempt)
	assert.Equal(t, "city", ack.NextField)
	assert.Empty(t, rec.Messages(notify.Retry))
	filled, _ := r.Summary()
	assert.Equal(t, "Ana", filled["name"])
}

func TestEmptyPlainAnswerRetriesThenSentinel(t *testing.T) {
	r, rec, _ := newRunner(t, introConfig(), &countingEval{})
	ctx := context.Background()

	ack, err := r.Submit(ctx, "name", "")
	require.NoError(t, err)
	assert.False(t, ack.Accepted)
	assert.Equal(t, "name", ack.NextField)
	assert.Equal(t, []string{RetryMessage}, rec.Messages(notify.Retry))

	ack, err = r.Submit(ctx, "name", "")
	require.NoError(t, err)
	assert.Equal(t, "city", ack.NextField)
	filled, _ := r.Summary()
	assert.Equal(t, Sentinel, filled["name"])
}

func TestMaxAttemptsBoundsDispatch(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		cfg := &lesson.Config{ModuleID: "m", Fields: []lesson.Field{checkField("svo", "validate_svo", n), plainField("next", "Next?")}}
		eval := &countingEval{verdict: dispatch.VerdictFail}
		r, rec, _ := newRunner(t, cfg, eval)

		for i := 0; i < n; i++ {
			_, err := r.Submit(context.Background(), "svo", "I eat")
			require.NoError(t, err)
		}
		assert.Equal(t, n, eval.calls["svo"], "n=%d", n)
		assert.Len(t, rec.Messages(notify.Retry), n-1, "n=%d", n)

		snap := r.Snapshot()
		assert.Equal(t, Sentinel, snap.FilledFields["svo"])
		assert.Equal(t, false, snap.FieldScores["svo"])
		assert.Equal(t, "FAIL", snap.FieldResults["svo"])
		assert.Equal(t, "next", snap.ActiveField)

		_, err := r.Submit(context.Background(), "svo", "again")
		assert.ErrorIs(t, err, ErrFieldMismatch, "no further attempts after the limit")
	}
}

func TestValidatorPassAfterRetry(t *testing.T) {
	cfg := &lesson.Config{ModuleID: "m", Fields: []lesson.Field{checkField("svo", "validate_svo", 2)}}
	d := dispatch.New(oracle.NewScripted("No", "Yes"))
	r, _, _ := newRunner(t, cfg, d)
	ctx := context.Background()

	ack, err := r.Submit(ctx, "svo", "I eat")
	require.NoError(t, err)
	assert.Equal(t, dispatch.VerdictFail, ack.Verdict)

	ack, err = r.Submit(ctx, "svo", "I eat apples")
	require.NoError(t, err)
	assert.True(t, ack.Accepted)

	snap := r.Snapshot()
	assert.Equal(t, "I eat apples", snap.FilledFields["svo"])
	assert.True(t, snap.FieldScores["svo"], "retry overwrites the earlier verdict")
	assert.Equal(t, "PASS", snap.FieldResults["svo"])
}

func TestFieldMismatchLeavesStateUntouched(t *testing.T) {
	r, rec, _ := newRunner(t, introConfig(), &countingEval{})
	before := r.Snapshot()
	eventsBefore := len(rec.Events())

	_, err := r.Submit(context.Background(), "city", "Lima")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldMismatch)
	var fm *FieldMismatchError
	require.True(t, errors.As(err, &fm))
	assert.Equal(t, "name", fm.Expected)
	assert.Equal(t, "city", fm.Got)

	assert.Equal(t, before, r.Snapshot())
	assert.Len(t, rec.Events(), eventsBefore)
}

func TestSkipStoresSentinel(t *testing.T) {
	r, _, _ := newRunner(t, introConfig(), &countingEval{})
	ack, err := r.Skip(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, "city", ack.NextField)
	filled, _ := r.Summary()
	assert.Equal(t, Sentinel, filled["name"])
}

func TestMissingPromptKeyEmitsDiagnostic(t *testing.T) {
	cfg := &lesson.Config{ModuleID: "m", Fields: []lesson.Field{plainField("a", "Tell me about {pet}.")}}
	_, rec, _ := newRunner(t, cfg, &countingEval{})
	assert.Contains(t, rec.Messages(notify.Status), "Missing value for pet")
	assert.Equal(t, []string{"Tell me about {pet}."}, rec.Messages(notify.Prompt))
}

func TestAcknowledgmentAndFeedbackEvents(t *testing.T) {
	b, _ := behavior.Parse("extract_value", behavior.Params{Acknowledge: true})
	f := plainField("city", "Where are you from?")
	f.Behavior = b
	cfg := &lesson.Config{ModuleID: "m", Fields: []lesson.Field{f}}
	d := dispatch.New(oracle.NewScripted("Lima", "Lima sounds wonderful!"))
	r, rec, _ := newRunner(t, cfg, d)

	_, err := r.Submit(context.Background(), "city", "I'm from Lima")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lima sounds wonderful!"}, rec.Messages(notify.Acknowledge))
	assert.Equal(t, []string{"I'm from Lima"}, rec.Messages(notify.Transcript))
	filled, _ := r.Summary()
	assert.Equal(t, "Lima", filled["city"])
}

// #endregion

// #region summary

func answerAll(t *testing.T, r *Runner) {
	t.Helper()
	ctx := context.Background()
	for _, a := range []struct{ key, text string }{{"name", "Ana"}, {"city", "Lima"}, {"age", "22"}} {
		_, err := r.Submit(ctx, a.key, a.text)
		require.NoError(t, err)
	}
}

func TestSummaryPass(t *testing.T) {
	r, rec, sink := newRunner(t, introConfig(), &countingEval{})
	answerAll(t, r)
	require.Equal(t, StateSummary, r.State())
	assert.Equal(t, []string{"My name is Ana. I am from Lima. I am 22 years old."}, rec.Messages(notify.Example))
	assert.Contains(t, rec.Messages(notify.Prompt), SummaryIntro)

	ack, err := r.Submit(context.Background(), lesson.SummaryKey, "my name is ana i am from lima i am 22 years old")
	require.NoError(t, err)
	assert.Equal(t, summary.Pass, ack.Assessment)
	assert.Equal(t, StateClosed, r.State())

	require.Len(t, sink.reports, 1)
	rep := sink.reports[0]
	assert.Equal(t, summary.Pass, rep.Assessment)
	assert.GreaterOrEqual(t, rep.SimilarityScore, 0.90)
	assert.Equal(t, "my name is ana i am from lima i am 22 years old", rep.UserSummarySpoken)
	assert.Nil(t, rep.Score, "no validation logic, no score")

	assert.Contains(t, rec.Messages(notify.Feedback), "Excellent restatement!")
	closings := rec.Messages(notify.Closing)
	assert.Equal(t, []string{"Thanks for practising.", StaticClosing}, closings)
	assert.Contains(t, rec.Messages(notify.Status), "Results saved to mem://sess-1")
}

func TestSummaryRetryThenFail(t *testing.T) {
	cfg := &lesson.Config{
		ModuleID:            "m",
		Fields:              []lesson.Field{plainField("w", "Word?")},
		SummaryTemplate:     lesson.MustParseTemplate("abcdefghijklmnopqrs{w}"),
		PostSummaryFeedback: map[string]string{"FAIL": "Try this one again later."},
	}
	r, rec, sink := newRunner(t, cfg, &countingEval{})
	ctx := context.Background()
	_, err := r.Submit(ctx, "w", "t")
	require.NoError(t, err)

	ack, err := r.Submit(ctx, lesson.SummaryKey, "abcdefghijklmnopqXYZ")
	require.NoError(t, err)
	assert.Equal(t, summary.Retry, ack.Assessment)
	assert.Equal(t, StateSummary, r.State())
	assert.Equal(t, []string{SummaryRetryMessage}, rec.Messages(notify.Retry))

	ack, err = r.Submit(ctx, lesson.SummaryKey, "abcdeVWXYZ")
	require.NoError(t, err)
	assert.Equal(t, summary.Fail, ack.Assessment)
	assert.Equal(t, StateClosed, r.State())

	rep := sink.reports[0]
	assert.Equal(t, summary.Fail, rep.Assessment)
	assert.Contains(t, rec.Messages(notify.Feedback), "Try this one again later.")
}

func TestSummaryFailMessageOnLowFirstAttempt(t *testing.T) {
	r, rec, _ := newRunner(t, introConfig(), &countingEval{})
	answerAll(t, r)
	_, err := r.Submit(context.Background(), lesson.SummaryKey, "something else entirely")
	require.NoError(t, err)
	assert.Equal(t, []string{SummaryFailMessage}, rec.Messages(notify.Retry))
}

func TestSummarySkippedWhenFieldUnresolved(t *testing.T) {
	r, _, sink := newRunner(t, introConfig(), &countingEval{})
	ctx := context.Background()
	_, err := r.Skip(ctx, "name")
	require.NoError(t, err)
	_, err = r.Submit(ctx, "city", "Lima")
	require.NoError(t, err)
	_, err = r.Submit(ctx, "age", "22")
	require.NoError(t, err)

	assert.Equal(t, StateClosed, r.State())
	rep := sink.reports[0]
	assert.Equal(t, summary.Skipped, rep.Assessment)
	assert.Equal(t, SkippedSummary, rep.ExpectedSummary)
	assert.Equal(t, SkippedSummary, rep.UserSummarySpoken)
	assert.Zero(t, rep.SimilarityScore)
}

func TestSummaryMissingKeyEmitsDiagnostic(t *testing.T) {
	cfg := introConfig()
	cfg.SummaryTemplate = lesson.MustParseTemplate("My name is {name} and I like {hobby}.")
	r, rec, sink := newRunner(t, cfg, &countingEval{})
	answerAll(t, r)

	assert.Equal(t, StateClosed, r.State())
	var found bool
	for _, e := range rec.Events() {
		if e.Label == notify.Status && e.Field == lesson.SummaryKey {
			assert.Equal(t, "Missing value for hobby", e.Message)
			found = true
		}
	}
	assert.True(t, found, "expected a summary status diagnostic")
	require.Len(t, sink.reports, 1)
	assert.Equal(t, summary.Skipped, sink.reports[0].Assessment)
}

func TestSkipSummary(t *testing.T) {
	r, _, sink := newRunner(t, introConfig(), &countingEval{})
	answerAll(t, r)
	ack, err := r.Skip(context.Background(), lesson.SummaryKey)
	require.NoError(t, err)
	assert.Equal(t, summary.Skipped, ack.Assessment)
	assert.Equal(t, summary.Skipped, sink.reports[0].Assessment)
}

// #endregion

// #region scoring-and-report

func TestAggregationOutcomeInReport(t *testing.T) {
	one := 1
	cfg := &lesson.Config{
		ModuleID: "meaningful",
		Fields:   []lesson.Field{checkField("f1", "validate_meaningful_response", 1), checkField("f2", "validate_meaningful_response", 1)},
		Logic:    &lesson.Logic{Type: lesson.LogicCustomMeaningful, TargetFields: []string{"f1", "f2"}, MinimumCorrect: &one},
	}
	d := dispatch.New(oracle.NewScripted("Yes", "No"))
	r, rec, sink := newRunner(t, cfg, d)
	ctx := context.Background()
	_, err := r.Submit(ctx, "f1", "I like reading because it relaxes me.")
	require.NoError(t, err)
	_, err = r.Submit(ctx, "f2", "blue")
	require.NoError(t, err)

	require.Len(t, sink.reports, 1)
	rep := sink.reports[0]
	assert.Equal(t, 50.0, rep.Score)
	assert.Equal(t, "Great job!", rep.Feedback)
	assert.Equal(t, map[string]string{"f1": "PASS", "f2": "FAIL"}, rep.FieldResults)
	assert.Contains(t, rec.Messages(notify.Feedback), "Great job!")
}

func TestNotApplicableScore(t *testing.T) {
	cfg := &lesson.Config{
		ModuleID: "m",
		Fields:   []lesson.Field{plainField("a", "A?")},
		Logic:    &lesson.Logic{Type: lesson.LogicCustomClause},
	}
	r, rec, sink := newRunner(t, cfg, &countingEval{})
	_, err := r.Submit(context.Background(), "a", "anything")
	require.NoError(t, err)

	assert.Equal(t, StateClosed, r.State())
	rep := sink.reports[0]
	assert.Equal(t, "N/A", rep.Score)
	assert.Contains(t, rec.Messages(notify.Feedback), "No applicable validation fields.")
}

func TestReportWriteFailureIsReported(t *testing.T) {
	cfg := &lesson.Config{ModuleID: "m"}
	rec := &notify.Recorder{}
	r := NewRunner(cfg, &countingEval{}, WithNotifier(rec), WithReportSink(&memSink{err: errors.New("disk full")}))
	require.NoError(t, r.Start(context.Background()))

	assert.Contains(t, rec.Messages(notify.Status), "Report write failed: disk full")
	rep, ok := r.Report()
	assert.True(t, ok, "report is kept even when the sink fails")
	assert.Equal(t, "m", rep.ModuleID)
}

func TestClosedSessionRejectsInput(t *testing.T) {
	r, _, _ := newRunner(t, &lesson.Config{ModuleID: "m"}, &countingEval{})
	_, err := r.Submit(context.Background(), "anything", "x")
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = r.Skip(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, r.Start(context.Background()), ErrSessionClosed)
}

func TestPronunciationExtrasInReport(t *testing.T) {
	b, _ := behavior.Parse("validate_pronunciation", behavior.Params{Expected: "Thank you very much"})
	f := plainField("p1", "Repeat: Thank you very much")
	f.Behavior = b
	cfg := &lesson.Config{ModuleID: "pron", Fields: []lesson.Field{f}}
	r, _, sink := newRunner(t, cfg, dispatch.New(nil))

	_, err := r.Submit(context.Background(), "p1", "thank you very much")
	require.NoError(t, err)
	rep := sink.reports[0]
	assert.Equal(t, 1.0, rep.Extras["p1_pron_score"])
	assert.Equal(t, "PASS", rep.Extras["p1_pron_result"])
}

// #endregion
