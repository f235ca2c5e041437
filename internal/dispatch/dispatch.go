package dispatch

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/speaking-coach/internal/behavior"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/oracle"
	"github.com/danielpatrickdp/speaking-coach/internal/summary"
)

// #region types

// Verdict is the judgment on one answer. VerdictNone means the behavior does
// not judge correctness.
type Verdict string

const (
	VerdictNone Verdict = ""
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

func verdictOf(ok bool) Verdict {
	if ok {
		return VerdictPass
	}
	return VerdictFail
}

// Request is one answer to evaluate. Prompt is the text the learner saw.
type Request struct {
	Field  lesson.Field
	Prompt string
	Answer string
}

// Outcome is what the dispatcher decided about one answer.
type Outcome struct {
	Value          string
	Verdict        Verdict
	Feedback       string
	Acknowledgment string
	Extras         map[string]any
	Err            error // oracle failure that was absorbed, for logging
}

// CallRecord describes one oracle call.
type CallRecord struct {
	Field   string
	Kind    behavior.Kind
	Purpose oracle.Purpose
	Verdict Verdict
	Err     error
	Latency time.Duration
}

// Observer is told about every oracle call.
type Observer interface {
	ObserveCall(CallRecord)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(CallRecord)

func (f ObserverFunc) ObserveCall(r CallRecord) { f(r) }

// #endregion

// #region dispatcher

const DefaultTimeout = 10 * time.Second

// Dispatcher routes an answer to the handling its field's behavior asks for.
type Dispatcher struct {
	oracle    oracle.Oracle
	timeout   time.Duration
	observers []Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each oracle call.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// WithObserver registers an oracle call observer.
func WithObserver(o Observer) Option {
	return func(disp *Dispatcher) { disp.observers = append(disp.observers, o) }
}

// New creates a dispatcher over o.
func New(o oracle.Oracle, opts ...Option) *Dispatcher {
	d := &Dispatcher{oracle: o, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Evaluate judges one answer. It never returns an error: oracle failures
// fail closed for validators and yield an empty value for extractors.
func (d *Dispatcher) Evaluate(ctx context.Context, r Request) Outcome {
	answer := strings.TrimSpace(r.Answer)

	switch b := r.Field.Behavior.(type) {
	case nil, behavior.Passthrough:
		return Outcome{Value: answer}
	case behavior.Extract:
		return d.extract(ctx, r, b, answer)
	case behavior.Acknowledge:
		out := Outcome{Value: answer}
		if answer != "" {
			out.Acknowledgment, out.Err = d.acknowledge(ctx, r.Field.Key, answer, b.Prompt)
		}
		return out
	case behavior.Pronunciation:
		return pronunciation(r, b, answer)
	case behavior.Check:
		return d.check(ctx, r, b, answer)
	default:
		log.Printf("[DISPATCH] field=%s: unhandled behavior %T, passing through", r.Field.Key, b)
		return Outcome{Value: answer}
	}
}

// #endregion

// #region extract

var refusalMarkers = []string{"no value", "does not contain", "implied", "the input does not"}

func (d *Dispatcher) extract(ctx context.Context, r Request, b behavior.Extract, answer string) Outcome {
	out := Outcome{}
	if b.Type == "number" {
		if n, ok := scanNumber(answer); ok {
			out.Value = n
		}
	}
	if out.Value == "" && answer != "" {
		reply, err := d.ask(ctx, r.Field.Key, behavior.KindExtractValue, oracle.Query{
			Instruction: extractInstruction(r.Field.Key),
			Input:       answer,
			Temperature: 0.3,
			MaxTokens:   30,
			Purpose:     oracle.PurposeExtract,
		})
		if err != nil {
			log.Printf("[DISPATCH] field=%s extract failed: %v", r.Field.Key, err)
			out.Err = err
		} else {
			out.Value = cleanExtraction(reply)
			if out.Value == "" {
				log.Printf("[DISPATCH] field=%s extract refused: %q", r.Field.Key, reply)
			}
		}
	}

	if b.Acknowledge && out.Value != "" {
		ack, err := d.acknowledge(ctx, r.Field.Key, out.Value, b.AckPrompt)
		out.Acknowledgment = ack
		if out.Err == nil {
			out.Err = err
		}
	}
	return out
}

// scanNumber joins every digit in s and accepts the result as an age-like
// value between 3 and 120.
func scanNumber(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil || n < 3 || n > 120 {
		return "", false
	}
	return strconv.Itoa(n), true
}

func cleanExtraction(reply string) string {
	v := strings.Trim(strings.TrimSpace(reply), `"'`)
	lower := strings.ToLower(v)
	for _, m := range refusalMarkers {
		if strings.Contains(lower, m) {
			return ""
		}
	}
	return v
}

// #endregion

// #region acknowledge

func (d *Dispatcher) acknowledge(ctx context.Context, key, value, custom string) (string, error) {
	reply, err := d.ask(ctx, key, behavior.KindAcknowledge, oracle.Query{
		Instruction: acknowledgeInstruction(key, value, custom),
		Input:       fmt.Sprintf("%s: %s", key, value),
		Temperature: 0.7,
		MaxTokens:   30,
		Purpose:     oracle.PurposeAcknowledge,
	})
	if err != nil {
		log.Printf("[DISPATCH] field=%s acknowledgment failed: %v", key, err)
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// #endregion

// #region pronunciation

func pronunciation(r Request, b behavior.Pronunciation, answer string) Outcome {
	out := Outcome{Value: answer}
	if b.Expected == "" {
		return out
	}
	ratio := summary.Similarity(b.Expected, answer)
	band := summary.PronunciationBands.Classify(ratio)
	out.Verdict = verdictOf(band == summary.Pass)
	out.Extras = map[string]any{
		r.Field.Key + "_pron_score":  summary.Round2(ratio),
		r.Field.Key + "_pron_result": string(band),
	}
	out.Feedback = feedbackFor(r.Field, out.Verdict)
	return out
}

// #endregion

// #region check

func (d *Dispatcher) check(ctx context.Context, r Request, c behavior.Check, answer string) (out Outcome) {
	out = Outcome{Value: answer, Verdict: VerdictFail}
	defer func() { out.Feedback = feedbackFor(r.Field, out.Verdict) }()

	if answer == "" {
		return out
	}
	instruction, ok := checkInstruction(c, r)
	if !ok {
		log.Printf("[DISPATCH] field=%s: no validator for %s, failing closed", r.Field.Key, c.Check)
		return out
	}

	reply, err := d.ask(ctx, r.Field.Key, c.Check, oracle.Query{
		Instruction: instruction,
		Input:       answer,
		Temperature: 0.2,
		MaxTokens:   10,
		Purpose:     oracle.PurposeValidate,
	})
	if err != nil {
		log.Printf("[DISPATCH] field=%s %s failed closed: %v", r.Field.Key, c.Check, err)
		out.Err = err
		return out
	}
	yes, err := oracle.ParseYesNo(reply)
	if err != nil {
		log.Printf("[DISPATCH] field=%s %s failed closed: %v", r.Field.Key, c.Check, err)
		out.Err = err
		return out
	}
	out.Verdict = verdictOf(yes)
	log.Printf("[DISPATCH] field=%s %s: %s", r.Field.Key, c.Check, out.Verdict)
	return out
}

func feedbackFor(f lesson.Field, v Verdict) string {
	switch v {
	case VerdictPass:
		return f.FeedbackPass
	case VerdictFail:
		return f.FeedbackFail
	}
	return ""
}

// #endregion

// #region ask

func (d *Dispatcher) ask(ctx context.Context, field string, kind behavior.Kind, q oracle.Query) (string, error) {
	if d.oracle == nil {
		return "", fmt.Errorf("%w: no oracle configured", oracle.ErrUnavailable)
	}
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	reply, err := d.oracle.Ask(callCtx, q)
	rec := CallRecord{Field: field, Kind: kind, Purpose: q.Purpose, Err: err, Latency: time.Since(start)}
	if err == nil && q.Purpose == oracle.PurposeValidate {
		if yes, perr := oracle.ParseYesNo(reply); perr == nil {
			rec.Verdict = verdictOf(yes)
		} else {
			rec.Verdict = VerdictFail
			rec.Err = perr
		}
	}
	for _, o := range d.observers {
		o.ObserveCall(rec)
	}
	return reply, err
}

// #endregion
