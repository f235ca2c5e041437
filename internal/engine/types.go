package engine

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/summary"
)

// #region state

// State is where a session is in its dialogue.
type State string

const (
	StateWelcome        State = "WELCOME"
	StatePrompting      State = "PROMPTING"
	StateAwaitingAnswer State = "AWAITING_ANSWER"
	StateValidating     State = "VALIDATING"
	StateAdvancing      State = "ADVANCING"
	StateSummary        State = "SUMMARY"
	StateClosed         State = "CLOSED"
)

// #endregion

// #region messages

const (
	// Sentinel is stored for a field that was skipped or never resolved.
	Sentinel = "[Unrecognized or skipped]"
	// SkippedSummary fills the summary slots when the summary step is skipped.
	SkippedSummary = "[Skipped]"

	RetryMessage        = "Hmm, that wasn't quite right. Let's try again."
	SummaryIntro        = "Let's try a full sentence!"
	SummaryRetryMessage = "Almost there! Try repeating the sentence once more."
	SummaryFailMessage  = "Hmm, that wasn't quite right. Let's try again!"
	StaticClosing       = "This module is completed. Please select the next one."
	NoLogicStatus       = "Module complete, no validation logic."

	StatusRecording  = "recording"
	StatusValidating = "validating"

	summaryAttempts = 2
)

// #endregion

// #region errors

var (
	ErrFieldMismatch = errors.New("answer is not for the active field")
	ErrSessionClosed = errors.New("session closed")
	ErrNotStarted    = errors.New("session not started")
)

// FieldMismatchError reports an answer addressed to a field other than the
// active one. It matches ErrFieldMismatch.
type FieldMismatchError struct {
	Expected string
	Got      string
}

func (e *FieldMismatchError) Error() string {
	return fmt.Sprintf("field mismatch: expected %q, got %q", e.Expected, e.Got)
}

func (e *FieldMismatchError) Unwrap() error { return ErrFieldMismatch }

// #endregion

// #region results

// Ack acknowledges one submitted answer.
type Ack struct {
	Field      string             `json:"field"`
	Accepted   bool               `json:"accepted"`
	Verdict    dispatch.Verdict   `json:"verdict,omitempty"`
	Attempt    int                `json:"attempt"`
	State      State              `json:"state"`
	NextField  string             `json:"next_field,omitempty"`
	Assessment summary.Assessment `json:"assessment,omitempty"`
}

// Snapshot is a copy of a session's state.
type Snapshot struct {
	SessionID       string            `json:"session_id"`
	ModuleID        string            `json:"module"`
	State           State             `json:"state"`
	FieldIndex      int               `json:"field_index"`
	ActiveField     string            `json:"active_field,omitempty"`
	FilledFields    map[string]string `json:"filled_fields"`
	FieldScores     map[string]bool   `json:"field_scores"`
	FieldResults    map[string]string `json:"field_results"`
	Attempts        map[string]int    `json:"attempts"`
	Extras          map[string]any    `json:"extras,omitempty"`
	ExpectedSummary string            `json:"expected_summary,omitempty"`
	LastFeedback    string            `json:"last_feedback,omitempty"`
}

// #endregion
