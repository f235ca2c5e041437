package notify

import (
	"sync"
	"time"
)

// #region labels

// Label names a notification kind.
type Label string

const (
	Welcome     Label = "welcome"
	Prompt      Label = "prompt"
	Hint        Label = "hint"
	Status      Label = "status"
	Transcript  Label = "transcript"
	Retry       Label = "retry"
	Feedback    Label = "feedback"
	Acknowledge Label = "acknowledge"
	Example     Label = "example"
	Closing     Label = "closing"
)

// #endregion

// #region event

// Event is one outbound notification of a session.
type Event struct {
	SessionID string    `json:"session_id"`
	Label     Label     `json:"label"`
	Message   string    `json:"message"`
	Duration  int       `json:"duration,omitempty"`
	Field     string    `json:"field,omitempty"`
	Time      time.Time `json:"timestamp"`
}

// Notifier receives session events. Implementations must not block for long:
// they are called while the session lock is held.
type Notifier interface {
	Notify(Event)
}

// Func adapts a function to Notifier.
type Func func(Event)

func (f Func) Notify(e Event) { f(e) }

// Discard drops every event.
var Discard Notifier = Func(func(Event) {})

// #endregion

// #region fanout

// Fanout forwards each event to every target in order.
type Fanout []Notifier

func (f Fanout) Notify(e Event) {
	for _, n := range f {
		if n != nil {
			n.Notify(e)
		}
	}
}

// #endregion

// #region recorder

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the history.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Since returns events after the first n.
func (r *Recorder) Since(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n >= len(r.events) {
		return nil
	}
	return append([]Event(nil), r.events[n:]...)
}

// Labels returns the label sequence, handy in tests.
func (r *Recorder) Labels() []Label {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Label, len(r.events))
	for i, e := range r.events {
		out[i] = e.Label
	}
	return out
}

// Messages returns the messages carrying label l.
func (r *Recorder) Messages(l Label) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Label == l {
			out = append(out, e.Message)
		}
	}
	return out
}

// #endregion
