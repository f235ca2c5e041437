package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Reply is one canned answer. A non-nil Err is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// Scripted replays canned replies in order, then falls back to Default.
// Used by tests and the replay harness.
type Scripted struct {
	mu      sync.Mutex
	queue   []Reply
	calls   []Query
	Default Reply
}

// NewScripted queues plain text replies.
func NewScripted(texts ...string) *Scripted {
	s := &Scripted{Default: Reply{Err: fmt.Errorf("%w: script exhausted", ErrUnavailable)}}
	for _, t := range texts {
		s.queue = append(s.queue, Reply{Text: t})
	}
	return s
}

// Push appends replies to the queue.
func (s *Scripted) Push(r ...Reply) {
	s.mu.Lock()
	s.queue = append(s.queue, r...)
	s.mu.Unlock()
}

// Ask implements Oracle.
func (s *Scripted) Ask(ctx context.Context, q Query) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, q)
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r := s.Default
	if len(s.queue) > 0 {
		r = s.queue[0]
		s.queue = s.queue[1:]
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Calls returns a copy of every query received so far.
func (s *Scripted) Calls() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Query(nil), s.calls...)
}

// Remaining reports how many queued replies are unused.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
