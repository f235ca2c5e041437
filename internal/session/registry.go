package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/engine"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/metrics"
	"github.com/danielpatrickdp/speaking-coach/internal/notify"
	"github.com/danielpatrickdp/speaking-coach/internal/oracle"
	"github.com/danielpatrickdp/speaking-coach/internal/report"
)

// ErrNotFound is returned for an unknown or reaped session id.
var ErrNotFound = errors.New("session not found")

const DefaultTTL = 30 * time.Minute

// #region session

// Session is a running module plus its event history.
type Session struct {
	*engine.Runner
	History *notify.Recorder
	Created time.Time
}

// #endregion

// #region registry

// Registry owns every live session, keyed by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	loader    *lesson.Loader
	oracle    oracle.Oracle
	sink      report.Sink
	notifier  notify.Notifier
	observers []func(sessionID string) dispatch.Observer
	timeout   time.Duration
	ttl       time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithOracle sets the oracle every session's dispatcher uses.
func WithOracle(o oracle.Oracle) Option {
	return func(r *Registry) { r.oracle = o }
}

// WithReportSink sets where finished reports go.
func WithReportSink(s report.Sink) Option {
	return func(r *Registry) { r.sink = s }
}

// WithNotifier adds a notifier shared by all sessions, e.g. a websocket hub.
// Events carry their session id.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithCallObserver adds a per-session oracle call observer.
func WithCallObserver(f func(sessionID string) dispatch.Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, f) }
}

// WithOracleTimeout bounds each oracle call.
func WithOracleTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithTTL sets how long a session may sit idle before Reap removes it.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) { r.ttl = d }
}

// WithClock overrides time.Now for the registry and its sessions.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithMetrics records session counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry that loads modules with loader.
func NewRegistry(loader *lesson.Loader, opts ...Option) *Registry {
	r := &Registry{
		sessions: map[string]*Session{},
		loader:   loader,
		timeout:  dispatch.DefaultTimeout,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// #endregion

// #region lifecycle

// Start loads moduleID, creates a session for it and runs it up to the first
// prompt. Load errors match lesson.ErrConfigNotFound or ErrConfigMalformed.
func (r *Registry) Start(ctx context.Context, moduleID string) (*Session, error) {
	cfg, err := r.loader.Load(moduleID)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	dispOpts := []dispatch.Option{dispatch.WithTimeout(r.timeout)}
	for _, f := range r.observers {
		if o := f(id); o != nil {
			dispOpts = append(dispOpts, dispatch.WithObserver(o))
		}
	}

	history := &notify.Recorder{}
	runOpts := []engine.Option{
		engine.WithSessionID(id),
		engine.WithClock(r.now),
		engine.WithNotifier(notify.Fanout{history, r.notifier}),
	}
	if r.sink != nil {
		runOpts = append(runOpts, engine.WithReportSink(r.sink))
	}
	s := &Session{
		Runner:  engine.NewRunner(cfg, dispatch.New(r.oracle, dispOpts...), runOpts...),
		History: history,
		Created: r.now(),
	}

	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		r.Remove(id)
		return nil, fmt.Errorf("start session: %w", err)
	}
	log.Printf("[SESSION] started %s module=%s live=%d", id, moduleID, n)
	if r.metrics != nil {
		r.metrics.SessionsStarted.WithLabelValues(cfg.ModuleID).Inc()
		r.metrics.SessionsActive.Set(float64(n))
	}
	return s, nil
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Remove drops a session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if ok && r.metrics != nil {
		r.metrics.SessionsActive.Set(float64(n))
	}
	return ok
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns a snapshot of every session, oldest first.
func (r *Registry) List() []engine.Snapshot {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Created.Equal(all[j].Created) {
			return all[i].ID() < all[j].ID()
		}
		return all[i].Created.Before(all[j].Created)
	})
	out := make([]engine.Snapshot, len(all))
	for i, s := range all {
		out[i] = s.Snapshot()
	}
	return out
}

// #endregion

// #region reaping

// Reap removes sessions idle for longer than the TTL, closed or not, and
// returns how many it removed.
func (r *Registry) Reap() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var reaped []string
	for id, s := range r.sessions {
		if s.LastActivity().Before(cutoff) {
			delete(r.sessions, id)
			reaped = append(reaped, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, id := range reaped {
		log.Printf("[SESSION] reaped idle session %s", id)
	}
	if r.metrics != nil {
		r.metrics.SessionsReaped.Add(float64(len(reaped)))
		r.metrics.SessionsActive.Set(float64(n))
	}
	return len(reaped)
}

// RunJanitor reaps every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Reap()
		}
	}
}

// #endregion
