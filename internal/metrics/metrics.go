package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/notify"
	"github.com/danielpatrickdp/speaking-coach/internal/report"
)

const namespace = "coach"

// Metrics holds the coach's Prometheus collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	SessionsStarted   *prometheus.CounterVec
	SessionsActive    prometheus.Gauge
	SessionsCompleted *prometheus.CounterVec
	SessionsReaped    prometheus.Counter
	ModuleScore       *prometheus.HistogramVec
	Events            *prometheus.CounterVec
	OracleCalls       *prometheus.CounterVec
	OracleLatency     *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	HTTPLatency       *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		SessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started by module",
		}, []string{"module"}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions held in the registry",
		}),
		SessionsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Completed sessions by module and summary assessment",
		}, []string{"module", "assessment"}),
		SessionsReaped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Sessions removed after the idle TTL",
		}),
		ModuleScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "module_score_percent",
			Help:      "Aggregate module score for modules with validation logic",
			Buckets:   []float64{0, 25, 50, 60, 70, 80, 90, 100},
		}, []string{"module"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Session events emitted by label",
		}, []string{"label"}),
		OracleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Oracle calls by purpose and outcome",
		}, []string{"purpose", "outcome"}),
		OracleLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Oracle call latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms to ~13s
		}, []string{"purpose"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "method", "code"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveCall counts one oracle call. It satisfies dispatch.Observer.
func (m *Metrics) ObserveCall(rec dispatch.CallRecord) {
	outcome := "ok"
	switch {
	case rec.Err != nil:
		outcome = "error"
	case rec.Verdict != dispatch.VerdictNone:
		outcome = string(rec.Verdict)
	}
	m.OracleCalls.WithLabelValues(string(rec.Purpose), outcome).Inc()
	m.OracleLatency.WithLabelValues(string(rec.Purpose)).Observe(rec.Latency.Seconds())
}

// Notify counts session events. It satisfies notify.Notifier.
func (m *Metrics) Notify(e notify.Event) {
	m.Events.WithLabelValues(string(e.Label)).Inc()
}

// Emit records a finished session. It satisfies report.Sink and reports no
// location.
func (m *Metrics) Emit(_ context.Context, r *report.Report) (string, error) {
	m.SessionsCompleted.WithLabelValues(r.ModuleID, string(r.Assessment)).Inc()
	if pct, ok := r.Score.(float64); ok {
		m.ModuleScore.WithLabelValues(r.ModuleID).Observe(pct)
	}
	return "", nil
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(d.Seconds())
}

var (
	_ dispatch.Observer = (*Metrics)(nil)
	_ notify.Notifier   = (*Metrics)(nil)
	_ report.Sink       = (*Metrics)(nil)
)
