// Package metrics defines the Prometheus collectors farmline exports.
//
// Collectors are registered on an explicit Registerer so tests can use a
// fresh registry per case.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "farmline"

// Metrics holds every collector.
type Metrics struct {
	// Callbacks counts provider callbacks.
	// Labels: kind (greet|turn|hangup|invalid), outcome (ok|error)
	Callbacks *prometheus.CounterVec

	// Turns counts caller/assistant pairs appended to sessions.
	Turns prometheus.Counter

	// ActiveSessions is the number of calls currently in the store.
	ActiveSessions prometheus.Gauge

	// SessionsStarted counts sessions created.
	SessionsStarted prometheus.Counter

	// SessionsExpired counts sessions dropped for inactivity.
	SessionsExpired prometheus.Counter

	// UpstreamDuration measures answer, summary and SMS latency in seconds.
	// Labels: op (answer|summarize|sms), status (success|error)
	UpstreamDuration *prometheus.HistogramVec

	// SMS counts post-call SMS outcomes.
	// Labels: status (sent|skipped|unconfigured|error)
	SMS *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Telephony provider callbacks by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Turns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Caller/assistant turn pairs recorded.",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Calls with a live session.",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions created.",
		}),
		SessionsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Sessions dropped after going idle without a hang-up callback.",
		}),
		UpstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of answer, summary and SMS calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"op", "status"}),
		SMS: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_total",
			Help:      "Post-call SMS outcomes.",
		}, []string{"status"}),
	}
}

// Callback records one callback.
func (m *Metrics) Callback(kind string, err error) {
	if m == nil {
		return
	}
	m.Callbacks.WithLabelValues(kind, outcome(err)).Inc()
}

// Upstream records the latency of one upstream call started at start.
func (m *Metrics) Upstream(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.UpstreamDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// SMSResult records the outcome of a post-call SMS.
func (m *Metrics) SMSResult(status string) {
	if m == nil {
		return
	}
	m.SMS.WithLabelValues(status).Inc()
}

// SessionStarted records a new session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// SessionsExpiredAdd records n sessions dropped for inactivity.
func (m *Metrics) SessionsExpiredAdd(n int) {
	if m == nil {
		return
	}
	m.SessionsExpired.Add(float64(n))
}

// TurnRecorded records one appended turn pair.
func (m *Metrics) TurnRecorded() {
	if m == nil {
		return
	}
	m.Turns.Inc()
}

// SetActive sets the active session gauge.
func (m *Metrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
