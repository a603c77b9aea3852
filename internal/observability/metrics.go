package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "voice_assistant"

// CallMetrics holds the prometheus collectors for the call flow.
type CallMetrics struct {
	WebhookEvents *prometheus.CounterVec
	AuthAttempts  *prometheus.CounterVec
	TurnFailures  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	LiveSessions  prometheus.Gauge
}

// NewCallMetrics creates the call collectors and registers them with reg.
func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "webhook_events_total",
			Help:      "Inbound call webhook events by controller branch.",
		}, []string{"branch"}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_attempts_total",
			Help:      "PIN authentication attempts by result.",
		}, []string{"result"}),
		TurnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "turn_failures_total",
			Help:      "Conversation turns that ended in an apology or retry prompt, by stage.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of outbound pipeline calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16},
		}, []string{"stage"}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "live_sessions",
			Help:      "Call sessions currently held in memory.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.WebhookEvents, m.AuthAttempts, m.TurnFailures, m.StageDuration, m.LiveSessions)
	}
	return m
}

// ObserveStage records how long a pipeline stage took.
func (m *CallMetrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// CountEvent increments the webhook counter for a controller branch.
func (m *CallMetrics) CountEvent(branch string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(branch).Inc()
}

// CountAuth increments the authentication counter.
func (m *CallMetrics) CountAuth(result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(result).Inc()
}

// CountFailure increments the turn failure counter.
func (m *CallMetrics) CountFailure(stage string) {
	if m == nil {
		return
	}
	m.TurnFailures.WithLabelValues(stage).Inc()
}

// SetLiveSessions reports the current number of in-memory sessions.
func (m *CallMetrics) SetLiveSessions(n int) {
	if m == nil {
		return
	}
	m.LiveSessions.Set(float64(n))
}
