package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments of the API. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	SessionsStarted  *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	QuotaRejections  *prometheus.CounterVec
	PollAttempts     prometheus.Counter
	AnalysisOutcomes *prometheus.CounterVec
	LLMLatency       *prometheus.HistogramVec
	WebhookEvents    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments on reg. A nil reg uses a fresh registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Session start attempts by result.",
		}, []string{"result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions started and not yet stopped on this instance.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Client session events by type.",
		}, []string{"event"}),
		QuotaRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Calls refused or charged over the limit, by stage.",
		}, []string{"stage"}),
		PollAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_poll_attempts_total",
			Help:      "Voice platform polls for conversation analysis.",
		}),
		AnalysisOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_outcomes_total",
			Help:      "Post-call analysis outcomes.",
		}, []string{"outcome"}),
		LLMLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "Latency of analysis model calls.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"provider", "result"}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound webhooks by source and result.",
		}, []string{"source", "result"}),
		gatherer: reg,
	}
}

func (m *Metrics) SessionStarted(result string) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(result).Inc()
	if result == "ok" {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) QuotaRejected(stage string) {
	if m == nil {
		return
	}
	m.QuotaRejections.WithLabelValues(stage).Inc()
}

func (m *Metrics) PollAttempt() {
	if m == nil {
		return
	}
	m.PollAttempts.Inc()
}

func (m *Metrics) AnalysisOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AnalysisOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveLLM matches analysis.Observer.
func (m *Metrics) ObserveLLM(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LLMLatency.WithLabelValues(provider, result).Observe(d.Seconds())
}

func (m *Metrics) Webhook(source, result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(source, result).Inc()
}

// Handler serves the registry the metrics were created on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
