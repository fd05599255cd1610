package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AdmissionTotal            *prometheus.CounterVec
	FailOpenTotal             prometheus.Counter
	PolicyFallbackTotal       prometheus.Counter
	CleanupRunsTotal          *prometheus.CounterVec
	CleanupEventsDeletedTotal prometheus.Counter
	CleanupDurationSeconds    prometheus.Histogram
	AdmissionDurationSeconds  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		AdmissionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_ratelimit_admission_total",
			Help: "Admission check outcomes by feature and decision",
		}, []string{"feature", "decision"}),
		FailOpenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cortex_ratelimit_fail_open_total",
			Help: "Requests admitted because the counter store was unavailable",
		}),
		PolicyFallbackTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cortex_ratelimit_policy_fallback_total",
			Help: "Admission checks that fell back to the compiled-in default policy",
		}),
		CleanupRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_ratelimit_cleanup_runs_total",
			Help: "Total number of usage retention cleanup runs",
		}, []string{"status"}),
		CleanupEventsDeletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cortex_ratelimit_cleanup_events_deleted_total",
			Help: "Total usage events deleted by the cleanup worker",
		}),
		CleanupDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "cortex_ratelimit_cleanup_duration_seconds",
			Help: "Duration of cleanup runs in seconds",
		}),
		AdmissionDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "cortex_ratelimit_admission_duration_seconds",
			Help: "Duration of admission checks in seconds",
		}),
	}
}

func (m *Metrics) RecordAdmission(feature string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	m.AdmissionTotal.WithLabelValues(feature, decision).Inc()
}

func (m *Metrics) RecordFailOpen() {
	m.FailOpenTotal.Inc()
}

func (m *Metrics) RecordPolicyFallback() {
	m.PolicyFallbackTotal.Inc()
}

func (m *Metrics) RecordCleanupRun(status string, deleted int, durationSeconds float64) {
	m.CleanupRunsTotal.WithLabelValues(status).Inc()
	m.CleanupEventsDeletedTotal.Add(float64(deleted))
	m.CleanupDurationSeconds.Observe(durationSeconds)
}

func (m *Metrics) ObserveAdmissionDuration(seconds float64) {
	m.AdmissionDurationSeconds.Observe(seconds)
}
