// Package metrics exposes pipeline counters through Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/judgeflow.net/internal/domain"
)

const namespace = "judge"

type Metrics struct {
	gatherer          prometheus.Gatherer
	submissions       *prometheus.CounterVec
	verdicts          *prometheus.CounterVec
	sandboxCalls      *prometheus.CounterVec
	rateLimitRejected prometheus.Counter
	jobDuration       prometheus.Histogram
	jobsInFlight      prometheus.Gauge
}

// New registers the pipeline collectors on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_accepted_total",
			Help:      "Submissions accepted by the API, by language.",
		}, []string{"language"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_verdicts_total",
			Help:      "Terminal verdicts of processed submissions.",
		}, []string{"verdict"}),
		sandboxCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sandbox_executions_total",
			Help:      "Sandbox executions by language and per-run verdict.",
		}, []string{"language", "verdict"}),
		rateLimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Submissions rejected by the rate limiter.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time spent processing one job.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs currently being processed by this process.",
		}),
	}
	reg.MustRegister(m.submissions, m.verdicts, m.sandboxCalls, m.rateLimitRejected, m.jobDuration, m.jobsInFlight)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SubmissionAccepted(language domain.Language) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(language)).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejected.Inc()
}

func (m *Metrics) SandboxExecuted(language domain.Language, verdict domain.Verdict) {
	if m == nil {
		return
	}
	m.sandboxCalls.WithLabelValues(string(language), string(verdict)).Inc()
}

// JobStarted marks a job in flight and returns the function that finishes it
func (m *Metrics) JobStarted() func(verdict domain.Verdict) {
	if m == nil {
		return func(domain.Verdict) {}
	}
	start := time.Now()
	m.jobsInFlight.Inc()
	return func(verdict domain.Verdict) {
		m.jobsInFlight.Dec()
		m.jobDuration.Observe(time.Since(start).Seconds())
		m.verdicts.WithLabelValues(string(verdict)).Inc()
	}
}
