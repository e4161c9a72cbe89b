// Package metrics provides Prometheus instrumentation for classification and handling.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "postmottak"

// Recorder holds the service's collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	matches         *prometheus.CounterVec
	maybeMatches    *prometheus.CounterVec
	forwarded       *prometheus.CounterVec
	casesCreated    *prometheus.CounterVec
	documentsCreate *prometheus.CounterVec
	casesUpdated    *prometheus.CounterVec
	flowOutcomes    *prometheus.CounterVec
	unknownMessages *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		matches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_type_match_total",
			Help:      "Messages matched by an email type",
		}, []string{"email_type"}),

		maybeMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_type_maybe_match_total",
			Help:      "Messages an email type matched syntactically but the agent rejected",
		}, []string{"email_type"}),

		forwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_forwarded_total",
			Help:      "Messages forwarded to a distribution list",
		}, []string{"email_type"}),

		casesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_case_created_total",
			Help:      "Archive cases created",
		}, []string{"email_type"}),

		documentsCreate: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_document_created_total",
			Help:      "Archive documents created",
		}, []string{"email_type"}),

		casesUpdated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_case_updated_total",
			Help:      "Archive case updates",
		}, []string{"email_type", "result"}), // result: success, failed

		flowOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_outcomes_total",
			Help:      "Terminal and retry outcomes of handled flows",
		}, []string{"email_type", "outcome"}), // outcome: succeeded, retry, escalated

		unknownMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_messages_total",
			Help:      "Messages no email type matched",
		}, []string{"partial"}),

		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one archive cycle",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Match(emailType string) {
	if r == nil {
		return
	}
	r.matches.WithLabelValues(emailType).Inc()
}

func (r *Recorder) MaybeMatch(emailType string) {
	if r == nil {
		return
	}
	r.maybeMatches.WithLabelValues(emailType).Inc()
}

func (r *Recorder) Forwarded(emailType string) {
	if r == nil {
		return
	}
	r.forwarded.WithLabelValues(emailType).Inc()
}

func (r *Recorder) CaseCreated(emailType string) {
	if r == nil {
		return
	}
	r.casesCreated.WithLabelValues(emailType).Inc()
}

func (r *Recorder) DocumentCreated(emailType string) {
	if r == nil {
		return
	}
	r.documentsCreate.WithLabelValues(emailType).Inc()
}

func (r *Recorder) CaseUpdated(emailType string, ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failed"
	}
	r.casesUpdated.WithLabelValues(emailType, result).Inc()
}

func (r *Recorder) FlowOutcome(emailType, outcome string) {
	if r == nil {
		return
	}
	r.flowOutcomes.WithLabelValues(emailType, outcome).Inc()
}

func (r *Recorder) UnknownMessage(partial bool) {
	if r == nil {
		return
	}
	label := "false"
	if partial {
		label = "true"
	}
	r.unknownMessages.WithLabelValues(label).Inc()
}

func (r *Recorder) ObserveCycle(d time.Duration) {
	if r == nil {
		return
	}
	r.cycleDuration.Observe(d.Seconds())
}
