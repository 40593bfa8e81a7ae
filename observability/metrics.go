// Package observability exposes prometheus metrics for the serving path:
// per-agent query counters, cache and router outcomes, SQL retry counts,
// and stage latency histograms.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names used with ObserveStage.
const (
	StageEmbed      = "embed"
	StageRetrieve   = "retrieve"
	StageRerank     = "rerank"
	StageGenerate   = "generate"
	StageSQLExecute = "sql_execute"
	StageTotal      = "total"
)

// Metrics is the process-wide metric set.
type Metrics struct {
	Queries            *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	RouterDecisions    *prometheus.CounterVec
	SQLRetries         prometheus.Counter
	SQLValidationFails prometheus.Counter
	StageLatency       *prometheus.HistogramVec
}

// New registers the metric set. A nil registerer uses the default
// registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tsbot",
			Name:      "queries_total",
			Help:      "Queries processed, by agent and outcome.",
		}, []string{"agent", "outcome"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tsbot",
			Name:      "cache_lookups_total",
			Help:      "Semantic cache lookups, by result.",
		}, []string{"result"}),
		RouterDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tsbot",
			Name:      "router_decisions_total",
			Help:      "Routing decisions, by intent.",
		}, []string{"intent"}),
		SQLRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tsbot",
			Name:      "sql_retries_total",
			Help:      "SQL generation attempts beyond the first.",
		}),
		SQLValidationFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tsbot",
			Name:      "sql_validation_failures_total",
			Help:      "Generated statements rejected by validation.",
		}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tsbot",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"}),
	}
}

// ObserveStage records the elapsed time of one stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordQuery counts one finished query.
func (m *Metrics) RecordQuery(agent, outcome string) {
	m.Queries.WithLabelValues(agent, outcome).Inc()
}

// RecordCache counts one cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordRoute counts one routing decision.
func (m *Metrics) RecordRoute(intent string) {
	m.RouterDecisions.WithLabelValues(intent).Inc()
}

// RecordSQLRetry counts one SQL generation attempt beyond the first.
func (m *Metrics) RecordSQLRetry() {
	m.SQLRetries.Inc()
}

// RecordSQLValidationFailure counts one rejected statement.
func (m *Metrics) RecordSQLValidationFailure() {
	m.SQLValidationFails.Inc()
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
