// Package metrics exposes pipeline metrics to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/execution"
	"github.com/rulego/dlquery/translation"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	compileDuration *prometheus.HistogramVec
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	queryRows       *prometheus.CounterVec
	cacheRequests   *prometheus.CounterVec
}

// New registers the collectors with r, a nil r leaves them unregistered.
func New(r prometheus.Registerer) *Metrics {
	return &Metrics{
		compileDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dlquery_compile_duration_seconds",
			Help:    "Time taken to compile, split and translate a request.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		queries: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "dlquery_queries_total",
			Help: "Executed queries by level and error code.",
		}, []string{"level", "code"}),
		queryDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dlquery_query_duration_seconds",
			Help:    "Time taken to execute one query.",
			Buckets: prometheus.DefBuckets,
		}, []string{"level"}),
		queryRows: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "dlquery_query_rows_total",
			Help: "Rows returned by executed queries.",
		}, []string{"level"}),
		cacheRequests: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "dlquery_cache_requests_total",
			Help: "Result cache lookups by result.",
		}, []string{"result"}),
	}
}

// ObserveCompile records a compilation.
func (m *Metrics) ObserveCompile(elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.compileDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveQuery records one executed query, the code label is empty on
// success.
func (m *Metrics) ObserveQuery(q *translation.TranslatedQuery, rows int, elapsed time.Duration, err error) {
	level := string(q.Level)
	code := ""
	if err != nil {
		code = exc.Code(err)
		if code == "" {
			code = "unknown"
		}
	}
	m.queries.WithLabelValues(level, code).Inc()
	m.queryDuration.WithLabelValues(level).Observe(elapsed.Seconds())
	m.queryRows.WithLabelValues(level).Add(float64(rows))
}

// Observer adapts ObserveQuery to the executor hook.
func (m *Metrics) Observer() execution.Observer {
	return m.ObserveQuery
}

// CacheHit records a result cache hit or miss.
func (m *Metrics) CacheHit(hit bool) {
	if hit {
		m.cacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.cacheRequests.WithLabelValues("miss").Inc()
}
