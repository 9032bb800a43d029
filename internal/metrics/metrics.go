// Package metrics instruments the work queue, document processor, and
// ontology evaluator with Prometheus counters and gauges, grounded on the
// teacher's tracing/metrics.go promauto pattern (the teacher instruments
// semantic actions and workflows the same way this package instruments
// documents and relationships).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the pipeline reports against.
// Unlike the teacher's NewMetrics, which registers against the package
// global prometheus.DefaultRegisterer and is only ever constructed once per
// process (docker/example-service/main.go), this package registers against
// a Metrics-owned Registry so building more than one Metrics in one
// process (several app.New calls in one test binary, for example) never
// panics with a duplicate-collector error.
type Metrics struct {
	Registry *prometheus.Registry

	DocumentsClaimed      prometheus.Counter
	DocumentsCompleted    prometheus.Counter
	DocumentsShortCircuited prometheus.Counter
	DocumentsRetried      prometheus.Counter
	DocumentsFailed       prometheus.Counter
	DocumentsDeadLettered prometheus.Counter

	QueueDepth *prometheus.GaugeVec

	ElementTermMappings prometheus.Counter
	DomainRelationships  prometheus.Counter
}

// New builds a Metrics instance under namespace (defaulting to
// "corpusforge" when empty), registered against its own Registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "corpusforge"
	}

	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		DocumentsClaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_claimed_total",
			Help:      "Total number of queue items claimed by a worker.",
		}),
		DocumentsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_completed_total",
			Help:      "Total number of documents processed to completion.",
		}),
		DocumentsShortCircuited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_short_circuited_total",
			Help:      "Total number of documents completed via the unchanged-content short circuit.",
		}),
		DocumentsRetried: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_retried_total",
			Help:      "Total number of documents scheduled for retry after a transient failure.",
		}),
		DocumentsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_failed_total",
			Help:      "Total number of documents finalized as failed (retry budget exhausted).",
		}),
		DocumentsDeadLettered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_dead_lettered_total",
			Help:      "Total number of documents moved to the dead-letter queue.",
		}),

		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of queue items by status, for the run last polled.",
		}, []string{"status"}),

		ElementTermMappings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "element_term_mappings_total",
			Help:      "Total number of element-to-ontology-term mappings emitted.",
		}),
		DomainRelationships: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_relationships_total",
			Help:      "Total number of domain relationships discovered by the ontology evaluator.",
		}),
	}
}

// SetQueueDepth reports one run's current status distribution, overwriting
// whatever this Metrics last observed (the coordinator's completion-poll
// loop is the single caller, so "last observed" always means "most recent
// poll").
func (m *Metrics) SetQueueDepth(pending, processing, completed, failed, retry float64) {
	m.QueueDepth.WithLabelValues("pending").Set(pending)
	m.QueueDepth.WithLabelValues("processing").Set(processing)
	m.QueueDepth.WithLabelValues("completed").Set(completed)
	m.QueueDepth.WithLabelValues("failed").Set(failed)
	m.QueueDepth.WithLabelValues("retry").Set(retry)
}
