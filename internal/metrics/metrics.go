package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fallback reasons used as label values.
const (
	ReasonOracleError  = "oracle_error"
	ReasonDecodeFailed = "decode_failed"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	IngestedMessages  prometheus.Counter
	SkippedRows       prometheus.Counter
	ClassifyCount     prometheus.Counter
	ClassifyFallbacks *prometheus.CounterVec
	ClassifyDuration  prometheus.Histogram
	TriageRuns        prometheus.Counter
	PendingMessages   prometheus.Gauge
	TriagedByUrgency  *prometheus.CounterVec
}

// NewMetrics creates the triage metrics and registers them with reg.
// A nil reg registers nothing, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox_triage_ingested_messages_total",
			Help: "Total number of messages written to the store by ingest or import",
		}),
		SkippedRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox_triage_skipped_rows_total",
			Help: "Total number of malformed input rows skipped by the loader",
		}),
		ClassifyCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox_triage_classify_total",
			Help: "Total number of classification attempts",
		}),
		ClassifyFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_triage_classify_fallbacks_total",
			Help: "Total number of classifications that fell back to the safe default",
		}, []string{"reason"}),
		ClassifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inbox_triage_classify_duration_seconds",
			Help:    "Time spent waiting on the classification oracle",
			Buckets: prometheus.DefBuckets,
		}),
		TriageRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox_triage_runs_total",
			Help: "Total number of completed triage runs",
		}),
		PendingMessages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "inbox_triage_pending_messages",
			Help: "Number of stored messages without a triage result",
		}),
		TriagedByUrgency: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_triage_triaged_total",
			Help: "Total number of stored triage results by urgency name",
		}, []string{"urgency"}),
	}
}
