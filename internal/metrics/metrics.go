package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Cycles             prometheus.Counter
	CyclesSkipped      prometheus.Counter
	ItemsProcessed     prometheus.Counter
	ItemsFailed        prometheus.Counter
	ItemsDead          prometheus.Counter
	LeaseContention    prometheus.Counter
	ClassificationTime prometheus.Histogram
	Ingested           *prometheus.CounterVec
	SourceSyncFailures *prometheus.CounterVec
	StagedItems        *prometheus.GaugeVec
	AlertsSent         prometheus.Counter
	AlertFailures      prometheus.Counter
}

// NewMetrics creates new Prometheus metrics registered on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics on reg
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentimentiq_cycles_total",
			Help: "Total number of poll cycles started",
		}),
		CyclesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentimentiq_cycles_skipped_total",
			Help: "Total number of ticks skipped because a cycle was still running",
		}),
		ItemsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentimentiq_items_processed_total",
			Help: "Total number of staged items classified successfully",
		}),
		ItemsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentimentiq_items_failed_total",
			Help: "Total number of failed processing attempts scheduled for retry",
		}),
		ItemsDead: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentimentiq_items_dead_total",
			Help: "Total number of staged items moved to the dead state",
		}),
		LeaseContention: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentimentiq_lease_contention_total",
			Help: "Total number of lease attempts lost to another worker",
		}),
		ClassificationTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentimentiq_classification_duration_seconds",
			Help:    "Time spent in the classifier",
			Buckets: prometheus.DefBuckets,
		}),
		Ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentiq_ingested_total",
			Help: "Total number of items handed to the staging store",
		}, []string{"source"}),
		SourceSyncFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentiq_source_sync_failures_total",
			Help: "Total number of failed source syncs",
		}, []string{"source"}),
		StagedItems: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentimentiq_staged_items",
			Help: "Number of staged items per status",
		}, []string{"status"}),
		AlertsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentimentiq_alerts_sent_total",
			Help: "Total number of alert e-mails sent",
		}),
		AlertFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentimentiq_alert_failures_total",
			Help: "Total number of alert e-mails that could not be sent",
		}),
	}
}
