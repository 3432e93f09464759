package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts submissions by outcome.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secagg_submissions_total",
			Help: "Total number of client submissions by outcome",
		},
		[]string{"outcome"},
	)

	CryptoFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secagg_crypto_failures_total",
			Help: "Total number of submissions rejected because a share failed to decrypt",
		},
	)

	BufferedContributions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "secagg_buffered_contributions",
			Help: "Number of contributions waiting for the aggregation goal",
		},
	)

	// ModelVersion is the current global model version.
	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "secagg_model_version",
			Help: "Current global model version",
		},
	)

	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secagg_aggregations_total",
			Help: "Total number of aggregation cycles by result",
		},
		[]string{"result"},
	)

	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "secagg_aggregation_duration_seconds",
			Help:    "Aggregation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		},
	)

	RecoverDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "secagg_recover_duration_seconds",
			Help:    "Time spent decrypting and reconstructing one submission",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)
)
