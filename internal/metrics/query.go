package metrics

import (
	"time"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "requests_total",
		Help:      "Count of swap index queries.",
	}, []string{"operation", "network", "status"})

	queryRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "request_duration_seconds",
		Help:      "Duration of swap index queries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})

	queryResultSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "result_size",
		Help:      "Number of records returned per query.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
	}, []string{"operation", "network"})
)

// Query tracks the read-only query layer.
type Query struct {
	network string
}

func NewQuery(network model.Network) *Query {
	return &Query{network: networkLabel(network)}
}

// Observe records one query outcome, duration and result size.
func (m Query) Observe(operation string, results int, err error, started time.Time) {
	status := statusOf(err)
	queryRequestsTotal.WithLabelValues(operation, m.network, status).Inc()
	queryRequestDuration.WithLabelValues(operation, m.network, status).Observe(time.Since(started).Seconds())
	if err == nil {
		queryResultSize.WithLabelValues(operation, m.network).Observe(float64(results))
	}
}
