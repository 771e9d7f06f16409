package metrics

import (
	"time"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mempoolPollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "poll_total",
		Help:      "Count of mempool polls.",
	}, []string{"network", "status"})

	mempoolPollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "poll_duration_seconds",
		Help:      "Duration of a mempool poll including tx fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	mempoolChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "changes_total",
		Help:      "Count of mempool transactions added or removed.",
	}, []string{"network", "change"})

	mempoolTrackedTxs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "tracked_transactions",
		Help:      "Number of mempool transactions tracked by the index.",
	}, []string{"network"})
)

// Mempool tracks the mempool poller.
type Mempool struct {
	network string
}

func NewMempool(network model.Network) *Mempool {
	return &Mempool{network: networkLabel(network)}
}

// ObservePoll records one poll and the resulting diff.
func (m Mempool) ObservePoll(err error, added, removed int, started time.Time) {
	status := statusOf(err)
	mempoolPollTotal.WithLabelValues(m.network, status).Inc()
	mempoolPollDuration.WithLabelValues(m.network, status).Observe(time.Since(started).Seconds())
	mempoolChangesTotal.WithLabelValues(m.network, "added").Add(float64(added))
	mempoolChangesTotal.WithLabelValues(m.network, "removed").Add(float64(removed))
}

func (m Mempool) SetTracked(n int) {
	mempoolTrackedTxs.WithLabelValues(m.network).Set(float64(n))
}
