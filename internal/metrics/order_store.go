package metrics

import (
	"time"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderStoreOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "order_store",
		Name:      "operations_total",
		Help:      "Count of order store operations.",
	}, []string{"operation", "network", "status"})
	orderStoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "order_store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of order store operations.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 5},
	}, []string{"operation", "network", "status"})
)

// OrderStore tracks LevelDB commits, scans and wipes.
type OrderStore struct {
	network string
}

func NewOrderStore(network model.Network) *OrderStore {
	return &OrderStore{network: networkLabel(network)}
}

func (m OrderStore) Observe(operation string, err error, started time.Time) {
	status := statusOf(err)
	orderStoreOperationsTotal.WithLabelValues(operation, m.network, status).Inc()
	orderStoreOperationDuration.WithLabelValues(operation, m.network, status).Observe(time.Since(started).Seconds())
}
