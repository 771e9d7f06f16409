package metrics

import (
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notifierPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "notifier",
	Name:      "published_total",
	Help:      "Count of order events published to the event stream.",
}, []string{"kind", "network", "status"})

// Notifier tracks order event publishing.
type Notifier struct {
	network string
}

func NewNotifier(network model.Network) *Notifier {
	return &Notifier{network: networkLabel(network)}
}

func (m Notifier) Observe(kind model.OrderEventKind, err error) {
	notifierPublishedTotal.WithLabelValues(string(kind), m.network, statusOf(err)).Inc()
}
