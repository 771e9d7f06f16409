package metrics

import (
	"time"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingesterEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "events_total",
		Help:      "Count of chain events applied to the index.",
	}, []string{"event", "network", "status"})

	ingesterEventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "event_duration_seconds",
		Help:      "Duration of applying a chain event.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event", "network", "status"})

	ingesterOrderChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "order_changes_total",
		Help:      "Count of committed order changes by kind.",
	}, []string{"kind", "network"})

	ingesterTipHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "tip_height",
		Help:      "Height of the last block applied to the index.",
	}, []string{"network"})

	ingesterSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "sync_total",
		Help:      "Count of chain follower iterations.",
	}, []string{"network", "status"})

	ingesterSyncBlocks = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "sync_blocks",
		Help:      "Number of blocks connected per follower iteration.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"network"})

	ingesterReorgDepth = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "reorg_depth",
		Help:      "Number of blocks disconnected per reorg.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	}, []string{"network"})

	ingesterRebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "rebuilds_total",
		Help:      "Count of index wipes followed by a rebuild.",
	}, []string{"network"})

	ingesterPrunedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingester",
		Name:      "pruned_history_total",
		Help:      "Count of history entries pruned from the index.",
	}, []string{"network", "status"})
)

// Ingester tracks the chain event ingester and the loops driving it.
type Ingester struct {
	network string
}

// NewIngester constructs an Ingester with defaults.
func NewIngester(network model.Network) *Ingester {
	return &Ingester{network: networkLabel(network)}
}

// ObserveEvent records one applied chain event.
func (m Ingester) ObserveEvent(event string, err error, started time.Time) {
	status := statusOf(err)
	ingesterEventsTotal.WithLabelValues(event, m.network, status).Inc()
	ingesterEventDuration.WithLabelValues(event, m.network, status).Observe(time.Since(started).Seconds())
}

func (m Ingester) AddOrderChanges(kind model.OrderEventKind, n int) {
	ingesterOrderChangesTotal.WithLabelValues(string(kind), m.network).Add(float64(n))
}

func (m Ingester) SetTip(height int32) {
	ingesterTipHeight.WithLabelValues(m.network).Set(float64(height))
}

// ObserveSync records one follower iteration and how many blocks it connected.
func (m Ingester) ObserveSync(err error, blocks int, _ time.Time) {
	ingesterSyncTotal.WithLabelValues(m.network, statusOf(err)).Inc()
	if blocks > 0 {
		ingesterSyncBlocks.WithLabelValues(m.network).Observe(float64(blocks))
	}
}

func (m Ingester) ObserveReorg(depth int) {
	ingesterReorgDepth.WithLabelValues(m.network).Observe(float64(depth))
}

func (m Ingester) IncRebuild() {
	ingesterRebuildsTotal.WithLabelValues(m.network).Inc()
}

// ObservePrune records a pruning pass.
func (m Ingester) ObservePrune(err error, pruned int, _ time.Time) {
	ingesterPrunedTotal.WithLabelValues(m.network, statusOf(err)).Add(float64(pruned))
}
