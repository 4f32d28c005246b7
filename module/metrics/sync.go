package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/finalitylabs/blocksync/module"
)

// SyncCollector tracks chain synchronization progress.
type SyncCollector struct {
	finalizedHeight  prometheus.Gauge
	forestSize       prometheus.Gauge
	tasksScheduled   *prometheus.CounterVec
	justifications   prometheus.Counter
	responseRejected prometheus.Counter
	rateLimited      prometheus.Counter
	inboundQueue     prometheus.Gauge
}

var _ module.SyncMetrics = (*SyncCollector)(nil)

func NewSyncCollector(registerer prometheus.Registerer) *SyncCollector {
	factory := promauto.With(registerer)

	return &SyncCollector{
		finalizedHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "finalized_height",
			Namespace: namespaceSync,
			Help:      "the number of the highest finalized block",
		}),
		forestSize: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "vertices",
			Namespace: namespaceSync,
			Subsystem: subsystemForest,
			Help:      "the number of pending blocks tracked above the finalized block",
		}),
		tasksScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "tasks_scheduled_total",
			Namespace: namespaceSync,
			Help:      "the number of block requests scheduled, by tier",
		}, []string{LabelTier}),
		justifications: factory.NewCounter(prometheus.CounterOpts{
			Name:      "justifications_handled_total",
			Namespace: namespaceSync,
			Help:      "the number of new justifications accepted",
		}),
		responseRejected: factory.NewCounter(prometheus.CounterOpts{
			Name:      "responses_rejected_total",
			Namespace: namespaceSync,
			Help:      "the number of request responses rejected because of blocks that could not be imported",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name:      "requests_rate_limited_total",
			Namespace: namespaceSync,
			Help:      "the number of peer requests dropped by the rate limiter",
		}),
		inboundQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "inbound_queue_length",
			Namespace: namespaceSync,
			Help:      "the number of network messages waiting to be processed",
		}),
	}
}

func (sc *SyncCollector) FinalizedHeight(number uint32) {
	sc.finalizedHeight.Set(float64(number))
}

func (sc *SyncCollector) ForestSize(vertices int) {
	sc.forestSize.Set(float64(vertices))
}

func (sc *SyncCollector) TaskScheduled(tier string) {
	sc.tasksScheduled.With(prometheus.Labels{LabelTier: tier}).Inc()
}

func (sc *SyncCollector) JustificationsHandled(count int) {
	sc.justifications.Add(float64(count))
}

func (sc *SyncCollector) ResponseRejected() {
	sc.responseRejected.Inc()
}

func (sc *SyncCollector) RequestRateLimited() {
	sc.rateLimited.Inc()
}

func (sc *SyncCollector) InboundQueueLength(length int) {
	sc.inboundQueue.Set(float64(length))
}
