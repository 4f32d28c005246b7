package metrics

import (
	"github.com/finalitylabs/blocksync/module"
)

type NoopCollector struct{}

var _ module.EngineMetrics = (*NoopCollector)(nil)
var _ module.SyncMetrics = (*NoopCollector)(nil)
var _ module.CacheMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) MessageSent(engine string, message string)            {}
func (nc *NoopCollector) MessageReceived(engine string, message string)        {}
func (nc *NoopCollector) MessageHandled(engine string, message string)         {}
func (nc *NoopCollector) InboundMessageDropped(engine string, message string)  {}
func (nc *NoopCollector) OutboundMessageDropped(engine string, message string) {}
func (nc *NoopCollector) FinalizedHeight(number uint32)                        {}
func (nc *NoopCollector) ForestSize(vertices int)                              {}
func (nc *NoopCollector) TaskScheduled(tier string)                            {}
func (nc *NoopCollector) JustificationsHandled(count int)                      {}
func (nc *NoopCollector) ResponseRejected()                                    {}
func (nc *NoopCollector) RequestRateLimited()                                  {}
func (nc *NoopCollector) InboundQueueLength(length int)                        {}
func (nc *NoopCollector) CacheEntries(resource string, entries uint)           {}
func (nc *NoopCollector) CacheHit(resource string)                             {}
func (nc *NoopCollector) CacheMiss(resource string)                            {}
