package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/finalitylabs/blocksync/module"
)

const (
	eventSent            = "sent"
	eventReceived        = "received"
	eventHandled         = "handled"
	eventInboundDropped  = "inbound_dropped"
	eventOutboundDropped = "outbound_dropped"
)

// EngineCollector counts the messages passing through engines and the
// network layer. A single counter vector is used, the event label tells
// sent, received, handled and dropped messages apart.
type EngineCollector struct {
	messages *prometheus.CounterVec
}

var _ module.EngineMetrics = (*EngineCollector)(nil)

func NewEngineCollector(registerer prometheus.Registerer) *EngineCollector {
	return &EngineCollector{
		messages: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name:      "messages_total",
			Namespace: namespaceNetwork,
			Subsystem: subsystemEngine,
			Help:      "the number of messages per engine, message kind and event",
		}, []string{EngineLabel, LabelMessage, LabelEvent}),
	}
}

func (ec *EngineCollector) count(engine, message, event string) {
	ec.messages.With(prometheus.Labels{EngineLabel: engine, LabelMessage: message, LabelEvent: event}).Inc()
}

func (ec *EngineCollector) MessageSent(engine string, message string) {
	ec.count(engine, message, eventSent)
}

func (ec *EngineCollector) MessageReceived(engine string, message string) {
	ec.count(engine, message, eventReceived)
}

func (ec *EngineCollector) MessageHandled(engine string, message string) {
	ec.count(engine, message, eventHandled)
}

func (ec *EngineCollector) InboundMessageDropped(engine string, message string) {
	ec.count(engine, message, eventInboundDropped)
}

func (ec *EngineCollector) OutboundMessageDropped(engine string, message string) {
	ec.count(engine, message, eventOutboundDropped)
}
