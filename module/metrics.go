package module

// EngineMetrics tracks the messages handled by an engine, labelled by message kind.
type EngineMetrics interface {
	MessageSent(engine string, message string)
	MessageReceived(engine string, message string)
	MessageHandled(engine string, message string)
	InboundMessageDropped(engine string, message string)
	OutboundMessageDropped(engine string, message string)
}

// SyncMetrics tracks the progress of chain synchronization.
type SyncMetrics interface {
	// FinalizedHeight records the number of the top finalized block.
	FinalizedHeight(number uint32)

	// ForestSize records the number of pending blocks tracked by the forest.
	ForestSize(vertices int)

	// TaskScheduled is called whenever a block request is (re-)scheduled, with
	// the tier it was scheduled at ("request", "delayed_request", "backup_request").
	TaskScheduled(tier string)

	// JustificationsHandled counts justifications that passed verification and
	// raised our knowledge.
	JustificationsHandled(count int)

	// ResponseRejected counts request responses rejected because they contained
	// blocks that could not be imported.
	ResponseRejected()

	// RequestRateLimited counts peer requests dropped by the per-peer limiter.
	RequestRateLimited()

	// InboundQueueLength records the number of network messages waiting to be processed.
	InboundQueueLength(length int)
}

// CacheMetrics tracks the read caches in front of the database.
type CacheMetrics interface {
	CacheEntries(resource string, entries uint)
	CacheHit(resource string)
	CacheMiss(resource string)
}
