package trace

type SpanName string

// Spans opened by the synchronization engine.
const (
	SyncHandleMessage     SpanName = "sync.handleMessage"
	SyncHandleChainEvent  SpanName = "sync.handleChainEvent"
	SyncHandleSubmissions SpanName = "sync.handleSubmissions"
)
