package metrics

const (
	namespaceNetwork = "network"
	namespaceSync    = "sync"
	namespaceStorage = "storage"
)

const (
	subsystemEngine = "engine"
	subsystemForest = "forest"
	subsystemCache  = "cache"
)
