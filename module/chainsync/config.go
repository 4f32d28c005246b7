package chainsync

const (
	// JustificationStep is the maximal distance between justifications sent in
	// a single response, unless the session end has to be used.
	JustificationStep uint32 = 10

	// ChunkSessionLimit is the number of sessions past the session of the
	// peer's top justification a single response may reach into.
	ChunkSessionLimit uint32 = 2

	// DefaultForestLimit is the default maximal number of pending blocks.
	DefaultForestLimit uint = 4096
)

type Config struct {
	ForestLimit uint // the maximal number of pending blocks tracked above the finalized block
}

func DefaultConfig() Config {
	return Config{
		ForestLimit: DefaultForestLimit,
	}
}
