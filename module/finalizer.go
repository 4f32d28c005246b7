package module

import (
	"github.com/finalitylabs/blocksync/model/chain"
)

// Finalizer persists finalization of blocks.
type Finalizer interface {

	// Finalize declares the justified block and all of its ancestors as
	// finalized. The block's parent must be imported and its ancestors up to
	// the current top finalized block must be imported as well. Finalizing an
	// already finalized block is a no-op. An error indicates the block could
	// not be finalized; the database is left unchanged in that case.
	Finalize(justification chain.Justification) error
}
