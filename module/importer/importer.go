package importer

import (
	"errors"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/component"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/storage"
)

// BlockStore persists imported blocks.
type BlockStore interface {
	InsertBlock(block chain.Block) error
}

// Importer imports blocks in the background, one at a time and in the order
// they were handed in, so a parent submitted before its child is stored first.
type Importer struct {
	*component.ComponentManager
	log        zerolog.Logger
	store      BlockStore
	verifier   module.Verifier
	onImported func(chain.Header)

	mu      sync.RWMutex
	stopped bool
	pool    *workerpool.WorkerPool
}

var _ module.BlockImporter = (*Importer)(nil)

// New creates an importer. onImported, if set, is called from the import
// worker after each block was stored.
func New(log zerolog.Logger, store BlockStore, verifier module.Verifier, onImported func(chain.Header)) *Importer {
	imp := &Importer{
		log:        log.With().Str("component", "importer").Logger(),
		store:      store,
		verifier:   verifier,
		pool:       workerpool.New(1),
		onImported: onImported,
	}

	imp.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			ready()
			<-ctx.Done()
			imp.stop()
		}).
		Build()

	return imp
}

// ImportBlock queues the block for import. It does not block. Blocks handed
// in after shutdown are dropped.
func (imp *Importer) ImportBlock(block chain.Block) {
	imp.mu.RLock()
	defer imp.mu.RUnlock()
	if imp.stopped {
		return
	}
	imp.pool.Submit(func() {
		imp.importBlock(block)
	})
}

// stop waits for the running import; queued blocks are dropped, they will be
// requested again.
func (imp *Importer) stop() {
	imp.mu.Lock()
	imp.stopped = true
	imp.mu.Unlock()
	imp.pool.Stop()
}

// Pending returns the number of blocks waiting for import.
func (imp *Importer) Pending() int {
	return imp.pool.WaitingQueueSize()
}

func (imp *Importer) importBlock(block chain.Block) {
	id := block.ID()
	lg := imp.log.With().Stringer("block", id).Logger()

	header, err := imp.verifier.VerifyHeader(block.Header, false)
	if err != nil {
		lg.Warn().Err(err).Msg("rejecting block with invalid header")
		return
	}
	block.Header = header

	err = imp.store.InsertBlock(block)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return
	}
	if err != nil {
		lg.Warn().Err(err).Msg("could not import block")
		return
	}

	lg.Debug().Msg("block imported")
	if imp.onImported != nil {
		imp.onImported(header)
	}
}
