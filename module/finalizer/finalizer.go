package finalizer

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/storage"
	"github.com/finalitylabs/blocksync/storage/badger/operation"
)

// ErrConflictingFinalization is returned for a justification of a block that
// conflicts with the finalized chain.
var ErrConflictingFinalization = errors.New("block conflicts with the finalized chain")

// Finalizer persists finalization into the badger database: the justified
// block and every block between it and the previous top finalized block are
// indexed as finalized, and the justification is stored.
type Finalizer struct {
	log         zerolog.Logger
	db          *badger.DB
	onFinalized func(chain.Header)
}

var _ module.Finalizer = (*Finalizer)(nil)

// NewFinalizer creates a finalizer. onFinalized, if set, is called with the
// justified header every time the top finalized block moves up.
func NewFinalizer(log zerolog.Logger, db *badger.DB, onFinalized func(chain.Header)) *Finalizer {
	return &Finalizer{
		log:         log.With().Str("component", "finalizer").Logger(),
		db:          db,
		onFinalized: onFinalized,
	}
}

// Finalize finalizes the justified block and its ancestors. A justification
// for an already finalized block is stored if we had none, and is a no-op
// otherwise.
func (f *Finalizer) Finalize(justification chain.Justification) error {
	id := justification.ID()
	advanced := false

	err := f.db.Update(func(tx *badger.Txn) error {

		var top chain.BlockID
		err := operation.RetrieveTopFinalized(&top)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve top finalized block: %w", err)
		}

		if id.Number <= top.Number {
			var finalized chain.Hash
			err = operation.LookupFinalizedNumber(id.Number, &finalized)(tx)
			if err != nil {
				return fmt.Errorf("could not look up finalized block at %d: %w", id.Number, err)
			}
			if finalized != id.Hash {
				return fmt.Errorf("could not finalize %v: %w", id, ErrConflictingFinalization)
			}
			var exists bool
			err = operation.JustificationExists(id.Hash, &exists)(tx)
			if err != nil {
				return fmt.Errorf("could not check justification: %w", err)
			}
			if exists {
				return nil
			}
			return operation.InsertJustification(id.Hash, justification.Proof)(tx)
		}

		// collect the blocks between the new and the previous top, highest first
		path := make([]chain.BlockID, 0, id.Number-top.Number)
		current := id
		for current.Number > top.Number {
			var header chain.Header
			err = operation.RetrieveHeader(current.Hash, &header)(tx)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("could not finalize %v, block %v is not imported: %w", id, current, err)
			}
			if err != nil {
				return fmt.Errorf("could not retrieve header %v: %w", current, err)
			}
			path = append(path, current)
			current, _ = header.ParentID()
		}
		if current != top {
			return fmt.Errorf("could not finalize %v, it does not descend from %v: %w", id, top, ErrConflictingFinalization)
		}

		for i := len(path) - 1; i >= 0; i-- {
			err = operation.IndexFinalizedNumber(path[i].Number, path[i].Hash)(tx)
			if err != nil {
				return fmt.Errorf("could not index finalized block %v: %w", path[i], err)
			}
		}
		err = operation.InsertJustification(id.Hash, justification.Proof)(tx)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("could not store justification: %w", err)
		}
		err = operation.UpdateTopFinalized(id)(tx)
		if err != nil {
			return fmt.Errorf("could not update top finalized block: %w", err)
		}
		advanced = true
		return nil
	})
	if err != nil {
		return err
	}

	if advanced {
		f.log.Debug().Stringer("block", id).Msg("block finalized")
		if f.onFinalized != nil {
			f.onFinalized(justification.Header)
		}
	}
	return nil
}
