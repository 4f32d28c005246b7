package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/storage"
	"github.com/finalitylabs/blocksync/storage/badger/operation"
)

// DefaultCacheSize is the number of headers and of block bodies kept in memory.
const DefaultCacheSize = 4096

// ErrUnknownParent is returned when inserting a block whose parent is not in the database.
var ErrUnknownParent = errors.New("parent block is unknown")

// Chain stores blocks, their finalization status and justifications in badger.
// It implements module.ChainStatus and is safe for concurrent use.
type Chain struct {
	db      *badger.DB
	headers *Cache[chain.Hash, chain.Header]
	bodies  *Cache[chain.Hash, []byte]
}

var _ module.ChainStatus = (*Chain)(nil)

func NewChain(collector module.CacheMetrics, db *badger.DB) *Chain {
	retrieveHeader := func(hash chain.Hash) (chain.Header, error) {
		var header chain.Header
		err := db.View(operation.RetrieveHeader(hash, &header))
		return header, err
	}
	retrieveBody := func(hash chain.Hash) ([]byte, error) {
		var body []byte
		err := db.View(operation.RetrieveBody(hash, &body))
		return body, err
	}

	return &Chain{
		db:      db,
		headers: newCache[chain.Hash, chain.Header](collector, metrics.ResourceHeader, DefaultCacheSize, retrieveHeader),
		bodies:  newCache[chain.Hash, []byte](collector, metrics.ResourceBlock, DefaultCacheSize, retrieveBody),
	}
}

// DB returns the underlying database, for components writing finalization.
func (c *Chain) DB() *badger.DB {
	return c.db
}

// Bootstrap initializes an empty database with the genesis block as the only
// finalized block. On a database bootstrapped with the same genesis it is a
// no-op; a different genesis is an error.
func (c *Chain) Bootstrap(genesis chain.Justification) error {
	id := genesis.ID()
	if id.Number != 0 {
		return fmt.Errorf("genesis block must have number 0, got %d", id.Number)
	}

	return c.db.Update(func(tx *badger.Txn) error {
		var existing chain.BlockID
		err := operation.RetrieveGenesis(&existing)(tx)
		if err == nil {
			if existing != id {
				return fmt.Errorf("database was bootstrapped with genesis %v, not %v: %w", existing, id, storage.ErrDataMismatch)
			}
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not check genesis: %w", err)
		}

		for _, op := range []func(*badger.Txn) error{
			operation.InsertGenesis(id),
			operation.InsertHeader(genesis.Header),
			operation.InsertBody(id.Hash, nil),
			operation.InsertJustification(id.Hash, genesis.Proof),
			operation.IndexFinalizedNumber(0, id.Hash),
			operation.UpdateTopFinalized(id),
		} {
			if err := op(tx); err != nil {
				return fmt.Errorf("could not bootstrap genesis: %w", err)
			}
		}
		return nil
	})
}

// InsertBlock stores an imported block. The parent must already be stored.
// Inserting a known block fails with storage.ErrAlreadyExists.
func (c *Chain) InsertBlock(block chain.Block) error {
	header := block.Header
	hash := header.Hash()
	parent, ok := header.ParentID()
	if !ok {
		return fmt.Errorf("cannot insert a second genesis block: %w", storage.ErrAlreadyExists)
	}

	err := c.db.Update(func(tx *badger.Txn) error {
		var parentHeader chain.Header
		err := operation.RetrieveHeader(parent.Hash, &parentHeader)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not insert %v: %w", header.ID(), ErrUnknownParent)
		}
		if err != nil {
			return fmt.Errorf("could not retrieve parent: %w", err)
		}
		if parentHeader.Number != parent.Number {
			return fmt.Errorf("parent of %v has number %d: %w", header.ID(), parentHeader.Number, storage.ErrDataMismatch)
		}

		if err := operation.InsertHeader(header)(tx); err != nil {
			return fmt.Errorf("could not insert header: %w", err)
		}
		if err := operation.InsertBody(hash, block.Body)(tx); err != nil {
			return fmt.Errorf("could not insert body: %w", err)
		}
		if err := operation.IndexChild(parent.Hash, hash)(tx); err != nil {
			return fmt.Errorf("could not index child: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.headers.Insert(hash, header)
	c.bodies.Insert(hash, block.Body)
	return nil
}

func (c *Chain) TopFinalized() (chain.Justification, error) {
	var top chain.BlockID
	err := c.db.View(operation.RetrieveTopFinalized(&top))
	if err != nil {
		return chain.Justification{}, fmt.Errorf("could not retrieve top finalized block: %w", err)
	}
	justification, err := c.justification(top.Hash)
	if err != nil {
		return chain.Justification{}, fmt.Errorf("could not retrieve justification of top finalized block %v: %w", top, err)
	}
	return *justification, nil
}

func (c *Chain) FinalizedAt(number uint32) (module.FinalizationStatus, error) {
	var hash chain.Hash
	err := c.db.View(operation.LookupFinalizedNumber(number, &hash))
	if errors.Is(err, storage.ErrNotFound) {
		return module.FinalizationStatus{Kind: module.NotFinalized}, nil
	}
	if err != nil {
		return module.FinalizationStatus{}, fmt.Errorf("could not look up finalized block at %d: %w", number, err)
	}

	justification, err := c.justification(hash)
	if err == nil {
		return module.FinalizationStatus{Kind: module.FinalizedWithJustification, Justification: justification}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return module.FinalizationStatus{}, err
	}
	header, err := c.headers.Get(hash)
	if err != nil {
		return module.FinalizationStatus{}, fmt.Errorf("could not retrieve finalized header at %d: %w", number, err)
	}
	return module.FinalizationStatus{Kind: module.FinalizedByDescendant, Header: &header}, nil
}

func (c *Chain) Header(id chain.BlockID) (*chain.Header, error) {
	header, err := c.headers.Get(id.Hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve header %v: %w", id, err)
	}
	if header.Number != id.Number {
		return nil, nil
	}
	return &header, nil
}

func (c *Chain) Block(id chain.BlockID) (*chain.Block, error) {
	header, err := c.Header(id)
	if err != nil || header == nil {
		return nil, err
	}
	body, err := c.bodies.Get(id.Hash)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve body of %v: %w", id, err)
	}
	return &chain.Block{Header: *header, Body: body}, nil
}

func (c *Chain) Children(id chain.BlockID) ([]chain.Header, error) {
	var hashes []chain.Hash
	err := c.db.View(operation.LookupChildren(id.Hash, &hashes))
	if err != nil {
		return nil, fmt.Errorf("could not look up children of %v: %w", id, err)
	}
	children := make([]chain.Header, 0, len(hashes))
	for _, hash := range hashes {
		header, err := c.headers.Get(hash)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve child %x of %v: %w", hash[:4], id, err)
		}
		children = append(children, header)
	}
	return children, nil
}

func (c *Chain) justification(hash chain.Hash) (*chain.Justification, error) {
	var proof []byte
	err := c.db.View(operation.RetrieveJustification(hash, &proof))
	if err != nil {
		return nil, err
	}
	header, err := c.headers.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve justified header: %w", err)
	}
	return &chain.Justification{Header: header, Proof: proof}, nil
}
