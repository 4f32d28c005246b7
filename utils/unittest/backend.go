package unittest

import (
	"fmt"
	"sync"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
)

// Backend is an in-memory block database for tests. It implements
// module.ChainStatus, module.Finalizer and module.BlockImporter. Imports
// happen synchronously; blocks whose parent is unknown are dropped.
type Backend struct {
	mu             sync.RWMutex
	blocks         map[chain.BlockID]chain.Block
	children       map[chain.BlockID][]chain.BlockID
	finalized      []chain.BlockID
	justifications map[chain.BlockID]chain.Justification
	onImported     func(chain.Header)
}

var _ module.ChainStatus = (*Backend)(nil)
var _ module.Finalizer = (*Backend)(nil)
var _ module.BlockImporter = (*Backend)(nil)

// NewBackend returns a backend containing only the finalized genesis block.
func NewBackend(genesis chain.Header) *Backend {
	b := &Backend{
		blocks:         make(map[chain.BlockID]chain.Block),
		children:       make(map[chain.BlockID][]chain.BlockID),
		justifications: make(map[chain.BlockID]chain.Justification),
	}
	id := genesis.ID()
	b.blocks[id] = chain.Block{Header: genesis}
	b.finalized = []chain.BlockID{id}
	b.justifications[id] = JustificationFixture(genesis)
	return b
}

// OnImported registers a callback invoked after each successful import.
func (b *Backend) OnImported(callback func(chain.Header)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onImported = callback
}

func (b *Backend) ImportBlock(block chain.Block) {
	b.mu.Lock()
	id := block.ID()
	parent, ok := block.Header.ParentID()
	if !ok {
		b.mu.Unlock()
		return
	}
	if _, known := b.blocks[parent]; !known {
		b.mu.Unlock()
		return
	}
	if _, known := b.blocks[id]; known {
		b.mu.Unlock()
		return
	}
	b.blocks[id] = block
	b.children[parent] = append(b.children[parent], id)
	callback := b.onImported
	b.mu.Unlock()

	if callback != nil {
		callback(block.Header)
	}
}

// ImportBranch imports blocks built from the given headers in order.
func (b *Backend) ImportBranch(headers []chain.Header) {
	for _, header := range headers {
		b.ImportBlock(BlockFixture(header))
	}
}

func (b *Backend) Finalize(justification chain.Justification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := justification.ID()
	top := b.finalized[len(b.finalized)-1]
	if id.Number <= top.Number {
		if b.finalized[id.Number] != id {
			return fmt.Errorf("block %v conflicts with finalized block %v", id, b.finalized[id.Number])
		}
		if _, ok := b.justifications[id]; !ok {
			b.justifications[id] = justification
		}
		return nil
	}

	path := make([]chain.BlockID, 0, id.Number-top.Number)
	for cur := id; cur != top; {
		block, ok := b.blocks[cur]
		if !ok {
			return fmt.Errorf("block %v is not imported", cur)
		}
		if cur.Number <= top.Number {
			return fmt.Errorf("block %v does not descend from the top finalized block %v", id, top)
		}
		path = append(path, cur)
		cur, _ = block.Header.ParentID()
	}
	for i := len(path) - 1; i >= 0; i-- {
		b.finalized = append(b.finalized, path[i])
	}
	b.justifications[id] = justification
	return nil
}

func (b *Backend) TopFinalized() (chain.Justification, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := len(b.finalized) - 1; i >= 0; i-- {
		if justification, ok := b.justifications[b.finalized[i]]; ok {
			return justification, nil
		}
	}
	return chain.Justification{}, fmt.Errorf("no justified block")
}

func (b *Backend) FinalizedAt(number uint32) (module.FinalizationStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if int(number) >= len(b.finalized) {
		return module.FinalizationStatus{Kind: module.NotFinalized}, nil
	}
	id := b.finalized[number]
	if justification, ok := b.justifications[id]; ok {
		return module.FinalizationStatus{Kind: module.FinalizedWithJustification, Justification: &justification}, nil
	}
	header := b.blocks[id].Header
	return module.FinalizationStatus{Kind: module.FinalizedByDescendant, Header: &header}, nil
}

func (b *Backend) Header(id chain.BlockID) (*chain.Header, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	block, ok := b.blocks[id]
	if !ok {
		return nil, nil
	}
	return &block.Header, nil
}

func (b *Backend) Block(id chain.BlockID) (*chain.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	block, ok := b.blocks[id]
	if !ok {
		return nil, nil
	}
	return &block, nil
}

func (b *Backend) Children(id chain.BlockID) ([]chain.Header, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	children := make([]chain.Header, 0, len(b.children[id]))
	for _, child := range b.children[id] {
		children = append(children, b.blocks[child].Header)
	}
	return children, nil
}

// Verifier accepts every justification and header except the ones it was
// told to reject.
type Verifier struct {
	mu       sync.Mutex
	rejected map[chain.BlockID]struct{}
}

var _ module.Verifier = (*Verifier)(nil)

func NewVerifier() *Verifier {
	return &Verifier{rejected: make(map[chain.BlockID]struct{})}
}

func (v *Verifier) Reject(id chain.BlockID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejected[id] = struct{}{}
}

func (v *Verifier) Verify(justification chain.UnverifiedJustification) (chain.Justification, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.rejected[justification.ID()]; ok {
		return chain.Justification{}, fmt.Errorf("invalid justification for %v", justification.ID())
	}
	return chain.Justification{Header: justification.Header, Proof: justification.Proof}, nil
}

func (v *Verifier) VerifyHeader(header chain.Header, forFinality bool) (chain.Header, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.rejected[header.ID()]; ok {
		return chain.Header{}, fmt.Errorf("invalid header %v", header.ID())
	}
	return header, nil
}
