package forest

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
)

// Forest keeps track of the blocks above the top finalized block (the root)
// that we know something about: their headers, whether they were imported,
// their justifications and the peers that can provide them.
//
// Vertices are stored in a flat map keyed by block id; parent links are
// derived from known headers. Once the number of vertices reaches the limit,
// new ids are ignored. Vertices that end up on a fork of the finalized chain
// are pruned and remembered until the root moves past them.
//
// Forest is not concurrency safe.
type Forest struct {
	root      chain.BlockID
	limit     int
	vertices  map[chain.BlockID]*vertex
	justified map[uint32][]chain.BlockID
	compost   map[chain.BlockID]struct{}
}

func New(root chain.BlockID, limit uint) *Forest {
	return &Forest{
		root:      root,
		limit:     int(limit),
		vertices:  make(map[chain.BlockID]*vertex),
		justified: make(map[uint32][]chain.BlockID),
		compost:   make(map[chain.BlockID]struct{}),
	}
}

// Root returns the id of the top finalized block.
func (f *Forest) Root() chain.BlockID {
	return f.root
}

// Len returns the number of tracked vertices.
func (f *Forest) Len() int {
	return len(f.vertices)
}

// UpdateBody records that the block was imported.
func (f *Forest) UpdateBody(header chain.Header) error {
	id := header.ID()
	if id.Number <= f.root.Number {
		return nil
	}
	if err := f.checkParent(header); err != nil {
		return err
	}
	v, ok := f.vertices[id]
	if !ok {
		// imported blocks are tracked regardless of the limit, they are
		// needed for finalization
		v = newVertex(id)
		f.vertices[id] = v
	}
	f.setHeader(v, header)
	v.imported = true
	v.importance = auxiliary
	return nil
}

// UpdateJustification records a justification. It returns true iff the
// justification is new for a block above the root.
func (f *Forest) UpdateJustification(justification chain.Justification, peer *chain.PeerID) (bool, error) {
	id := justification.ID()
	if id.Number <= f.root.Number {
		return false, nil
	}
	if err := f.checkParent(justification.Header); err != nil {
		return false, err
	}
	v, ok := f.getOrInsert(id)
	if !ok {
		return false, nil
	}
	header := justification.Header
	f.setHeader(v, header)
	f.addPeer(v, peer)
	if v.justification != nil {
		return false, nil
	}
	v.justification = &justification
	f.justified[id.Number] = append(f.justified[id.Number], id)
	if !v.imported && v.importance == auxiliary {
		v.importance = required
	}
	f.requireParent(v)
	return true, nil
}

// UpdateRequiredHeader records the header of a block we want to import.
// The parent of the block becomes required as well.
func (f *Forest) UpdateRequiredHeader(header chain.Header, peer *chain.PeerID) error {
	id := header.ID()
	if id.Number <= f.root.Number {
		return nil
	}
	if err := f.checkParent(header); err != nil {
		return err
	}
	v, ok := f.getOrInsert(id)
	if !ok {
		return nil
	}
	f.setHeader(v, header)
	f.addPeer(v, peer)
	if !v.imported && v.importance == auxiliary {
		v.importance = required
	}
	f.requireParent(v)
	return nil
}

// UpdateBlockIdentifier registers the id, recording the peer as a source of
// it and its ancestors. An explicit registration makes the block required; the
// return value is true iff the block was not of interest before the call and
// is now.
func (f *Forest) UpdateBlockIdentifier(id chain.BlockID, peer *chain.PeerID, explicit bool) bool {
	if id.Number <= f.root.Number {
		return false
	}
	v, ok := f.getOrInsert(id)
	if !ok {
		return false
	}
	f.addPeer(v, peer)
	if !explicit || v.imported {
		return false
	}
	wasInterested := v.interested()
	v.importance = explicitlyRequired
	return !wasInterested
}

// Importable reports whether the block can be handed to the importer now: its
// header is known, it was not imported yet, and its parent is either the root,
// imported, or known well enough to be imported before it.
func (f *Forest) Importable(id chain.BlockID) bool {
	if id.Number <= f.root.Number {
		return false
	}
	v, ok := f.vertices[id]
	if !ok || v.header == nil || v.imported {
		return false
	}
	parent, ok := v.parent()
	if !ok {
		return false
	}
	if parent == f.root {
		return true
	}
	if parent.Number <= f.root.Number {
		return false
	}
	pv, ok := f.vertices[parent]
	return ok && (pv.imported || pv.header != nil)
}

// Skippable reports whether we have no use for the block because it is
// already finalized or imported.
func (f *Forest) Skippable(id chain.BlockID) bool {
	if id.Number <= f.root.Number {
		return true
	}
	v, ok := f.vertices[id]
	return ok && v.imported
}

// Finalizable returns the justification of the block at the given number if
// that block and all of its ancestors above the root are imported. The forest
// is left unchanged; Finalize moves the root once the block was finalized.
func (f *Forest) Finalizable(number uint32) *chain.Justification {
	if number <= f.root.Number {
		return nil
	}
	for _, id := range f.justified[number] {
		v, ok := f.vertices[id]
		if !ok || !f.importedDownToRoot(v) {
			continue
		}
		return v.justification
	}
	return nil
}

// Finalize makes the block the new root and prunes everything not descending
// from it. The block must be tracked above the current root.
func (f *Forest) Finalize(id chain.BlockID) error {
	if id.Number <= f.root.Number {
		return fmt.Errorf("cannot finalize %v at or below root %v: %w", id, f.root, ErrUnknownBlock)
	}
	if _, ok := f.vertices[id]; !ok {
		return fmt.Errorf("cannot finalize %v: %w", id, ErrUnknownBlock)
	}
	f.prune(id)
	return nil
}

// LowestJustified returns the lowest number above the given one at which a
// block with a known justification is tracked.
func (f *Forest) LowestJustified(above uint32) (uint32, bool) {
	var lowest uint32
	found := false
	for number, ids := range f.justified {
		if number <= above || len(ids) == 0 {
			continue
		}
		if !found || number < lowest {
			lowest = number
			found = true
		}
	}
	return lowest, found
}

func (f *Forest) importedDownToRoot(v *vertex) bool {
	for cur := v; cur.imported; {
		parent, ok := cur.parent()
		if !ok {
			return false
		}
		if parent == f.root {
			return true
		}
		pv, ok := f.vertices[parent]
		if !ok {
			return false
		}
		cur = pv
	}
	return false
}

// BlockState returns our interest in the block.
func (f *Forest) BlockState(id chain.BlockID) Interest {
	v, ok := f.vertices[id]
	if !ok || id.Number <= f.root.Number || !v.interested() {
		return Interest{Kind: Uninterested}
	}
	kind := TopRequired
	for child := range v.children {
		if cv, ok := f.vertices[child]; ok && cv.interested() {
			kind = Required
			break
		}
	}
	knowMost := maps.Keys(v.knowMost)
	slices.Sort(knowMost)
	return Interest{
		Kind:            kind,
		KnowMost:        knowMost,
		BranchKnowledge: f.branchKnowledge(v),
	}
}

func (f *Forest) branchKnowledge(v *vertex) messages.BranchKnowledge {
	cur := v
	for {
		parent, ok := cur.parent()
		if !ok {
			return messages.NewLowestID(cur.id)
		}
		if parent == f.root {
			return messages.NewTopImported(parent)
		}
		pv, ok := f.vertices[parent]
		if !ok {
			return messages.NewLowestID(cur.id)
		}
		if pv.imported {
			return messages.NewTopImported(parent)
		}
		cur = pv
	}
}

// checkParent rejects headers whose parent is at or below the root but is not
// part of the finalized chain. Deeper forks are only detected when the root
// moves past them.
func (f *Forest) checkParent(header chain.Header) error {
	id := header.ID()
	if _, composted := f.compost[id]; composted {
		return fmt.Errorf("block %v was pruned: %w", id, ErrHeaderOnFork)
	}
	parent, ok := header.ParentID()
	if !ok {
		return fmt.Errorf("genesis header above the root: %w", ErrHeaderOnFork)
	}
	if parent.Number == f.root.Number && parent != f.root {
		return fmt.Errorf("parent %v of block %v is not the root %v: %w", parent, id, f.root, ErrHeaderOnFork)
	}
	if _, composted := f.compost[parent]; composted {
		return fmt.Errorf("parent %v of block %v was pruned: %w", parent, id, ErrHeaderOnFork)
	}
	return nil
}

func (f *Forest) getOrInsert(id chain.BlockID) (*vertex, bool) {
	if v, ok := f.vertices[id]; ok {
		return v, true
	}
	if _, composted := f.compost[id]; composted {
		return nil, false
	}
	if len(f.vertices) >= f.limit {
		return nil, false
	}
	v := newVertex(id)
	f.vertices[id] = v
	return v, true
}

// setHeader stores the header of the vertex and links it to its parent.
func (f *Forest) setHeader(v *vertex, header chain.Header) {
	if v.header != nil {
		return
	}
	v.header = &header
	parent, ok := header.ParentID()
	if !ok || parent.Number <= f.root.Number {
		return
	}
	pv, ok := f.getOrInsert(parent)
	if !ok {
		return
	}
	pv.children[v.id] = struct{}{}
	for peer := range v.knowMost {
		f.addPeerToBranch(pv, peer)
	}
}

func (f *Forest) requireParent(v *vertex) {
	if !v.interested() {
		return
	}
	parent, ok := v.parent()
	if !ok || parent.Number <= f.root.Number {
		return
	}
	pv, ok := f.vertices[parent]
	if !ok || pv.imported || pv.importance != auxiliary {
		return
	}
	pv.importance = required
	f.requireParent(pv)
}

func (f *Forest) addPeer(v *vertex, peer *chain.PeerID) {
	if peer == nil {
		return
	}
	f.addPeerToBranch(v, *peer)
}

// addPeerToBranch records the peer as a source of the block and of all its
// known ancestors that are not imported yet.
func (f *Forest) addPeerToBranch(v *vertex, peer chain.PeerID) {
	for cur := v; cur != nil && !cur.imported; {
		cur.knowMost[peer] = struct{}{}
		parent, ok := cur.parent()
		if !ok || parent.Number <= f.root.Number {
			return
		}
		cur = f.vertices[parent]
	}
}

// prune moves the root to the given block and drops every vertex that is not
// known or suspected to descend from it.
func (f *Forest) prune(newRoot chain.BlockID) {
	f.root = newRoot
	for id := range f.vertices {
		if id.Number <= newRoot.Number {
			delete(f.vertices, id)
		}
	}
	for id, v := range f.vertices {
		if !f.descendsFromRoot(v) {
			delete(f.vertices, id)
			f.compost[id] = struct{}{}
		}
	}
	for id := range f.compost {
		if id.Number <= newRoot.Number {
			delete(f.compost, id)
		}
	}
	for number, ids := range f.justified {
		if number <= newRoot.Number {
			delete(f.justified, number)
			continue
		}
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := f.vertices[id]; ok {
				kept = append(kept, id)
			}
		}
		f.justified[number] = kept
	}
	for _, v := range f.vertices {
		for child := range v.children {
			if _, ok := f.vertices[child]; !ok {
				delete(v.children, child)
			}
		}
	}
}

// descendsFromRoot walks down known headers. A vertex is kept if the walk
// reaches the root or stops at a block whose ancestry is unknown.
func (f *Forest) descendsFromRoot(v *vertex) bool {
	for cur := v; ; {
		parent, ok := cur.parent()
		if !ok {
			return true
		}
		if parent.Number <= f.root.Number {
			return parent == f.root
		}
		pv, ok := f.vertices[parent]
		if !ok {
			_, pruned := f.compost[parent]
			return !pruned
		}
		cur = pv
	}
}
