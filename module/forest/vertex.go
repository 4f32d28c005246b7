package forest

import (
	"github.com/finalitylabs/blocksync/model/chain"
)

type importance int

const (
	// auxiliary vertices are tracked for linking only, nobody asked for them.
	auxiliary importance = iota
	required
	explicitlyRequired
)

type vertex struct {
	id            chain.BlockID
	header        *chain.Header
	imported      bool
	justification *chain.Justification
	importance    importance
	knowMost      map[chain.PeerID]struct{}
	children      map[chain.BlockID]struct{}
}

func newVertex(id chain.BlockID) *vertex {
	return &vertex{
		id:       id,
		knowMost: make(map[chain.PeerID]struct{}),
		children: make(map[chain.BlockID]struct{}),
	}
}

func (v *vertex) parent() (chain.BlockID, bool) {
	if v.header == nil {
		return chain.BlockID{}, false
	}
	return v.header.ParentID()
}

// interested reports whether the block is still wanted by us.
func (v *vertex) interested() bool {
	return !v.imported && v.importance != auxiliary
}
