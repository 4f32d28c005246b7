package module

import (
	"github.com/finalitylabs/blocksync/model/chain"
)

// FinalizationKind describes how, if at all, the block at a given number was
// finalized.
type FinalizationKind int

const (
	NotFinalized FinalizationKind = iota
	FinalizedWithJustification
	FinalizedByDescendant
)

func (k FinalizationKind) String() string {
	switch k {
	case NotFinalized:
		return "not_finalized"
	case FinalizedWithJustification:
		return "finalized_with_justification"
	case FinalizedByDescendant:
		return "finalized_by_descendant"
	default:
		return "unknown"
	}
}

// FinalizationStatus is the answer of ChainStatus.FinalizedAt. Justification
// is set for FinalizedWithJustification, Header for FinalizedByDescendant.
type FinalizationStatus struct {
	Kind          FinalizationKind
	Justification *chain.Justification
	Header        *chain.Header
}

// ID returns the id of the finalized block, if there is one.
func (s FinalizationStatus) ID() (chain.BlockID, bool) {
	switch s.Kind {
	case FinalizedWithJustification:
		return s.Justification.ID(), true
	case FinalizedByDescendant:
		return s.Header.ID(), true
	default:
		return chain.BlockID{}, false
	}
}

// ChainStatus is a read-only view of the local block database.
// All methods may fail on database problems; "not known" is not an error.
type ChainStatus interface {
	// TopFinalized returns the justification of the highest finalized block.
	TopFinalized() (chain.Justification, error)

	// FinalizedAt reports the finalization status of the block at the given number.
	FinalizedAt(number uint32) (FinalizationStatus, error)

	// Header returns the header of an imported block, or nil if the block
	// was not imported.
	Header(id chain.BlockID) (*chain.Header, error)

	// Block returns an imported block, or nil if the block was not imported.
	Block(id chain.BlockID) (*chain.Block, error)

	// Children returns the headers of imported blocks whose parent is the given block.
	Children(id chain.BlockID) ([]chain.Header, error)
}

// BlockImporter hands blocks to the import pipeline. Importing is asynchronous;
// the outcome is reported separately once the block is in the database.
type BlockImporter interface {
	ImportBlock(block chain.Block)
}

// Verifier checks finality proofs and headers received from untrusted sources.
type Verifier interface {
	// Verify returns the verified form of a justification or an error if the
	// proof is invalid.
	Verify(justification chain.UnverifiedJustification) (chain.Justification, error)

	// VerifyHeader checks a header. forFinality is set when the header is part
	// of a justification rather than of a block about to be imported.
	VerifyHeader(header chain.Header, forFinality bool) (chain.Header, error)
}
