package forest

import (
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
)

type InterestKind int

const (
	Uninterested InterestKind = iota
	// Required blocks are wanted, and some of their descendants are wanted as well.
	Required
	// TopRequired blocks are wanted and none of their descendants is.
	TopRequired
)

func (k InterestKind) String() string {
	switch k {
	case Uninterested:
		return "uninterested"
	case Required:
		return "required"
	case TopRequired:
		return "top_required"
	default:
		return "unknown"
	}
}

// Interest tells whether a block should be requested, from whom, and what we
// already know about the branch leading to it.
type Interest struct {
	Kind            InterestKind
	KnowMost        []chain.PeerID
	BranchKnowledge messages.BranchKnowledge
}
