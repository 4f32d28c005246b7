package messages

import (
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
)

// NetworkData is a message of the synchronization protocol. It is implemented
// by *StateBroadcast, *StateBroadcastResponse, *Request and *RequestResponse.
type NetworkData interface {
	// Kind returns a short name of the message type, used for logs and metrics.
	Kind() string
	isNetworkData()
}

// State is the sync cursor of a node: the highest block it holds a
// justification for.
type State struct {
	TopJustification chain.UnverifiedJustification
}

// BranchKnowledgeKind distinguishes the two ways a requester describes what it
// already has on the branch leading to the requested block.
type BranchKnowledgeKind uint8

const (
	// LowestID means the requester knows the headers of the branch starting at
	// the given block and going up to the target, and nothing below it.
	LowestID BranchKnowledgeKind = iota + 1
	// TopImported means the requester imported the given block, which is an
	// ancestor of the target, and knows nothing above it.
	TopImported
)

func (k BranchKnowledgeKind) String() string {
	switch k {
	case LowestID:
		return "lowest_id"
	case TopImported:
		return "top_imported"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

type BranchKnowledge struct {
	Kind BranchKnowledgeKind
	ID   chain.BlockID
}

func NewLowestID(id chain.BlockID) BranchKnowledge {
	return BranchKnowledge{Kind: LowestID, ID: id}
}

func NewTopImported(id chain.BlockID) BranchKnowledge {
	return BranchKnowledge{Kind: TopImported, ID: id}
}

func (b BranchKnowledge) String() string {
	return fmt.Sprintf("%s(%s)", b.Kind, b.ID)
}

// StateBroadcast announces the state of the sender to its peers.
type StateBroadcast struct {
	State State
}

// StateBroadcastResponse answers a state announcement of a peer that is behind
// with up to two justifications that move it forward.
type StateBroadcastResponse struct {
	Justification chain.UnverifiedJustification
	Extra         *chain.UnverifiedJustification
}

// Request asks for everything needed to import the target block. The embedded
// state doubles as a state announcement of the requester.
type Request struct {
	Target          chain.BlockID
	BranchKnowledge BranchKnowledge
	State           State
}

// RequestResponse carries the reply to a Request. Justifications are ordered
// by ascending number, headers descend within each stretch between two
// justifications, and blocks are ordered by ascending number.
type RequestResponse struct {
	Justifications []chain.UnverifiedJustification
	Headers        []chain.Header
	Blocks         []chain.Block
}

func (*StateBroadcast) Kind() string         { return "state_broadcast" }
func (*StateBroadcastResponse) Kind() string { return "state_broadcast_response" }
func (*Request) Kind() string                { return "request" }
func (*RequestResponse) Kind() string        { return "request_response" }

func (*StateBroadcast) isNetworkData()         {}
func (*StateBroadcastResponse) isNetworkData() {}
func (*Request) isNetworkData()                {}
func (*RequestResponse) isNetworkData()        {}
