package chainsync

import (
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
)

type HandleStateActionKind int

const (
	// Noop means there is nothing to do.
	Noop HandleStateActionKind = iota
	// Response means the data should be sent back to the peer.
	Response
	// HighestJustified means we learned of a new justified block that
	// should be requested.
	HighestJustified
)

func (k HandleStateActionKind) String() string {
	switch k {
	case Noop:
		return "noop"
	case Response:
		return "response"
	case HighestJustified:
		return "highest_justified"
	default:
		return "unknown"
	}
}

// HandleStateAction is the outcome of handling the state of a peer.
type HandleStateAction struct {
	Kind HandleStateActionKind
	// Response is set for Response.
	Response messages.NetworkData
	// Justified is set for HighestJustified.
	Justified chain.BlockID
}

func noop() HandleStateAction {
	return HandleStateAction{Kind: Noop}
}

func respond(data messages.NetworkData) HandleStateAction {
	return HandleStateAction{Kind: Response, Response: data}
}

func highestJustified(id chain.BlockID) HandleStateAction {
	return HandleStateAction{Kind: HighestJustified, Justified: id}
}
