package network

import (
	"context"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
)

// GossipNetwork carries synchronization messages between peers. All methods
// are safe for concurrent use.
type GossipNetwork interface {
	// SendTo sends the data to the given peer.
	SendTo(data messages.NetworkData, peer chain.PeerID) error

	// SendToRandom sends the data to a peer picked at random from the given
	// set, or from all connected peers if the set is empty.
	SendToRandom(data messages.NetworkData, peers []chain.PeerID) error

	// Broadcast sends the data to all connected peers.
	Broadcast(data messages.NetworkData) error

	// Next blocks until a message arrives or the context is cancelled. It
	// returns ErrClosed once the network was shut down; other errors concern
	// a single message only.
	Next(ctx context.Context) (messages.NetworkData, chain.PeerID, error)
}
