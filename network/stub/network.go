package stub

import (
	"context"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/network"
	"github.com/finalitylabs/blocksync/network/codec"
	"github.com/finalitylabs/blocksync/network/codec/cbor"
)

// DefaultInboxSize is the number of undelivered messages a network buffers
// before further messages to it are dropped.
const DefaultInboxSize = 1024

type envelope struct {
	from chain.PeerID
	data []byte
}

// Network is an in-memory GossipNetwork. Messages go through the wire codec,
// so receivers never share memory with senders.
type Network struct {
	id    chain.PeerID
	hub   *Hub
	codec codec.Codec
	inbox chan envelope

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	// counts the messages dropped because the inbox was full
	dropped int
}

var _ network.GossipNetwork = (*Network)(nil)

// NewNetwork creates a network for the given peer and plugs it into the hub.
func NewNetwork(id chain.PeerID, hub *Hub) *Network {
	n := &Network{
		id:    id,
		hub:   hub,
		codec: cbor.NewCodec(),
		inbox: make(chan envelope, DefaultInboxSize),
		done:  make(chan struct{}),
	}
	hub.plug(n)
	return n
}

func (n *Network) ID() chain.PeerID {
	return n.id
}

func (n *Network) SendTo(data messages.NetworkData, peer chain.PeerID) error {
	target := n.hub.GetNetwork(peer)
	if target == nil || peer == n.id {
		return errors.Wrapf(network.ErrUnknownPeer, "peer %s", peer)
	}
	return n.deliver(data, target)
}

func (n *Network) SendToRandom(data messages.NetworkData, peers []chain.PeerID) error {
	var candidates []*Network
	if len(peers) == 0 {
		candidates = n.hub.peers(n.id)
	} else {
		for _, peer := range peers {
			target := n.hub.GetNetwork(peer)
			if target != nil && peer != n.id {
				candidates = append(candidates, target)
			}
		}
	}
	if len(candidates) == 0 {
		return network.ErrNoPeers
	}
	return n.deliver(data, candidates[rand.Intn(len(candidates))])
}

func (n *Network) Broadcast(data messages.NetworkData) error {
	for _, target := range n.hub.peers(n.id) {
		if err := n.deliver(data, target); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) Next(ctx context.Context) (messages.NetworkData, chain.PeerID, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-n.done:
		return nil, "", network.ErrClosed
	case env := <-n.inbox:
		msg, err := n.codec.Decode(env.data)
		if err != nil {
			return nil, env.from, errors.Wrapf(err, "could not decode message from %s", env.from)
		}
		return msg, env.from, nil
	}
}

// Close unplugs the network from the hub and makes Next return ErrClosed.
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	n.hub.unplug(n.id)
	close(n.done)
}

// Dropped returns the number of messages lost because the inbox was full.
func (n *Network) Dropped() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

func (n *Network) deliver(data messages.NetworkData, target *Network) error {
	encoded, err := n.codec.Encode(data)
	if err != nil {
		return errors.Wrap(err, "could not encode message")
	}
	select {
	case target.inbox <- envelope{from: n.id, data: encoded}:
	default:
		target.mu.Lock()
		target.dropped++
		target.mu.Unlock()
	}
	return nil
}
