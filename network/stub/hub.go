package stub

import (
	"sync"

	"github.com/finalitylabs/blocksync/model/chain"
)

// Hub connects in-memory networks so that nodes in the same process can
// exchange messages.
type Hub struct {
	mu       sync.RWMutex
	networks map[chain.PeerID]*Network
}

// NewNetworkHub returns a hub with no networks plugged in.
func NewNetworkHub() *Hub {
	return &Hub{
		networks: make(map[chain.PeerID]*Network),
	}
}

// GetNetwork returns the network of the given peer, or nil if it is not plugged in.
func (hub *Hub) GetNetwork(id chain.PeerID) *Network {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.networks[id]
}

func (hub *Hub) plug(net *Network) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.networks[net.id] = net
}

func (hub *Hub) unplug(id chain.PeerID) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.networks, id)
}

// peers returns every plugged network except the given one.
func (hub *Hub) peers(except chain.PeerID) []*Network {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	nets := make([]*Network, 0, len(hub.networks))
	for id, net := range hub.networks {
		if id != except {
			nets = append(nets, net)
		}
	}
	return nets
}
