package network

import (
	"errors"
)

var (
	// ErrClosed is returned by Next once the network was shut down.
	ErrClosed = errors.New("network closed")

	// ErrNoPeers is returned when a message should go to a random peer but
	// no peer is available.
	ErrNoPeers = errors.New("no peers available")

	// ErrUnknownPeer is returned when sending to a peer we are not connected to.
	ErrUnknownPeer = errors.New("unknown peer")
)
