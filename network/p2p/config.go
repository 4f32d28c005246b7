package p2p

import (
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/protocol"
	madns "github.com/multiformats/go-multiaddr-dns"
)

const (
	// ProtocolID is the stream protocol used for messages addressed to one peer.
	ProtocolID protocol.ID = "/blocksync/1.0.0"

	// DefaultTopic is the gossipsub topic carrying broadcasts.
	DefaultTopic = "/blocksync/state/1.0.0"
)

type Config struct {
	// PrivateKey is the node identity. A fresh key is generated when nil.
	PrivateKey crypto.PrivKey
	// ListenAddrs are multiaddrs to listen on, e.g. /ip4/0.0.0.0/tcp/30333.
	ListenAddrs []string
	// Bootstrap are full multiaddrs, including the /p2p/ component, of peers
	// dialed on startup. /dns, /dns4, /dns6 and /dnsaddr addresses are
	// resolved first.
	Bootstrap []string
	// Resolver looks up DNS names in multiaddrs. The system resolver is used
	// when nil.
	Resolver madns.BasicResolver
	Topic     string
	// MaxMessageSize bounds both gossip messages and stream frames.
	MaxMessageSize int
	// InboxSize is the number of received messages buffered until Next picks
	// them up. Further messages are dropped.
	InboxSize     int
	SendTimeout   time.Duration
	DialRetries   uint64
	DialRetryBase time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenAddrs:    []string{"/ip4/0.0.0.0/tcp/0"},
		Topic:          DefaultTopic,
		MaxMessageSize: 16 << 20,
		InboxSize:      1024,
		SendTimeout:    10 * time.Second,
		DialRetries:    5,
		DialRetryBase:  500 * time.Millisecond,
	}
}
