package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	mrand "math/rand"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	libp2pnet "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-msgio"
	ma "github.com/multiformats/go-multiaddr"
	madns "github.com/multiformats/go-multiaddr-dns"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/component"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/network"
	"github.com/finalitylabs/blocksync/network/codec"
)

type envelope struct {
	from chain.PeerID
	data []byte
}

// Network is a GossipNetwork on top of a libp2p host. Broadcasts go through a
// gossipsub topic, messages for a single peer through a dedicated stream
// protocol with varint-framed payloads.
type Network struct {
	*component.ComponentManager
	log     zerolog.Logger
	config  Config
	codec   codec.Codec
	metrics module.EngineMetrics

	host     host.Host
	resolver *madns.Resolver
	ps       *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	inbox     chan envelope
	closeOnce sync.Once
	closed    chan struct{}
}

var _ network.GossipNetwork = (*Network)(nil)
var _ component.Component = (*Network)(nil)

// NewNetwork creates the libp2p host and joins the broadcast topic. The
// network starts receiving once the component is started.
func NewNetwork(
	log zerolog.Logger,
	config Config,
	codec codec.Codec,
	metrics module.EngineMetrics,
) (*Network, error) {
	privKey := config.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("could not generate node key: %w", err)
		}
	}

	resolver := madns.DefaultResolver
	if config.Resolver != nil {
		var err error
		resolver, err = madns.NewResolver(madns.WithDefaultResolver(config.Resolver))
		if err != nil {
			return nil, fmt.Errorf("could not create multiaddr resolver: %w", err)
		}
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrStrings(config.ListenAddrs...),
		libp2p.MultiaddrResolver(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create libp2p host: %w", err)
	}

	// gossipsub only uses the context for its background routines, which are
	// stopped by closing the host
	ps, err := pubsub.NewGossipSub(context.Background(), h,
		pubsub.WithMaxMessageSize(config.MaxMessageSize),
	)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("could not create gossipsub router: %w", err)
	}

	topic, err := ps.Join(config.Topic)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("could not join topic %s: %w", config.Topic, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("could not subscribe to topic %s: %w", config.Topic, err)
	}

	n := &Network{
		log:     log.With().Str("component", "p2p").Str("peer_id", h.ID().String()).Logger(),
		config:  config,
		codec:   codec,
		metrics: metrics,
		host:     h,
		resolver: resolver,
		ps:       ps,
		topic:   topic,
		sub:     sub,
		inbox:   make(chan envelope, config.InboxSize),
		closed:  make(chan struct{}),
	}

	h.SetStreamHandler(ProtocolID, n.handleStream)

	n.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(n.readTopic).
		AddWorker(n.bootstrap).
		AddWorker(n.shutdownOnCancel).
		Build()

	return n, nil
}

// ID returns the peer ID of the local node.
func (n *Network) ID() chain.PeerID {
	return chain.PeerID(n.host.ID().String())
}

// Addrs returns the dialable addresses of the local node, each including the
// /p2p/ component.
func (n *Network) Addrs() []string {
	info := peer.AddrInfo{ID: n.host.ID(), Addrs: n.host.Addrs()}
	addrs, err := peer.AddrInfoToP2pAddrs(&info)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.String())
	}
	return out
}

func (n *Network) SendTo(data messages.NetworkData, to chain.PeerID) error {
	pid, err := peer.Decode(string(to))
	if err != nil {
		return fmt.Errorf("invalid peer id %s: %w", to, err)
	}
	return n.send(data, pid)
}

func (n *Network) SendToRandom(data messages.NetworkData, peers []chain.PeerID) error {
	var candidates []peer.ID
	if len(peers) == 0 {
		candidates = n.host.Network().Peers()
	} else {
		for _, p := range peers {
			pid, err := peer.Decode(string(p))
			if err != nil {
				n.log.Debug().Err(err).Str("peer", p.String()).Msg("skipping invalid peer id")
				continue
			}
			if n.host.Network().Connectedness(pid) == libp2pnet.Connected {
				candidates = append(candidates, pid)
			}
		}
	}
	if len(candidates) == 0 {
		return network.ErrNoPeers
	}
	return n.send(data, candidates[mrand.Intn(len(candidates))])
}

func (n *Network) Broadcast(data messages.NetworkData) error {
	encoded, err := n.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", data.Kind(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.config.SendTimeout)
	defer cancel()
	err = n.topic.Publish(ctx, encoded)
	if err != nil {
		n.metrics.OutboundMessageDropped(metricsEngine, data.Kind())
		return fmt.Errorf("could not publish %s: %w", data.Kind(), err)
	}
	n.metrics.MessageSent(metricsEngine, data.Kind())
	return nil
}

func (n *Network) Next(ctx context.Context) (messages.NetworkData, chain.PeerID, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-n.closed:
		return nil, "", network.ErrClosed
	case env := <-n.inbox:
		msg, err := n.codec.Decode(env.data)
		if err != nil {
			return nil, env.from, fmt.Errorf("could not decode message from %s: %w", env.from, err)
		}
		n.metrics.MessageReceived(metricsEngine, msg.Kind())
		return msg, env.from, nil
	}
}

func (n *Network) send(data messages.NetworkData, to peer.ID) error {
	encoded, err := n.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", data.Kind(), err)
	}
	if len(encoded) > n.config.MaxMessageSize {
		n.metrics.OutboundMessageDropped(metricsEngine, data.Kind())
		return fmt.Errorf("%s of %d bytes exceeds the message size limit", data.Kind(), len(encoded))
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.config.SendTimeout)
	defer cancel()

	s, err := n.host.NewStream(ctx, to, ProtocolID)
	if err != nil {
		n.metrics.OutboundMessageDropped(metricsEngine, data.Kind())
		return fmt.Errorf("could not open stream to %s: %w", to, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetWriteDeadline(deadline)
	}

	err = msgio.NewVarintWriter(s).WriteMsg(encoded)
	if err != nil {
		_ = s.Reset()
		n.metrics.OutboundMessageDropped(metricsEngine, data.Kind())
		return fmt.Errorf("could not write %s to %s: %w", data.Kind(), to, err)
	}
	n.metrics.MessageSent(metricsEngine, data.Kind())
	return s.Close()
}

// handleStream reads frames until the remote closes the stream.
func (n *Network) handleStream(s libp2pnet.Stream) {
	defer s.Close()
	from := chain.PeerID(s.Conn().RemotePeer().String())
	reader := msgio.NewVarintReaderSize(s, n.config.MaxMessageSize)
	for {
		frame, err := reader.ReadMsg()
		if err != nil {
			return
		}
		data := make([]byte, len(frame))
		copy(data, frame)
		reader.ReleaseMsg(frame)
		n.enqueue(envelope{from: from, data: data})
	}
}

func (n *Network) readTopic(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	for {
		msg, err := n.sub.Next(ctx)
		if err != nil {
			// the subscription fails only once it was cancelled or ctx is done
			return
		}
		if msg.GetFrom() == n.host.ID() {
			continue
		}
		n.enqueue(envelope{from: chain.PeerID(msg.GetFrom().String()), data: msg.Data})
	}
}

func (n *Network) enqueue(env envelope) {
	select {
	case n.inbox <- env:
	default:
		n.metrics.InboundMessageDropped(metricsEngine, "unknown")
		n.log.Debug().Str("peer", env.from.String()).Msg("inbox full, dropping message")
	}
}

// bootstrap dials the configured peers with exponential backoff. Peers that
// cannot be reached are logged and skipped.
func (n *Network) bootstrap(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	var wg sync.WaitGroup
	for _, addr := range n.config.Bootstrap {
		infos, err := n.resolveAddrInfos(ctx, addr)
		if err != nil {
			n.log.Warn().Err(err).Str("addr", addr).Msg("invalid bootstrap address")
			continue
		}
		for _, info := range infos {
			info := info
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := n.dial(ctx, info)
				if err != nil {
					if ctx.Err() == nil {
						n.log.Warn().Err(err).Str("peer", info.ID.String()).Msg("could not connect to bootstrap peer")
					}
					return
				}
				n.log.Info().Str("peer", info.ID.String()).Msg("connected to bootstrap peer")
			}()
		}
	}
	wg.Wait()
}

// resolveAddrInfos turns a bootstrap multiaddr into the peers it names. DNS
// components are resolved, which may yield several peers for /dnsaddr.
func (n *Network) resolveAddrInfos(ctx context.Context, addr string) ([]peer.AddrInfo, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, err
	}
	addrs := []ma.Multiaddr{maddr}
	if madns.Matches(maddr) {
		addrs, err = n.resolver.Resolve(ctx, maddr)
		if err != nil {
			return nil, fmt.Errorf("could not resolve %s: %w", addr, err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("%s resolved to no addresses", addr)
		}
	}
	return peer.AddrInfosFromP2pAddrs(addrs...)
}

func (n *Network) dial(ctx context.Context, info peer.AddrInfo) error {
	backoff := retry.WithMaxRetries(n.config.DialRetries, retry.NewExponential(n.config.DialRetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := n.host.Connect(ctx, info)
		if err != nil {
			n.log.Debug().Err(err).Str("peer", info.ID.String()).Msg("dial failed, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (n *Network) shutdownOnCancel(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	<-ctx.Done()
	n.Close()
}

// Close leaves the topic and shuts the host down. Next returns
// network.ErrClosed afterwards.
func (n *Network) Close() {
	n.closeOnce.Do(func() {
		close(n.closed)
		n.sub.Cancel()
		if err := n.topic.Close(); err != nil {
			n.log.Debug().Err(err).Msg("could not close topic")
		}
		if err := n.host.Close(); err != nil {
			n.log.Warn().Err(err).Msg("could not close libp2p host")
		}
	})
}

const metricsEngine = "p2p"
