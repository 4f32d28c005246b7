package chain

// PeerID identifies a remote node. Transport implementations convert their own
// peer identifiers to and from this type.
type PeerID string

func (p PeerID) String() string {
	return string(p)
}
