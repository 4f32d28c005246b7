package chain

import (
	"encoding/hex"
	"fmt"
)

// HashLen is the length of a block hash in bytes.
const HashLen = 32

// Hash identifies a block header.
type Hash [HashLen]byte

// ZeroHash is the parent hash of the genesis header.
var ZeroHash Hash

// HashFromHex parses a hex-encoded hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("could not decode hash: %w", err)
	}
	if len(raw) != HashLen {
		return h, fmt.Errorf("invalid hash length (%d), expected %d", len(raw), HashLen)
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// TerminalString returns a shortened form of the hash for logs.
func (h Hash) TerminalString() string {
	return hex.EncodeToString(h[:4])
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}
