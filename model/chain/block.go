package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// BlockID identifies a block by its hash and number. Two ids are equal iff
// they describe the same block; ids are ordered by number.
type BlockID struct {
	Hash   Hash
	Number uint32
}

func (id BlockID) String() string {
	return fmt.Sprintf("#%d (%s)", id.Number, id.Hash.TerminalString())
}

// Less orders ids by number, breaking ties by hash so the order is total.
func (id BlockID) Less(other BlockID) bool {
	if id.Number != other.Number {
		return id.Number < other.Number
	}
	return bytes.Compare(id.Hash[:], other.Hash[:]) < 0
}

// Header contains the block metadata needed to link a block to its parent.
// The payload is opaque to the sync layer.
type Header struct {
	ParentHash Hash
	Number     uint32
	Payload    []byte
}

// Genesis returns the header of the genesis block carrying the given payload.
func Genesis(payload []byte) Header {
	return Header{
		ParentHash: ZeroHash,
		Number:     0,
		Payload:    payload,
	}
}

// Hash returns the blake2b-256 digest of the header.
func (h Header) Hash() Hash {
	buf := make([]byte, 4, 4+HashLen+len(h.Payload))
	binary.BigEndian.PutUint32(buf, h.Number)
	buf = append(buf, h.ParentHash[:]...)
	buf = append(buf, h.Payload...)
	return blake2b.Sum256(buf)
}

// ID returns the identifier of the block described by the header.
func (h Header) ID() BlockID {
	return BlockID{Hash: h.Hash(), Number: h.Number}
}

// ParentID returns the identifier of the parent block. The second return value
// is false for the genesis header.
func (h Header) ParentID() (BlockID, bool) {
	if h.Number == 0 {
		return BlockID{}, false
	}
	return BlockID{Hash: h.ParentHash, Number: h.Number - 1}, true
}

// Block is a header together with an opaque body.
type Block struct {
	Header Header
	Body   []byte
}

func (b Block) ID() BlockID {
	return b.Header.ID()
}
