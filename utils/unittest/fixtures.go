package unittest

import (
	"crypto/rand"
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
)

func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

func HashFixture() chain.Hash {
	var h chain.Hash
	copy(h[:], RandomBytes(chain.HashLen))
	return h
}

func BlockIDFixture(number uint32) chain.BlockID {
	return chain.BlockID{Hash: HashFixture(), Number: number}
}

func PeerIDFixture() chain.PeerID {
	return chain.PeerID(fmt.Sprintf("peer-%x", RandomBytes(8)))
}

func GenesisFixture() chain.Header {
	return chain.Genesis([]byte("genesis"))
}

// HeaderFixture returns a random child of the given header.
func HeaderFixture(parent chain.Header) chain.Header {
	return chain.Header{
		ParentHash: parent.Hash(),
		Number:     parent.Number + 1,
		Payload:    RandomBytes(8),
	}
}

// BranchFixture returns length headers, each a child of the previous one,
// starting with a child of parent.
func BranchFixture(parent chain.Header, length int) []chain.Header {
	branch := make([]chain.Header, 0, length)
	for i := 0; i < length; i++ {
		parent = HeaderFixture(parent)
		branch = append(branch, parent)
	}
	return branch
}

func BlockFixture(header chain.Header) chain.Block {
	return chain.Block{
		Header: header,
		Body:   RandomBytes(16),
	}
}

func JustificationFixture(header chain.Header) chain.Justification {
	return chain.Justification{
		Header: header,
		Proof:  []byte(fmt.Sprintf("proof-%d", header.Number)),
	}
}

func UnverifiedJustificationFixture(header chain.Header) chain.UnverifiedJustification {
	return JustificationFixture(header).Unverified()
}

func SessionBoundaryInfoFixture(period uint32) chain.SessionBoundaryInfo {
	info, err := chain.NewSessionBoundaryInfo(period)
	if err != nil {
		panic(err)
	}
	return info
}
