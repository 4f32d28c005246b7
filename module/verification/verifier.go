package verification

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
)

var (
	ErrInvalidProof       = errors.New("invalid justification proof")
	ErrInsufficientQuorum = errors.New("not enough valid signatures")
	ErrInvalidHeader      = errors.New("invalid header")
)

// Signature is one authority's signature over a block hash.
type Signature struct {
	_         struct{} `cbor:",toarray"`
	Authority uint16
	Signature []byte
}

// AuthorityVerifier accepts justifications signed by at least threshold
// distinct members of a fixed authority set. The proof is the CBOR encoding
// of a list of Signature.
type AuthorityVerifier struct {
	authorities    []ed25519.PublicKey
	threshold      int
	genesis        chain.BlockID
	maxPayloadSize int
}

var _ module.Verifier = (*AuthorityVerifier)(nil)

// DefaultMaxPayloadSize bounds the opaque payload of headers.
const DefaultMaxPayloadSize = 1 << 20

func NewAuthorityVerifier(authorities []ed25519.PublicKey, threshold int, genesis chain.Header) (*AuthorityVerifier, error) {
	if threshold < 1 || threshold > len(authorities) {
		return nil, fmt.Errorf("threshold %d out of range for %d authorities", threshold, len(authorities))
	}
	for i, key := range authorities {
		if len(key) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("authority %d has a key of invalid length %d", i, len(key))
		}
	}
	return &AuthorityVerifier{
		authorities:    authorities,
		threshold:      threshold,
		genesis:        genesis.ID(),
		maxPayloadSize: DefaultMaxPayloadSize,
	}, nil
}

// Verify checks the proof of the justification. The genesis block is
// justified by definition, whatever its proof.
func (v *AuthorityVerifier) Verify(justification chain.UnverifiedJustification) (chain.Justification, error) {
	header, err := v.VerifyHeader(justification.Header, true)
	if err != nil {
		return chain.Justification{}, err
	}
	verified := chain.Justification{Header: header, Proof: justification.Proof}
	if header.Number == 0 {
		return verified, nil
	}

	var signatures []Signature
	err = cbor.Unmarshal(justification.Proof, &signatures)
	if err != nil {
		return chain.Justification{}, fmt.Errorf("could not decode proof of %v: %v: %w", header.ID(), err, ErrInvalidProof)
	}

	hash := header.Hash()
	signed := make(map[uint16]struct{}, len(signatures))
	for _, sig := range signatures {
		if int(sig.Authority) >= len(v.authorities) {
			continue
		}
		if _, ok := signed[sig.Authority]; ok {
			continue
		}
		if ed25519.Verify(v.authorities[sig.Authority], hash[:], sig.Signature) {
			signed[sig.Authority] = struct{}{}
		}
	}
	if len(signed) < v.threshold {
		return chain.Justification{}, fmt.Errorf("justification of %v has %d of %d required signatures: %w",
			header.ID(), len(signed), v.threshold, ErrInsufficientQuorum)
	}
	return verified, nil
}

// VerifyHeader checks the parts of the header that do not depend on its
// position in the chain.
func (v *AuthorityVerifier) VerifyHeader(header chain.Header, forFinality bool) (chain.Header, error) {
	if header.Number == 0 {
		if header.ID() != v.genesis {
			return chain.Header{}, fmt.Errorf("unexpected genesis header %v: %w", header.ID(), ErrInvalidHeader)
		}
		return header, nil
	}
	if header.ParentHash.IsZero() {
		return chain.Header{}, fmt.Errorf("header %v has no parent: %w", header.ID(), ErrInvalidHeader)
	}
	if len(header.Payload) > v.maxPayloadSize {
		return chain.Header{}, fmt.Errorf("header %v has a payload of %d bytes: %w", header.ID(), len(header.Payload), ErrInvalidHeader)
	}
	return header, nil
}

// Sign produces a proof for the header, signed by the given authorities.
func Sign(header chain.Header, keys map[uint16]ed25519.PrivateKey) ([]byte, error) {
	hash := header.Hash()
	signatures := make([]Signature, 0, len(keys))
	for index, key := range keys {
		signatures = append(signatures, Signature{
			Authority: index,
			Signature: ed25519.Sign(key, hash[:]),
		})
	}
	proof, err := cbor.Marshal(signatures)
	if err != nil {
		return nil, fmt.Errorf("could not encode proof: %w", err)
	}
	return proof, nil
}
