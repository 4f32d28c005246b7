package chain

// UnverifiedJustification is a finality proof as received from the network or
// submitted by another subsystem. It must pass a Verifier before it is trusted.
type UnverifiedJustification struct {
	Header Header
	Proof  []byte
}

func (j UnverifiedJustification) ID() BlockID {
	return j.Header.ID()
}

// Justification is a finality proof that was accepted by a Verifier or read
// back from the local database.
type Justification struct {
	Header Header
	Proof  []byte
}

func (j Justification) ID() BlockID {
	return j.Header.ID()
}

// Unverified strips the verified status, for sending the justification to peers.
func (j Justification) Unverified() UnverifiedJustification {
	return UnverifiedJustification{
		Header: j.Header,
		Proof:  j.Proof,
	}
}
