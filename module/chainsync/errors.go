package chainsync

import (
	"errors"
	"fmt"
)

// VerifierError indicates that a justification or header failed verification.
type VerifierError struct {
	error
}

func NewVerifierErrorf(msg string, args ...interface{}) error {
	return VerifierError{error: fmt.Errorf(msg, args...)}
}

func (e VerifierError) Unwrap() error {
	return e.error
}

func IsVerifierError(err error) bool {
	return errors.As(err, &VerifierError{})
}

// ChainStatusError indicates that the block database could not be read.
type ChainStatusError struct {
	error
}

func NewChainStatusErrorf(msg string, args ...interface{}) error {
	return ChainStatusError{error: fmt.Errorf(msg, args...)}
}

func (e ChainStatusError) Unwrap() error {
	return e.error
}

func IsChainStatusError(err error) bool {
	return errors.As(err, &ChainStatusError{})
}

// ChainStatusExtError indicates that the answers of the block database
// contradict each other, e.g. an imported block has no imported parent.
type ChainStatusExtError struct {
	error
}

func NewChainStatusExtErrorf(msg string, args ...interface{}) error {
	return ChainStatusExtError{error: fmt.Errorf(msg, args...)}
}

func (e ChainStatusExtError) Unwrap() error {
	return e.error
}

func IsChainStatusExtError(err error) bool {
	return errors.As(err, &ChainStatusExtError{})
}

// FinalizerError indicates that finalization of a block could not be persisted.
type FinalizerError struct {
	error
}

func NewFinalizerErrorf(msg string, args ...interface{}) error {
	return FinalizerError{error: fmt.Errorf(msg, args...)}
}

func (e FinalizerError) Unwrap() error {
	return e.error
}

func IsFinalizerError(err error) bool {
	return errors.As(err, &FinalizerError{})
}

// ForestError indicates that data received from a peer could not be added to
// the forest, typically because it is on a fork of the finalized chain.
type ForestError struct {
	error
}

func NewForestErrorf(msg string, args ...interface{}) error {
	return ForestError{error: fmt.Errorf(msg, args...)}
}

func (e ForestError) Unwrap() error {
	return e.error
}

func IsForestError(err error) bool {
	return errors.As(err, &ForestError{})
}

// ForestInitializationError indicates that the forest could not be built from
// the block database. It is only returned by NewHandler and is fatal.
type ForestInitializationError struct {
	error
}

func NewForestInitializationErrorf(msg string, args ...interface{}) error {
	return ForestInitializationError{error: fmt.Errorf(msg, args...)}
}

func (e ForestInitializationError) Unwrap() error {
	return e.error
}

func IsForestInitializationError(err error) bool {
	return errors.As(err, &ForestInitializationError{})
}

// MissingJustificationError indicates that the last block of a finalized
// session has no justification in the database.
type MissingJustificationError struct {
	Number uint32
}

func (e MissingJustificationError) Error() string {
	return fmt.Sprintf("missing justification at the end of a session, block number %d", e.Number)
}

func IsMissingJustificationError(err error) bool {
	return errors.As(err, &MissingJustificationError{})
}

// BlockNotImportableError indicates that a response contained a block that
// cannot be imported; the whole response is rejected.
type BlockNotImportableError struct {
	error
}

func NewBlockNotImportableErrorf(msg string, args ...interface{}) error {
	return BlockNotImportableError{error: fmt.Errorf(msg, args...)}
}

func (e BlockNotImportableError) Unwrap() error {
	return e.error
}

func IsBlockNotImportableError(err error) bool {
	return errors.As(err, &BlockNotImportableError{})
}
