package chainsync

import (
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/forest"
)

// Handler decides how to react to the messages of the synchronization
// protocol. It owns the forest of pending blocks and drives finalization.
//
// Handler is not safe for concurrent use; it is meant to be owned by a
// single goroutine.
type Handler struct {
	log         zerolog.Logger
	metrics     module.SyncMetrics
	chainStatus module.ChainStatus
	verifier    module.Verifier
	finalizer   module.Finalizer
	importer    module.BlockImporter
	sessionInfo chain.SessionBoundaryInfo
	forest      *forest.Forest
}

// NewHandler builds the forest from the top finalized block and all imported
// blocks descending from it. Any failure results in a ForestInitializationError.
func NewHandler(
	log zerolog.Logger,
	config Config,
	metrics module.SyncMetrics,
	chainStatus module.ChainStatus,
	verifier module.Verifier,
	finalizer module.Finalizer,
	importer module.BlockImporter,
	sessionInfo chain.SessionBoundaryInfo,
) (*Handler, error) {
	top, err := chainStatus.TopFinalized()
	if err != nil {
		return nil, NewForestInitializationErrorf("could not read top finalized block: %w", err)
	}

	f := forest.New(top.ID(), config.ForestLimit)
	pending := []chain.BlockID{top.ID()}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		children, err := chainStatus.Children(id)
		if err != nil {
			return nil, NewForestInitializationErrorf("could not read children of %v: %w", id, err)
		}
		for _, child := range children {
			if err := f.UpdateBody(child); err != nil {
				return nil, NewForestInitializationErrorf("could not add imported block %v: %w", child.ID(), err)
			}
			pending = append(pending, child.ID())
		}
	}

	h := &Handler{
		log:         log.With().Str("component", "sync_handler").Logger(),
		metrics:     metrics,
		chainStatus: chainStatus,
		verifier:    verifier,
		finalizer:   finalizer,
		importer:    importer,
		sessionInfo: sessionInfo,
		forest:      f,
	}
	metrics.FinalizedHeight(top.ID().Number)
	metrics.ForestSize(f.Len())

	h.log.Info().
		Stringer("top_finalized", top.ID()).
		Int("pending_blocks", f.Len()).
		Msg("sync handler initialized")
	return h, nil
}

// State returns our current state, to be broadcast to peers.
func (h *Handler) State() (messages.State, error) {
	top, err := h.chainStatus.TopFinalized()
	if err != nil {
		return messages.State{}, NewChainStatusErrorf("could not read top finalized block: %w", err)
	}
	return messages.State{TopJustification: top.Unverified()}, nil
}

// BlockState returns our interest in the given block.
func (h *Handler) BlockState(id chain.BlockID) forest.Interest {
	return h.forest.BlockState(id)
}

// BlockImported informs the handler that the block was imported.
func (h *Handler) BlockImported(header chain.Header) error {
	if err := h.forest.UpdateBody(header); err != nil {
		return NewForestErrorf("could not record imported block %v: %w", header.ID(), err)
	}
	return h.tryFinalize()
}

// HandleInternalRequest registers local interest in the block. It returns
// true if the block was not of interest before and should be requested.
func (h *Handler) HandleInternalRequest(id chain.BlockID) (bool, error) {
	newlyRequired := h.forest.UpdateBlockIdentifier(id, nil, true)
	h.metrics.ForestSize(h.forest.Len())
	return newlyRequired, nil
}

// HandleJustification verifies the justification and tries to finalize it.
// It returns the id of the justified block if the justification was new.
func (h *Handler) HandleJustification(justification chain.UnverifiedJustification, peer *chain.PeerID) (*chain.BlockID, error) {
	verified, err := h.verifier.Verify(justification)
	if err != nil {
		return nil, NewVerifierErrorf("invalid justification for %v: %w", justification.ID(), err)
	}
	added, err := h.forest.UpdateJustification(verified, peer)
	if err != nil {
		return nil, NewForestErrorf("could not add justification for %v: %w", verified.ID(), err)
	}
	if added {
		h.metrics.JustificationsHandled(1)
	}
	// a known justification may still be pending after a failed finalization
	if err := h.tryFinalize(); err != nil {
		return nil, err
	}
	if !added {
		return nil, nil
	}
	id := verified.ID()
	return &id, nil
}

// HandleJustifications handles a batch of justifications, returning the
// highest new justified block. Errors of individual justifications do not
// stop the batch; they are returned together.
func (h *Handler) HandleJustifications(justifications []chain.UnverifiedJustification, peer *chain.PeerID) (*chain.BlockID, error) {
	var highest *chain.BlockID
	var errs *multierror.Error
	for _, justification := range justifications {
		id, err := h.HandleJustification(justification, peer)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if id != nil && (highest == nil || highest.Number < id.Number) {
			highest = id
		}
	}
	return highest, errs.ErrorOrNil()
}

// HandleState reacts to the state of a peer. If the peer is ahead we take its
// justification, if it is behind we help it catch up by at most two sessions.
func (h *Handler) HandleState(state messages.State, peer chain.PeerID) (HandleStateAction, error) {
	local, err := h.chainStatus.TopFinalized()
	if err != nil {
		return noop(), NewChainStatusErrorf("could not read top finalized block: %w", err)
	}
	localNumber := local.ID().Number
	remoteNumber := state.TopJustification.ID().Number
	localSession := h.sessionInfo.SessionID(localNumber)
	remoteSession := h.sessionInfo.SessionID(remoteNumber)

	switch {
	case remoteSession > localSession || (remoteSession == localSession && remoteNumber >= localNumber):
		id, err := h.HandleJustification(state.TopJustification, &peer)
		if err != nil {
			return noop(), err
		}
		if id == nil {
			return noop(), nil
		}
		return highestJustified(*id), nil

	case remoteSession == localSession:
		return respond(&messages.StateBroadcastResponse{Justification: local.Unverified()}), nil

	case remoteSession+1 == localSession:
		sessionEnd, err := h.sessionEndJustification(remoteSession)
		if err != nil {
			return noop(), err
		}
		extra := local.Unverified()
		return respond(&messages.StateBroadcastResponse{
			Justification: sessionEnd.Unverified(),
			Extra:         &extra,
		}), nil

	default:
		sessionEnd, err := h.sessionEndJustification(remoteSession)
		if err != nil {
			return noop(), err
		}
		nextSessionEnd, err := h.sessionEndJustification(remoteSession + 1)
		if err != nil {
			return noop(), err
		}
		extra := nextSessionEnd.Unverified()
		return respond(&messages.StateBroadcastResponse{
			Justification: sessionEnd.Unverified(),
			Extra:         &extra,
		}), nil
	}
}

// HandleRequestResponse applies a response to one of our requests: first the
// justifications, then the headers, then the blocks. If any block that we do
// not have yet cannot be imported, none of the blocks are imported. It returns
// the highest new justified block.
func (h *Handler) HandleRequestResponse(
	justifications []chain.UnverifiedJustification,
	headers []chain.Header,
	blocks []chain.Block,
	peer chain.PeerID,
) (*chain.BlockID, error) {
	var errs *multierror.Error
	highest, err := h.HandleJustifications(justifications, &peer)
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	for _, header := range headers {
		verified, err := h.verifier.VerifyHeader(header, false)
		if err != nil {
			return highest, multierror.Append(errs, NewVerifierErrorf("invalid header %v: %w", header.ID(), err)).ErrorOrNil()
		}
		if err := h.forest.UpdateRequiredHeader(verified, &peer); err != nil {
			return highest, multierror.Append(errs, NewForestErrorf("could not add header %v: %w", header.ID(), err)).ErrorOrNil()
		}
	}
	h.metrics.ForestSize(h.forest.Len())

	toImport := make([]chain.Block, 0, len(blocks))
	for _, block := range blocks {
		id := block.ID()
		if h.forest.Skippable(id) {
			continue
		}
		if !h.forest.Importable(id) {
			h.metrics.ResponseRejected()
			return highest, multierror.Append(errs, NewBlockNotImportableErrorf("block %v from peer %v cannot be imported", id, peer)).ErrorOrNil()
		}
		toImport = append(toImport, block)
	}
	for _, block := range toImport {
		h.importer.ImportBlock(block)
	}

	return highest, errs.ErrorOrNil()
}

// tryFinalize finalizes blocks as long as the forest allows. At each step it
// tries the block right after the top finalized one, then the last block of
// its session, then the lowest justified block within that session.
func (h *Handler) tryFinalize() error {
	top, err := h.chainStatus.TopFinalized()
	if err != nil {
		return NewChainStatusErrorf("could not read top finalized block: %w", err)
	}
	number := top.ID().Number + 1
	for {
		justification := h.forest.Finalizable(number)
		if justification == nil {
			justification = h.finalizableWithinSession(number)
		}
		if justification == nil {
			break
		}
		// the forest keeps the block until the database accepted it, so a
		// failed attempt can be retried with the same justification
		if err := h.finalizer.Finalize(*justification); err != nil {
			return NewFinalizerErrorf("could not finalize %v: %w", justification.ID(), err)
		}
		if err := h.forest.Finalize(justification.ID()); err != nil {
			return NewForestErrorf("could not move root to %v: %w", justification.ID(), err)
		}
		number = justification.ID().Number
		h.metrics.FinalizedHeight(number)
		h.log.Debug().Stringer("block", justification.ID()).Msg("block finalized")
		number++
	}
	h.metrics.ForestSize(h.forest.Len())
	return nil
}

func (h *Handler) finalizableWithinSession(number uint32) *chain.Justification {
	sessionEnd := h.sessionInfo.LastBlockOfSession(h.sessionInfo.SessionID(number))
	if sessionEnd == number {
		return nil
	}
	if justification := h.forest.Finalizable(sessionEnd); justification != nil {
		return justification
	}
	lowest, ok := h.forest.LowestJustified(number)
	if !ok || lowest >= sessionEnd {
		return nil
	}
	return h.forest.Finalizable(lowest)
}

// sessionEndJustification returns the justification of the last block of the
// given session, which must be finalized.
func (h *Handler) sessionEndJustification(session chain.SessionID) (chain.Justification, error) {
	number := h.sessionInfo.LastBlockOfSession(session)
	status, err := h.chainStatus.FinalizedAt(number)
	if err != nil {
		return chain.Justification{}, NewChainStatusErrorf("could not read finalized block at %d: %w", number, err)
	}
	if status.Kind != module.FinalizedWithJustification {
		return chain.Justification{}, MissingJustificationError{Number: number}
	}
	return *status.Justification, nil
}
