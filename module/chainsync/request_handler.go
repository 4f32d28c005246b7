package chainsync

import (
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
)

type sanity int

const (
	insane sanity = iota
	sane
	// maybe requests are consistent, but we do not trust them enough to
	// serve the target; a base response from safe coordinates is sent instead.
	maybe
)

type chunkKind int

const (
	blocksChunk chunkKind = iota
	headersChunk
	justificationChunk
)

// chunk is a piece of a response. Blocks are ordered by ascending number,
// headers by descending number.
type chunk struct {
	kind          chunkKind
	blocks        []chain.Block
	headers       []chain.Header
	justification chain.Justification
}

type requestClassification struct {
	sanity      sanity
	topImported chain.BlockID
}

// HandleRequest computes the most helpful response to the request. It returns
// nil if there is nothing to send.
func (h *Handler) HandleRequest(request messages.Request) (messages.NetworkData, error) {
	topJustified := request.State.TopJustification.ID()
	var topImported, lastKnown chain.BlockID
	// headers above this number are known to the peer
	var headersUpTo uint32
	switch request.BranchKnowledge.Kind {
	case messages.LowestID:
		topImported = topJustified
		lastKnown = request.BranchKnowledge.ID
		headersUpTo = lastKnown.Number - 1
	case messages.TopImported:
		topImported = request.BranchKnowledge.ID
		lastKnown = request.Target
		headersUpTo = lastKnown.Number
	default:
		return nil, nil
	}

	top, err := h.chainStatus.TopFinalized()
	if err != nil {
		return nil, NewChainStatusErrorf("could not read top finalized block: %w", err)
	}

	class, err := h.isRequestSane(top, topJustified, topImported, lastKnown, request.Target, request.BranchKnowledge.Kind)
	if err != nil {
		return nil, err
	}
	if class.sanity == insane {
		h.log.Debug().
			Stringer("target", request.Target).
			Stringer("branch_knowledge", request.BranchKnowledge).
			Stringer("top_justified", topJustified).
			Msg("ignoring insane request")
		return nil, nil
	}

	chunks, base, err := h.baseResponse(top, topJustified, class.topImported)
	if err != nil {
		return nil, err
	}
	if class.sanity == sane {
		if topImported.Number > base.Number {
			base = topImported
		}
		toTarget, err := h.chunksToTarget(base, headersUpTo, request.Target)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, toTarget...)
	}

	if e := h.log.Debug(); e.Enabled() {
		e.Stringer("target", request.Target).
			Int("chunks", len(chunks)).
			Bool("sane", class.sanity == sane).
			Msg("serving request")
	}
	return intoResponse(chunks), nil
}

func (h *Handler) isRequestSane(
	top chain.Justification,
	topJustified, topImported, lastKnown, target chain.BlockID,
	kind messages.BranchKnowledgeKind,
) (requestClassification, error) {
	switch {
	case target.Number < topJustified.Number,
		target.Number < topImported.Number,
		topImported.Number < topJustified.Number,
		lastKnown.Number > target.Number,
		kind == messages.LowestID && lastKnown.Number <= topJustified.Number:
		return requestClassification{sanity: insane}, nil
	}

	onFork, err := h.isOnFork(top, topJustified)
	if err != nil || onFork {
		return requestClassification{sanity: insane}, err
	}

	onFork, err = h.isOnFork(top, topImported)
	if err != nil {
		return requestClassification{}, err
	}
	if onFork {
		return requestClassification{sanity: maybe, topImported: topJustified}, nil
	}

	for _, id := range []chain.BlockID{lastKnown, target} {
		onFork, err = h.isOnFork(top, id)
		if err != nil {
			return requestClassification{}, err
		}
		if onFork {
			return requestClassification{sanity: maybe, topImported: topImported}, nil
		}
	}

	if h.sessionInfo.SessionID(target.Number) > h.sessionInfo.SessionID(topJustified.Number)+chain.SessionID(ChunkSessionLimit) {
		return requestClassification{sanity: maybe, topImported: topImported}, nil
	}
	return requestClassification{sanity: sane, topImported: topImported}, nil
}

// isOnFork reports whether the block is provably not on our finalized chain.
func (h *Handler) isOnFork(top chain.Justification, id chain.BlockID) (bool, error) {
	if id.Number > top.ID().Number {
		return false, nil
	}
	status, err := h.chainStatus.FinalizedAt(id.Number)
	if err != nil {
		return false, NewChainStatusErrorf("could not read finalized block at %d: %w", id.Number, err)
	}
	finalized, ok := status.ID()
	if !ok {
		return false, NewChainStatusExtErrorf("block %d is not finalized below the top finalized block %v", id.Number, top.ID())
	}
	return finalized != id, nil
}

// baseResponse walks our finalized chain from the peer's top justification,
// one justification at a time, for at most ChunkSessionLimit sessions past
// the session of that justification. For each justification it emits the
// blocks the peer is missing, the headers between the previous and the
// current justification, and the justification itself. It returns the chunks
// and the last justified block sent, or topJustified if none was.
func (h *Handler) baseResponse(top chain.Justification, topJustified, topImported chain.BlockID) ([]chunk, chain.BlockID, error) {
	var chunks []chunk
	lastSession := h.sessionInfo.SessionID(topJustified.Number) + chain.SessionID(ChunkSessionLimit)
	from := topJustified
	for {
		justification, err := h.nextJustification(top, from.Number)
		if err != nil {
			return nil, from, err
		}
		if justification == nil {
			break
		}
		id := justification.ID()
		if h.sessionInfo.SessionID(id.Number) > lastSession {
			break
		}

		lower := from.Number
		if topImported.Number > lower {
			lower = topImported.Number
		}
		if id.Number > lower {
			headers, err := headersDown(h.chainStatus, id, lower)
			if err != nil {
				return nil, from, err
			}
			if headers == nil {
				return nil, from, NewChainStatusExtErrorf("justified block %v is not imported", id)
			}
			ascending := make([]chain.Header, len(headers))
			copy(ascending, headers)
			reverse(ascending)
			blocks, err := blocksOf(h.chainStatus, ascending)
			if err != nil {
				return nil, from, err
			}
			chunks = append(chunks,
				chunk{kind: blocksChunk, blocks: blocks},
				chunk{kind: headersChunk, headers: headers[1:]},
			)
		}
		chunks = append(chunks, chunk{kind: justificationChunk, justification: *justification})
		from = id
	}
	return chunks, from, nil
}

// nextJustification returns the highest justification within JustificationStep
// blocks above from, staying within the session of the block right after from.
// Without one, it falls back to the justification ending that session, or to
// our top justification if the session is not finalized yet. It returns nil
// if we have nothing above from.
func (h *Handler) nextJustification(top chain.Justification, from uint32) (*chain.Justification, error) {
	topNumber := top.ID().Number
	if from >= topNumber {
		return nil, nil
	}
	sessionEnd := h.sessionInfo.LastBlockOfSession(h.sessionInfo.SessionID(from + 1))
	upper := from + JustificationStep
	if sessionEnd < upper {
		upper = sessionEnd
	}
	if topNumber < upper {
		upper = topNumber
	}
	for number := upper; number > from; number-- {
		status, err := h.chainStatus.FinalizedAt(number)
		if err != nil {
			return nil, NewChainStatusErrorf("could not read finalized block at %d: %w", number, err)
		}
		if status.Kind == module.FinalizedWithJustification {
			return status.Justification, nil
		}
	}
	if sessionEnd > topNumber {
		return &top, nil
	}
	status, err := h.chainStatus.FinalizedAt(sessionEnd)
	if err != nil {
		return nil, NewChainStatusErrorf("could not read finalized block at %d: %w", sessionEnd, err)
	}
	if status.Kind != module.FinalizedWithJustification {
		return nil, MissingJustificationError{Number: sessionEnd}
	}
	return status.Justification, nil
}

// chunksToTarget returns the chunks that take the peer from base to the
// target along our imported branch: the headers the peer does not know, down
// to the block right above base, and the blocks from there up to the target.
// It returns nothing if we do not know the target or it does not descend
// from base.
func (h *Handler) chunksToTarget(base chain.BlockID, headersUpTo uint32, target chain.BlockID) ([]chunk, error) {
	if target.Number <= base.Number {
		return nil, nil
	}
	headers, err := headersDown(h.chainStatus, target, base.Number)
	if err != nil || headers == nil {
		return nil, err
	}
	if parent, _ := headers[len(headers)-1].ParentID(); parent != base {
		return nil, nil
	}

	var unknown []chain.Header
	for _, header := range headers {
		if header.Number <= headersUpTo {
			unknown = append(unknown, header)
		}
	}
	ascending := make([]chain.Header, len(headers))
	copy(ascending, headers)
	reverse(ascending)
	blocks, err := blocksOf(h.chainStatus, ascending)
	if err != nil {
		return nil, err
	}

	return []chunk{
		{kind: headersChunk, headers: unknown},
		{kind: blocksChunk, blocks: blocks},
	}, nil
}

// intoResponse flattens the chunks, keeping their relative order within each
// kind. It returns nil if there is nothing to send.
func intoResponse(chunks []chunk) messages.NetworkData {
	var response messages.RequestResponse
	for _, c := range chunks {
		switch c.kind {
		case blocksChunk:
			response.Blocks = append(response.Blocks, c.blocks...)
		case headersChunk:
			response.Headers = append(response.Headers, c.headers...)
		case justificationChunk:
			response.Justifications = append(response.Justifications, c.justification.Unverified())
		}
	}
	if len(response.Justifications) == 0 && len(response.Headers) == 0 && len(response.Blocks) == 0 {
		return nil
	}
	return &response
}
