package chainsync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/forest"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

const testSessionPeriod = 20

// node bundles a handler with its in-memory database.
type node struct {
	handler  *Handler
	backend  *unittest.Backend
	verifier *unittest.Verifier
	imported []chain.Header
}

func newNode(s *suite.Suite, genesis chain.Header, branch []chain.Header) *node {
	n := &node{
		backend:  unittest.NewBackend(genesis),
		verifier: unittest.NewVerifier(),
	}
	n.backend.ImportBranch(branch)
	n.backend.OnImported(func(header chain.Header) {
		n.imported = append(n.imported, header)
	})

	var err error
	n.handler, err = NewHandler(
		unittest.Logger(),
		DefaultConfig(),
		metrics.NewNoopCollector(),
		n.backend,
		n.verifier,
		n.backend,
		n.backend,
		unittest.SessionBoundaryInfoFixture(testSessionPeriod),
	)
	s.Require().NoError(err)
	return n
}

// justify hands the handler justifications of the given blocks, except for
// those skip returns true for.
func (n *node) justify(s *suite.Suite, branch []chain.Header, skip func(number uint32) bool) {
	for _, header := range branch {
		if skip != nil && skip(header.Number) {
			continue
		}
		_, err := n.handler.HandleJustification(unittest.UnverifiedJustificationFixture(header), nil)
		s.Require().NoError(err)
	}
}

// processImports reports the blocks imported since the last call to the handler.
func (n *node) processImports(s *suite.Suite) {
	for len(n.imported) > 0 {
		header := n.imported[0]
		n.imported = n.imported[1:]
		s.Require().NoError(n.handler.BlockImported(header))
	}
}

func (n *node) topFinalized(s *suite.Suite) chain.BlockID {
	top, err := n.backend.TopFinalized()
	s.Require().NoError(err)
	return top.ID()
}

func (n *node) state(s *suite.Suite) messages.State {
	state, err := n.handler.State()
	s.Require().NoError(err)
	return state
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

type HandlerSuite struct {
	suite.Suite
	genesis chain.Header
	peer    chain.PeerID
}

func (hs *HandlerSuite) SetupTest() {
	hs.genesis = unittest.GenesisFixture()
	hs.peer = unittest.PeerIDFixture()
}

func (hs *HandlerSuite) TestInitializesForestFromImportedBlocks() {
	branch := unittest.BranchFixture(hs.genesis, 5)
	n := newNode(&hs.Suite, hs.genesis, branch)

	hs.Assert().Equal(5, n.handler.forest.Len())
	hs.Assert().Equal(hs.genesis.ID(), n.handler.forest.Root())

	// imported blocks only wait for a justification
	n.justify(&hs.Suite, branch[4:], nil)
	hs.Assert().Equal(branch[4].ID(), n.topFinalized(&hs.Suite))
}

func (hs *HandlerSuite) TestJustificationFinalizesInOrder() {
	branch := unittest.BranchFixture(hs.genesis, 5)
	n := newNode(&hs.Suite, hs.genesis, branch)

	id, err := n.handler.HandleJustification(unittest.UnverifiedJustificationFixture(branch[1]), &hs.peer)
	hs.Require().NoError(err)
	hs.Require().NotNil(id)
	hs.Assert().Equal(branch[1].ID(), *id)
	hs.Assert().Equal(branch[1].ID(), n.topFinalized(&hs.Suite))

	// the same justification again is not new
	id, err = n.handler.HandleJustification(unittest.UnverifiedJustificationFixture(branch[1]), &hs.peer)
	hs.Require().NoError(err)
	hs.Assert().Nil(id)
}

// flakyFinalizer fails the first failures calls and then delegates.
type flakyFinalizer struct {
	module.Finalizer
	failures int
}

func (f *flakyFinalizer) Finalize(justification chain.Justification) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("database unavailable")
	}
	return f.Finalizer.Finalize(justification)
}

func (hs *HandlerSuite) TestFailedFinalizationIsRetried() {
	branch := unittest.BranchFixture(hs.genesis, 3)
	backend := unittest.NewBackend(hs.genesis)
	backend.ImportBranch(branch)
	handler, err := NewHandler(
		unittest.Logger(),
		DefaultConfig(),
		metrics.NewNoopCollector(),
		backend,
		unittest.NewVerifier(),
		&flakyFinalizer{Finalizer: backend, failures: 1},
		backend,
		unittest.SessionBoundaryInfoFixture(testSessionPeriod),
	)
	hs.Require().NoError(err)

	justification := unittest.UnverifiedJustificationFixture(branch[1])
	_, err = handler.HandleJustification(justification, &hs.peer)
	var finalizerErr FinalizerError
	hs.Require().ErrorAs(err, &finalizerErr)

	// the forest still holds the block above the unchanged root
	top, err := backend.TopFinalized()
	hs.Require().NoError(err)
	hs.Assert().Equal(hs.genesis.ID(), top.ID())
	hs.Assert().Equal(hs.genesis.ID(), handler.forest.Root())
	hs.Assert().NotNil(handler.forest.Finalizable(branch[1].Number))

	// handing in the same justification again finalizes the block
	_, err = handler.HandleJustification(justification, &hs.peer)
	hs.Require().NoError(err)
	top, err = backend.TopFinalized()
	hs.Require().NoError(err)
	hs.Assert().Equal(branch[1].ID(), top.ID())
	hs.Assert().Equal(branch[1].ID(), handler.forest.Root())
}

func (hs *HandlerSuite) TestJustificationWaitsForImport() {
	branch := unittest.BranchFixture(hs.genesis, 5)
	n := newNode(&hs.Suite, hs.genesis, branch[:2])

	id, err := n.handler.HandleJustification(unittest.UnverifiedJustificationFixture(branch[3]), &hs.peer)
	hs.Require().NoError(err)
	hs.Require().NotNil(id)
	hs.Assert().Equal(hs.genesis.ID(), n.topFinalized(&hs.Suite))

	interest := n.handler.BlockState(branch[3].ID())
	hs.Assert().Equal(forest.TopRequired, interest.Kind)
	hs.Assert().Equal([]chain.PeerID{hs.peer}, interest.KnowMost)

	n.backend.ImportBranch(branch[2:4])
	n.processImports(&hs.Suite)
	hs.Assert().Equal(branch[3].ID(), n.topFinalized(&hs.Suite))
	hs.Assert().Equal(forest.Uninterested, n.handler.BlockState(branch[3].ID()).Kind)
}

func (hs *HandlerSuite) TestSessionEndFinalizesSkippedBlocks() {
	branch := unittest.BranchFixture(hs.genesis, 25)
	n := newNode(&hs.Suite, hs.genesis, branch)

	n.justify(&hs.Suite, branch[:5], nil)
	hs.Require().Equal(uint32(5), n.topFinalized(&hs.Suite).Number)

	// block 19 ends the first session
	n.justify(&hs.Suite, branch[18:19], nil)
	hs.Assert().Equal(uint32(19), n.topFinalized(&hs.Suite).Number)

	status, err := n.backend.FinalizedAt(10)
	hs.Require().NoError(err)
	id, ok := status.ID()
	hs.Require().True(ok)
	hs.Assert().Equal(branch[9].ID(), id)
}

func (hs *HandlerSuite) TestInvalidJustification() {
	branch := unittest.BranchFixture(hs.genesis, 3)
	n := newNode(&hs.Suite, hs.genesis, branch)
	n.verifier.Reject(branch[0].ID())

	id, err := n.handler.HandleJustification(unittest.UnverifiedJustificationFixture(branch[0]), &hs.peer)
	hs.Assert().True(IsVerifierError(err))
	hs.Assert().Nil(id)
	hs.Assert().Equal(hs.genesis.ID(), n.topFinalized(&hs.Suite))
}

func (hs *HandlerSuite) TestHandleJustificationsKeepsHighest() {
	branch := unittest.BranchFixture(hs.genesis, 6)
	n := newNode(&hs.Suite, hs.genesis, branch)
	n.verifier.Reject(branch[2].ID())

	justifications := []chain.UnverifiedJustification{
		unittest.UnverifiedJustificationFixture(branch[4]),
		unittest.UnverifiedJustificationFixture(branch[2]),
		unittest.UnverifiedJustificationFixture(branch[1]),
	}
	highest, err := n.handler.HandleJustifications(justifications, &hs.peer)
	hs.Assert().True(IsVerifierError(err))
	hs.Require().NotNil(highest)
	hs.Assert().Equal(branch[4].ID(), *highest)
	hs.Assert().Equal(branch[4].ID(), n.topFinalized(&hs.Suite))
}

func (hs *HandlerSuite) TestJustificationOnFork() {
	n := newNode(&hs.Suite, hs.genesis, nil)
	other := unittest.BranchFixture(chain.Genesis([]byte("other")), 1)[0]

	_, err := n.handler.HandleJustification(unittest.UnverifiedJustificationFixture(other), &hs.peer)
	hs.Assert().True(IsForestError(err))
}

func (hs *HandlerSuite) TestHandleInternalRequest() {
	n := newNode(&hs.Suite, hs.genesis, nil)
	id := unittest.BlockIDFixture(3)

	required, err := n.handler.HandleInternalRequest(id)
	hs.Require().NoError(err)
	hs.Assert().True(required)

	required, err = n.handler.HandleInternalRequest(id)
	hs.Require().NoError(err)
	hs.Assert().False(required)

	hs.Assert().Equal(forest.TopRequired, n.handler.BlockState(id).Kind)
}

func (hs *HandlerSuite) TestStateOfPeerAhead() {
	branch := unittest.BranchFixture(hs.genesis, 30)
	ahead := newNode(&hs.Suite, hs.genesis, branch)
	ahead.justify(&hs.Suite, branch, nil)
	behind := newNode(&hs.Suite, hs.genesis, nil)

	action, err := behind.handler.HandleState(ahead.state(&hs.Suite), hs.peer)
	hs.Require().NoError(err)
	hs.Assert().Equal(HighestJustified, action.Kind)
	hs.Assert().Equal(branch[29].ID(), action.Justified)

	// the peer is now known to have the block
	interest := behind.handler.BlockState(branch[29].ID())
	hs.Assert().Equal(forest.TopRequired, interest.Kind)
	hs.Assert().Equal([]chain.PeerID{hs.peer}, interest.KnowMost)
	hs.Assert().Equal(messages.NewLowestID(branch[28].ID()), interest.BranchKnowledge)

	// a repeated state does not raise our knowledge
	action, err = behind.handler.HandleState(ahead.state(&hs.Suite), hs.peer)
	hs.Require().NoError(err)
	hs.Assert().Equal(Noop, action.Kind)
}

func (hs *HandlerSuite) TestStateOfPeerBehindInSameSession() {
	branch := unittest.BranchFixture(hs.genesis, 15)
	n := newNode(&hs.Suite, hs.genesis, branch)
	n.justify(&hs.Suite, branch, nil)

	peerState := messages.State{TopJustification: unittest.UnverifiedJustificationFixture(branch[4])}
	action, err := n.handler.HandleState(peerState, hs.peer)
	hs.Require().NoError(err)
	hs.Require().Equal(Response, action.Kind)

	response, ok := action.Response.(*messages.StateBroadcastResponse)
	hs.Require().True(ok)
	hs.Assert().Equal(branch[14].ID(), response.Justification.ID())
	hs.Assert().Nil(response.Extra)
}

func (hs *HandlerSuite) TestStateOfPeerOneSessionBehind() {
	branch := unittest.BranchFixture(hs.genesis, 25)
	n := newNode(&hs.Suite, hs.genesis, branch)
	n.justify(&hs.Suite, branch, nil)

	action, err := n.handler.HandleState(messages.State{
		TopJustification: unittest.UnverifiedJustificationFixture(branch[4]),
	}, hs.peer)
	hs.Require().NoError(err)
	hs.Require().Equal(Response, action.Kind)

	response := action.Response.(*messages.StateBroadcastResponse)
	hs.Assert().Equal(uint32(19), response.Justification.ID().Number)
	hs.Require().NotNil(response.Extra)
	hs.Assert().Equal(branch[24].ID(), response.Extra.ID())
}

// A peer at genesis talking to a node with 43 finalized blocks gets the
// justifications ending its session and the next one, blocks 19 and 39.
func (hs *HandlerSuite) TestStateOfPeerManySessionsBehind() {
	branch := unittest.BranchFixture(hs.genesis, 43)
	n := newNode(&hs.Suite, hs.genesis, branch)
	n.justify(&hs.Suite, branch, nil)
	hs.Require().Equal(branch[42].ID(), n.topFinalized(&hs.Suite))

	genesisState := messages.State{TopJustification: unittest.UnverifiedJustificationFixture(hs.genesis)}
	action, err := n.handler.HandleState(genesisState, hs.peer)
	hs.Require().NoError(err)
	hs.Require().Equal(Response, action.Kind)

	response := action.Response.(*messages.StateBroadcastResponse)
	hs.Assert().Equal(branch[18].ID(), response.Justification.ID())
	hs.Require().NotNil(response.Extra)
	hs.Assert().Equal(branch[38].ID(), response.Extra.ID())
}

func (hs *HandlerSuite) TestStateResponseNeverExceedsTwoSessions() {
	branch := unittest.BranchFixture(hs.genesis, 100)
	n := newNode(&hs.Suite, hs.genesis, branch)
	n.justify(&hs.Suite, branch, nil)
	info := unittest.SessionBoundaryInfoFixture(testSessionPeriod)

	for _, header := range append([]chain.Header{hs.genesis}, branch...) {
		peerState := messages.State{TopJustification: unittest.UnverifiedJustificationFixture(header)}
		action, err := n.handler.HandleState(peerState, hs.peer)
		hs.Require().NoError(err)
		if action.Kind != Response {
			continue
		}
		response := action.Response.(*messages.StateBroadcastResponse)
		limit := info.LastBlockOfSession(info.SessionID(header.Number) + 2)
		hs.Assert().LessOrEqual(response.Justification.ID().Number, limit)
		if response.Extra != nil {
			hs.Assert().LessOrEqual(response.Extra.ID().Number, limit)
		}
	}
}

func (hs *HandlerSuite) TestStateWithMissingSessionJustification() {
	branch := unittest.BranchFixture(hs.genesis, 45)
	n := newNode(&hs.Suite, hs.genesis, branch)
	// every block up to 45 is finalized by its descendant, including block 19
	hs.Require().NoError(n.backend.Finalize(unittest.JustificationFixture(branch[44])))

	genesisState := messages.State{TopJustification: unittest.UnverifiedJustificationFixture(hs.genesis)}
	_, err := n.handler.HandleState(genesisState, hs.peer)
	hs.Assert().True(IsMissingJustificationError(err))
}

func (hs *HandlerSuite) TestResponseWithUnimportableBlockIsRejected() {
	branch := unittest.BranchFixture(hs.genesis, 5)
	n := newNode(&hs.Suite, hs.genesis, nil)

	// the header of block 3 is unknown, so block 4 cannot be imported
	headers := []chain.Header{branch[1], branch[0]}
	blocks := []chain.Block{
		unittest.BlockFixture(branch[0]),
		unittest.BlockFixture(branch[1]),
		unittest.BlockFixture(branch[3]),
	}
	_, err := n.handler.HandleRequestResponse(nil, headers, blocks, hs.peer)
	hs.Assert().True(IsBlockNotImportableError(err))
	hs.Assert().Empty(n.imported)
}

func (hs *HandlerSuite) TestResponseSkipsKnownBlocks() {
	branch := unittest.BranchFixture(hs.genesis, 4)
	n := newNode(&hs.Suite, hs.genesis, branch[:2])

	headers := []chain.Header{branch[3], branch[2]}
	var blocks []chain.Block
	for _, header := range branch {
		blocks = append(blocks, unittest.BlockFixture(header))
	}
	_, err := n.handler.HandleRequestResponse(nil, headers, blocks, hs.peer)
	hs.Require().NoError(err)
	hs.Require().Len(n.imported, 2)
	hs.Assert().Equal(branch[2].ID(), n.imported[0].ID())
	hs.Assert().Equal(branch[3].ID(), n.imported[1].ID())
}

func (hs *HandlerSuite) TestResponseWithHeaderOnFork() {
	n := newNode(&hs.Suite, hs.genesis, nil)
	other := unittest.BranchFixture(chain.Genesis([]byte("other")), 1)[0]

	_, err := n.handler.HandleRequestResponse(nil, []chain.Header{other}, nil, hs.peer)
	hs.Assert().True(IsForestError(err))
}
