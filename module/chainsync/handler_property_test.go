package chainsync

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

// Whatever the order in which justifications arrive and blocks get imported,
// the top finalized block never goes down and the finalized chain has no gaps.
func TestFinalizationMonotonic(t *testing.T) {
	genesis := unittest.GenesisFixture()
	branch := unittest.BranchFixture(genesis, 60)

	rapid.Check(t, func(tt *rapid.T) {
		backend := unittest.NewBackend(genesis)
		var pending []chain.Header
		backend.OnImported(func(header chain.Header) {
			pending = append(pending, header)
		})
		handler, err := NewHandler(
			unittest.Logger(),
			DefaultConfig(),
			metrics.NewNoopCollector(),
			backend,
			unittest.NewVerifier(),
			backend,
			backend,
			unittest.SessionBoundaryInfoFixture(testSessionPeriod),
		)
		require.NoError(tt, err)

		imported := 0
		var top uint32
		steps := rapid.IntRange(1, 150).Draw(tt, "steps")
		for i := 0; i < steps; i++ {
			if imported < len(branch) && rapid.Bool().Draw(tt, "import") {
				backend.ImportBlock(unittest.BlockFixture(branch[imported]))
				imported++
				for _, header := range pending {
					require.NoError(tt, handler.BlockImported(header))
				}
				pending = nil
			} else {
				index := rapid.IntRange(0, len(branch)-1).Draw(tt, "justified")
				_, err := handler.HandleJustification(unittest.UnverifiedJustificationFixture(branch[index]), nil)
				require.NoError(tt, err)
			}

			justification, err := backend.TopFinalized()
			require.NoError(tt, err)
			current := justification.ID().Number
			require.GreaterOrEqual(tt, current, top)
			require.LessOrEqual(tt, int(current), imported)
			top = current

			for number := uint32(1); number <= top; number++ {
				status, err := backend.FinalizedAt(number)
				require.NoError(tt, err)
				id, ok := status.ID()
				require.True(tt, ok)
				require.Equal(tt, branch[number-1].ID(), id)
			}
		}
	})
}
