package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/storage"
	bstorage "github.com/finalitylabs/blocksync/storage/badger"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestChain_Bootstrap(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		genesis := unittest.GenesisFixture()
		c := bstorage.NewChain(metrics.NewNoopCollector(), db)

		require.NoError(t, c.Bootstrap(unittest.JustificationFixture(genesis)))
		require.NoError(t, c.Bootstrap(unittest.JustificationFixture(genesis)), "bootstrap should be idempotent")

		err := c.Bootstrap(unittest.JustificationFixture(chain.Genesis([]byte("other"))))
		assert.ErrorIs(t, err, storage.ErrDataMismatch)

		top, err := c.TopFinalized()
		require.NoError(t, err)
		assert.Equal(t, unittest.JustificationFixture(genesis), top)

		status, err := c.FinalizedAt(0)
		require.NoError(t, err)
		assert.Equal(t, module.FinalizedWithJustification, status.Kind)

		block, err := c.Block(genesis.ID())
		require.NoError(t, err)
		require.NotNil(t, block)
		assert.Equal(t, genesis.ID(), block.ID())
	})
}

func TestChain_InsertBlock(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		genesis := unittest.GenesisFixture()
		c := bstorage.NewChain(metrics.NewNoopCollector(), db)
		require.NoError(t, c.Bootstrap(unittest.JustificationFixture(genesis)))

		branch := unittest.BranchFixture(genesis, 3)
		sibling := unittest.HeaderFixture(genesis)

		err := c.InsertBlock(unittest.BlockFixture(branch[1]))
		assert.ErrorIs(t, err, bstorage.ErrUnknownParent)

		blocks := make([]chain.Block, 0, len(branch))
		for _, header := range branch {
			block := unittest.BlockFixture(header)
			blocks = append(blocks, block)
			require.NoError(t, c.InsertBlock(block))
		}
		require.NoError(t, c.InsertBlock(unittest.BlockFixture(sibling)))

		err = c.InsertBlock(blocks[0])
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		for _, block := range blocks {
			actual, err := c.Block(block.ID())
			require.NoError(t, err)
			require.NotNil(t, actual)
			assert.Equal(t, block, *actual)
		}

		children, err := c.Children(genesis.ID())
		require.NoError(t, err)
		assert.ElementsMatch(t, []chain.Header{branch[0], sibling}, children)

		// a hash paired with the wrong number is unknown
		header, err := c.Header(chain.BlockID{Hash: branch[0].Hash(), Number: 7})
		require.NoError(t, err)
		assert.Nil(t, header)

		header, err = c.Header(unittest.BlockIDFixture(1))
		require.NoError(t, err)
		assert.Nil(t, header)

		status, err := c.FinalizedAt(1)
		require.NoError(t, err)
		assert.Equal(t, module.NotFinalized, status.Kind)
	})
}

func TestChain_ReadsAfterReopen(t *testing.T) {
	dir := t.TempDir()
	genesis := unittest.GenesisFixture()
	branch := unittest.BranchFixture(genesis, 2)

	db := unittest.BadgerDB(t, dir)
	c := bstorage.NewChain(metrics.NewNoopCollector(), db)
	require.NoError(t, c.Bootstrap(unittest.JustificationFixture(genesis)))
	for _, header := range branch {
		require.NoError(t, c.InsertBlock(unittest.BlockFixture(header)))
	}
	require.NoError(t, db.Close())

	db = unittest.BadgerDB(t, dir)
	defer db.Close()
	c = bstorage.NewChain(metrics.NewNoopCollector(), db)

	header, err := c.Header(branch[1].ID())
	require.NoError(t, err)
	require.NotNil(t, header)
	assert.Equal(t, branch[1], *header)
}
