package operation

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/storage"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestHeaderInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		header := unittest.HeaderFixture(unittest.GenesisFixture())

		require.NoError(t, db.Update(InsertHeader(header)))

		var actual chain.Header
		require.NoError(t, db.View(RetrieveHeader(header.Hash(), &actual)))
		assert.Equal(t, header, actual)
		assert.Equal(t, header.ID(), actual.ID())

		var exists bool
		require.NoError(t, db.View(HeaderExists(header.Hash(), &exists)))
		assert.True(t, exists)

		err := db.Update(InsertHeader(header))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})
}

func TestRetrieveMissing(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var header chain.Header
		err := db.View(RetrieveHeader(unittest.HashFixture(), &header))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		var exists bool
		require.NoError(t, db.View(JustificationExists(unittest.HashFixture(), &exists)))
		assert.False(t, exists)
	})
}

func TestLookupChildren(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		parent := unittest.GenesisFixture()
		first := unittest.HeaderFixture(parent)
		second := unittest.HeaderFixture(parent)
		other := unittest.HeaderFixture(first)

		require.NoError(t, db.Update(func(tx *badger.Txn) error {
			for _, op := range []func(*badger.Txn) error{
				IndexChild(parent.Hash(), first.Hash()),
				IndexChild(parent.Hash(), second.Hash()),
				IndexChild(first.Hash(), other.Hash()),
			} {
				if err := op(tx); err != nil {
					return err
				}
			}
			return nil
		}))

		var children []chain.Hash
		require.NoError(t, db.View(LookupChildren(parent.Hash(), &children)))
		assert.ElementsMatch(t, []chain.Hash{first.Hash(), second.Hash()}, children)

		require.NoError(t, db.View(LookupChildren(second.Hash(), &children)))
		assert.Empty(t, children)
	})
}

func TestFinalizationIndex(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		genesis := unittest.GenesisFixture()
		header := unittest.HeaderFixture(genesis)

		require.NoError(t, db.Update(IndexFinalizedNumber(0, genesis.Hash())))
		require.NoError(t, db.Update(IndexFinalizedNumber(1, header.Hash())))
		require.NoError(t, db.Update(UpdateTopFinalized(genesis.ID())))
		require.NoError(t, db.Update(UpdateTopFinalized(header.ID())))
		require.NoError(t, db.Update(InsertJustification(header.Hash(), []byte("proof"))))

		var hash chain.Hash
		require.NoError(t, db.View(LookupFinalizedNumber(1, &hash)))
		assert.Equal(t, header.Hash(), hash)

		err := db.Update(IndexFinalizedNumber(1, genesis.Hash()))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		var top chain.BlockID
		require.NoError(t, db.View(RetrieveTopFinalized(&top)))
		assert.Equal(t, header.ID(), top)

		var proof []byte
		require.NoError(t, db.View(RetrieveJustification(header.Hash(), &proof)))
		assert.Equal(t, []byte("proof"), proof)
	})
}

func TestCodecRoundTrip(t *testing.T) {
	block := unittest.BlockFixture(unittest.HeaderFixture(unittest.GenesisFixture()))

	val, err := encodeEntity(block)
	require.NoError(t, err)

	var decoded chain.Block
	require.NoError(t, decodeValue(val, &decoded))
	assert.Equal(t, block, decoded)

	err = decodeValue([]byte{0xff, 0xff, 0xff}, &decoded)
	assert.ErrorIs(t, err, errUncompressedValue)
}
