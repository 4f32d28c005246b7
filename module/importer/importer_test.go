package importer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module/importer"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/metrics"
	bstorage "github.com/finalitylabs/blocksync/storage/badger"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestImporter_ImportsInOrder(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		genesis := unittest.GenesisFixture()
		chainDB := bstorage.NewChain(metrics.NewNoopCollector(), db)
		require.NoError(t, chainDB.Bootstrap(unittest.JustificationFixture(genesis)))

		branch := unittest.BranchFixture(genesis, 20)
		verifier := unittest.NewVerifier()

		var mu sync.Mutex
		var imported []chain.Header
		done := make(chan struct{})
		imp := importer.New(unittest.Logger(), chainDB, verifier, func(header chain.Header) {
			mu.Lock()
			defer mu.Unlock()
			imported = append(imported, header)
			if len(imported) == len(branch) {
				close(done)
			}
		})

		ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
		defer cancel()
		imp.Start(ctx)
		unittest.RequireCloseBefore(t, imp.Ready(), time.Second, "importer did not start")

		for _, header := range branch {
			imp.ImportBlock(unittest.BlockFixture(header))
		}
		// duplicates and orphans are dropped without a callback
		imp.ImportBlock(unittest.BlockFixture(branch[0]))
		imp.ImportBlock(unittest.BlockFixture(unittest.HeaderFixture(unittest.HeaderFixture(genesis))))

		unittest.RequireCloseBefore(t, done, 5*time.Second, "blocks were not imported")
		cancel()
		unittest.RequireCloseBefore(t, imp.Done(), time.Second, "importer did not stop")

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, branch, imported)

		// blocks handed in after shutdown are dropped
		imp.ImportBlock(unittest.BlockFixture(unittest.HeaderFixture(branch[19])))
	})
}

func TestImporter_RejectsInvalidHeader(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		genesis := unittest.GenesisFixture()
		chainDB := bstorage.NewChain(metrics.NewNoopCollector(), db)
		require.NoError(t, chainDB.Bootstrap(unittest.JustificationFixture(genesis)))

		invalid := unittest.HeaderFixture(genesis)
		valid := unittest.HeaderFixture(genesis)
		verifier := unittest.NewVerifier()
		verifier.Reject(invalid.ID())

		imported := make(chan chain.Header, 2)
		imp := importer.New(unittest.Logger(), chainDB, verifier, func(header chain.Header) {
			imported <- header
		})
		ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
		defer cancel()
		imp.Start(ctx)

		imp.ImportBlock(unittest.BlockFixture(invalid))
		imp.ImportBlock(unittest.BlockFixture(valid))

		select {
		case header := <-imported:
			assert.Equal(t, valid, header)
		case <-time.After(5 * time.Second):
			t.Fatal("valid block was not imported")
		}

		cancel()
		unittest.RequireCloseBefore(t, imp.Done(), time.Second, "importer did not stop")
		assert.Empty(t, imported)

		header, err := chainDB.Header(invalid.ID())
		require.NoError(t, err)
		assert.Nil(t, header)
	})
}
