package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/finalitylabs/blocksync/model/chain"
)

// InsertJustification stores the finality proof of the block with the given hash.
func InsertJustification(hash chain.Hash, proof []byte) func(*badger.Txn) error {
	return insert(makePrefix(codeJustification, hash), proof)
}

func RetrieveJustification(hash chain.Hash, proof *[]byte) func(*badger.Txn) error {
	return retrieve(makePrefix(codeJustification, hash), proof)
}

func JustificationExists(hash chain.Hash, exists *bool) func(*badger.Txn) error {
	return check(makePrefix(codeJustification, hash), exists)
}

// IndexFinalizedNumber records the hash of the finalized block at the given number.
func IndexFinalizedNumber(number uint32, hash chain.Hash) func(*badger.Txn) error {
	return insert(makePrefix(codeFinalizedNumber, number), hash)
}

func LookupFinalizedNumber(number uint32, hash *chain.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeFinalizedNumber, number), hash)
}

// UpdateTopFinalized points to the highest finalized block with a justification.
func UpdateTopFinalized(id chain.BlockID) func(*badger.Txn) error {
	return upsert(makePrefix(codeTopFinalized), id)
}

func RetrieveTopFinalized(id *chain.BlockID) func(*badger.Txn) error {
	return retrieve(makePrefix(codeTopFinalized), id)
}

// InsertGenesis records the genesis block id. It fails with
// storage.ErrAlreadyExists on an initialized database.
func InsertGenesis(id chain.BlockID) func(*badger.Txn) error {
	return insert(makePrefix(codeGenesis), id)
}

func RetrieveGenesis(id *chain.BlockID) func(*badger.Txn) error {
	return retrieve(makePrefix(codeGenesis), id)
}
