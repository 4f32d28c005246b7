package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/finalitylabs/blocksync/model/chain"
)

func InsertHeader(header chain.Header) func(*badger.Txn) error {
	return insert(makePrefix(codeHeader, header.Hash()), header)
}

func RetrieveHeader(hash chain.Hash, header *chain.Header) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeader, hash), header)
}

func HeaderExists(hash chain.Hash, exists *bool) func(*badger.Txn) error {
	return check(makePrefix(codeHeader, hash), exists)
}

// InsertBody stores the body of the block with the given hash.
func InsertBody(hash chain.Hash, body []byte) func(*badger.Txn) error {
	return insert(makePrefix(codeBody, hash), body)
}

func RetrieveBody(hash chain.Hash, body *[]byte) func(*badger.Txn) error {
	return retrieve(makePrefix(codeBody, hash), body)
}

// IndexChild records child as a child of parent. A block may have many children.
func IndexChild(parent chain.Hash, child chain.Hash) func(*badger.Txn) error {
	return insert(makePrefix(codeChild, parent, child), true)
}

// LookupChildren retrieves the hashes of all indexed children of the block.
func LookupChildren(parent chain.Hash, children *[]chain.Hash) func(*badger.Txn) error {
	*children = (*children)[:0]
	return keysWithPrefix(makePrefix(codeChild, parent), func(suffix []byte) {
		var child chain.Hash
		copy(child[:], suffix)
		*children = append(*children, child)
	})
}
