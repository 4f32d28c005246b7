package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
)

const (
	// codes for special database markers
	codeGenesis      = 1
	codeTopFinalized = 2

	// codes for entities keyed by block hash
	codeHeader        = 10
	codeBody          = 11
	codeJustification = 12

	// codes for indexes
	codeFinalizedNumber = 20
	codeChild           = 21
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case chain.Hash:
		return i[:]
	case []byte:
		return i
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
