package codec

import (
	"github.com/finalitylabs/blocksync/model/messages"
)

// Codec converts synchronization messages to and from their wire form.
type Codec interface {
	Encode(msg messages.NetworkData) ([]byte, error)
	Decode(data []byte) (messages.NetworkData, error)
}
