package cbor

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/network/codec"
)

var defaultEncMode, _ = cbor.CanonicalEncOptions().EncMode()

var defaultDecMode, _ = cbor.DecOptions{
	// messages are shallow, reject deeply nested input from peers
	MaxNestedLevels: 16,
}.DecMode()

// Codec encodes messages as a single code byte followed by the CBOR
// encoding of the message.
type Codec struct{}

var _ codec.Codec = (*Codec)(nil)

func NewCodec() *Codec {
	return &Codec{}
}

// Encode returns the wire form of the message.
func (c *Codec) Encode(msg messages.NetworkData) ([]byte, error) {
	code, what, err := codec.MessageCodeFromInterface(msg)
	if err != nil {
		return nil, errors.Wrap(err, "could not determine envelope code")
	}

	payload, err := defaultEncMode.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode %s payload", what)
	}

	data := make([]byte, 0, len(payload)+1)
	data = append(data, code.Uint8())
	data = append(data, payload...)
	return data, nil
}

// Decode parses the wire form of a message. Expected errors:
//   - codec.ErrInvalidEncoding if the data is empty
//   - codec.ErrUnknownMsgCode if the code byte is unknown
//   - codec.ErrMsgUnmarshal if the payload does not decode into the selected type
func (c *Codec) Decode(data []byte) (messages.NetworkData, error) {
	if len(data) == 0 {
		return nil, codec.ErrInvalidEncoding
	}

	code := codec.Code(data[0])
	msg, what, err := codec.InterfaceFromMessageCode(code)
	if err != nil {
		return nil, err
	}

	err = defaultDecMode.Unmarshal(data[1:], msg)
	if err != nil {
		return nil, codec.NewMsgUnmarshalErr(code, what, err)
	}

	return msg, nil
}
