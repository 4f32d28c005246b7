package codec

import (
	"fmt"

	"github.com/finalitylabs/blocksync/model/messages"
)

// Code is the first byte of every encoded message and selects the payload type.
type Code uint8

const (
	CodeMin Code = iota + 1

	CodeStateBroadcast
	CodeStateBroadcastResponse
	CodeRequest
	CodeRequestResponse

	CodeMax
)

func (c Code) Uint8() uint8 {
	return uint8(c)
}

// MessageCodeFromInterface returns the code and the type name of the given message.
func MessageCodeFromInterface(v interface{}) (Code, string, error) {
	s := fmt.Sprintf("%T", v)

	switch v.(type) {
	case *messages.StateBroadcast:
		return CodeStateBroadcast, s, nil
	case *messages.StateBroadcastResponse:
		return CodeStateBroadcastResponse, s, nil
	case *messages.Request:
		return CodeRequest, s, nil
	case *messages.RequestResponse:
		return CodeRequestResponse, s, nil
	default:
		return 0, "", fmt.Errorf("invalid encode type (%T)", v)
	}
}

// InterfaceFromMessageCode returns an empty message of the type selected by the code.
func InterfaceFromMessageCode(code Code) (messages.NetworkData, string, error) {
	switch code {
	case CodeStateBroadcast:
		var msg messages.StateBroadcast
		return &msg, fmt.Sprintf("%T", &msg), nil
	case CodeStateBroadcastResponse:
		var msg messages.StateBroadcastResponse
		return &msg, fmt.Sprintf("%T", &msg), nil
	case CodeRequest:
		var msg messages.Request
		return &msg, fmt.Sprintf("%T", &msg), nil
	case CodeRequestResponse:
		var msg messages.RequestResponse
		return &msg, fmt.Sprintf("%T", &msg), nil
	default:
		return nil, "", NewUnknownMsgCodeErr(code)
	}
}
