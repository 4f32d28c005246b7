package codec

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding indicates that the payload is not a well-formed envelope.
var ErrInvalidEncoding = errors.New("invalid message encoding")

// ErrUnknownMsgCode indicates that the message code byte is not a known code.
type ErrUnknownMsgCode struct {
	code Code
}

func (e ErrUnknownMsgCode) Error() string {
	return fmt.Sprintf("failed to decode message could not get interface from unknown message code: %d", e.code)
}

func NewUnknownMsgCodeErr(code Code) ErrUnknownMsgCode {
	return ErrUnknownMsgCode{code}
}

func IsErrUnknownMsgCode(err error) bool {
	var e ErrUnknownMsgCode
	return errors.As(err, &e)
}

// ErrMsgUnmarshal indicates that the payload could not be decoded into the
// type selected by its code.
type ErrMsgUnmarshal struct {
	code    Code
	msgType string
	err     error
}

func (e ErrMsgUnmarshal) Error() string {
	return fmt.Sprintf("failed to unmarshal message payload with message type %s and message code %d: %s", e.msgType, e.code, e.err)
}

func (e ErrMsgUnmarshal) Unwrap() error {
	return e.err
}

func NewMsgUnmarshalErr(code Code, msgType string, err error) ErrMsgUnmarshal {
	return ErrMsgUnmarshal{
		code:    code,
		msgType: msgType,
		err:     err,
	}
}

func IsErrMsgUnmarshal(err error) bool {
	var e ErrMsgUnmarshal
	return errors.As(err, &e)
}
