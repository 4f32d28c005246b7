package irrecoverable

import (
	"context"
	"fmt"
	"runtime"
)

// Signaler forwards irrecoverable errors of worker routines to the component
// that started them. Only the first error is kept.
type Signaler struct {
	errChan chan error
}

func NewSignaler() (*Signaler, <-chan error) {
	errChan := make(chan error, 1)
	return &Signaler{errChan: errChan}, errChan
}

// Throw reports the error and terminates the calling goroutine. It is a
// replacement for panic and log.Fatal inside worker routines.
func (s *Signaler) Throw(err error) {
	select {
	case s.errChan <- err:
	default:
		// a previous error is already being handled
	}
	runtime.Goexit()
}

// SignalerContext is a context.Context that can also report irrecoverable errors.
type SignalerContext interface {
	context.Context
	Throw(err error)
	sealed()
}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (sc signalerCtx) sealed() {}

// WithSignaler wraps the given context into a SignalerContext. Errors thrown
// with the returned context are delivered on the returned channel.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return &signalerCtx{parent, sig}, errChan
}

// Throw throws the error on the given context if it is a SignalerContext and
// panics otherwise.
func Throw(ctx context.Context, err error) {
	signalerAbleContext, ok := ctx.(SignalerContext)
	if ok {
		signalerAbleContext.Throw(err)
	}
	panic(fmt.Sprintf("irrecoverable error signaler not found for context, unhandled error: %v", err))
}
