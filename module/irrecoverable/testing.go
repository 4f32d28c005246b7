package irrecoverable

import (
	"context"
	"testing"
)

// MockSignalerContext fails the test when an irrecoverable error is thrown.
type MockSignalerContext struct {
	context.Context
	t *testing.T
}

var _ SignalerContext = (*MockSignalerContext)(nil)

func (m MockSignalerContext) sealed() {}

func (m MockSignalerContext) Throw(err error) {
	m.t.Fatalf("mock signaler context received error: %v", err)
}

// NewMockSignalerContextWithCancel returns a mock signaler context derived
// from parent together with its cancel function.
func NewMockSignalerContextWithCancel(t *testing.T, parent context.Context) (*MockSignalerContext, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	return &MockSignalerContext{Context: ctx, t: t}, cancel
}
