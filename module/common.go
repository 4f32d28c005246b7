package module

import (
	"github.com/finalitylabs/blocksync/module/irrecoverable"
)

// ReadyDoneAware provides easy interface to wait for module startup and shutdown.
type ReadyDoneAware interface {
	// Ready returns a channel that is closed once startup has completed.
	Ready() <-chan struct{}

	// Done returns a channel that is closed once shutdown has completed.
	Done() <-chan struct{}
}

// Startable provides an interface to start a component. Once started, the
// component can be stopped by cancelling the given context.
type Startable interface {
	// Start starts the component. Any irrecoverable errors encountered while
	// the component is running are thrown with the given context.
	// Start must be called at most once.
	Start(irrecoverable.SignalerContext)
}
