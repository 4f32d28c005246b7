package util

import (
	"github.com/finalitylabs/blocksync/module"
)

// AllReady returns a channel that is closed once every component is ready.
func AllReady(components ...module.ReadyDoneAware) <-chan struct{} {
	return AllClosed(channels(components, module.ReadyDoneAware.Ready)...)
}

// AllDone returns a channel that is closed once every component is done.
func AllDone(components ...module.ReadyDoneAware) <-chan struct{} {
	return AllClosed(channels(components, module.ReadyDoneAware.Done)...)
}

func channels(components []module.ReadyDoneAware, get func(module.ReadyDoneAware) <-chan struct{}) []<-chan struct{} {
	chans := make([]<-chan struct{}, 0, len(components))
	for _, c := range components {
		chans = append(chans, get(c))
	}
	return chans
}

// AllClosed returns a channel that is closed once every input channel is closed.
func AllClosed(chans ...<-chan struct{}) <-chan struct{} {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for _, ch := range chans {
			<-ch
		}
	}()
	return closed
}

// WaitError blocks until an error arrives or done is closed. An error that is
// already pending when done closes takes precedence.
func WaitError(errChan <-chan error, done <-chan struct{}) error {
	select {
	case err := <-errChan:
		return err
	case <-done:
	}
	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}
