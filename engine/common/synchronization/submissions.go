package synchronization

import (
	"errors"
	"fmt"

	"github.com/finalitylabs/blocksync/engine/common/fifoqueue"
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
)

// ErrSubmissionQueueFull is returned by Submit when the engine is not keeping
// up with submitted justifications.
var ErrSubmissionQueueFull = errors.New("justification submission queue is full")

// JustificationSubmissions lets other subsystems hand justifications they
// obtained elsewhere to the synchronization engine. It is safe for concurrent use.
type JustificationSubmissions struct {
	queue    *fifoqueue.FifoQueue[chain.UnverifiedJustification]
	notifier module.Notifier
}

func newJustificationSubmissions(capacity int) (*JustificationSubmissions, error) {
	queue, err := fifoqueue.NewFifoQueue(fifoqueue.WithCapacity[chain.UnverifiedJustification](capacity))
	if err != nil {
		return nil, fmt.Errorf("could not create submission queue: %w", err)
	}
	return &JustificationSubmissions{
		queue:    queue,
		notifier: module.NewNotifier(),
	}, nil
}

// Submit queues the justification for verification and handling. It does not block.
func (s *JustificationSubmissions) Submit(justification chain.UnverifiedJustification) error {
	if !s.queue.Push(justification) {
		return ErrSubmissionQueueFull
	}
	s.notifier.Notify()
	return nil
}

func (s *JustificationSubmissions) channel() <-chan struct{} {
	return s.notifier.Channel()
}

func (s *JustificationSubmissions) pop() (chain.UnverifiedJustification, bool) {
	return s.queue.Pop()
}
