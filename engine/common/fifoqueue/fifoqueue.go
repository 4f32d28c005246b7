package fifoqueue

import (
	"fmt"
	mathbits "math/bits"
	"sync"

	"github.com/ef-ds/deque"
)

// FifoQueue is a concurrency-safe FIFO queue with an optional capacity.
// Elements pushed beyond the capacity are dropped, and Push reports it.
// The length observer is called with the new length after every change
// and must not block.
type FifoQueue[T any] struct {
	mu             sync.Mutex
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

type ConstructorOption[T any] func(*FifoQueue[T]) error

type QueueLengthObserver func(int)

// WithCapacity sets the max number of elements the queue can hold.
func WithCapacity[T any](capacity int) ConstructorOption[T] {
	return func(queue *FifoQueue[T]) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for Fifo queue must be positive")
		}
		queue.maxCapacity = capacity
		return nil
	}
}

func WithLengthObserver[T any](callback QueueLengthObserver) ConstructorOption[T] {
	return func(queue *FifoQueue[T]) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid QueueLengthObserver")
		}
		queue.lengthObserver = callback
		return nil
	}
}

func NewFifoQueue[T any](options ...ConstructorOption[T]) (*FifoQueue[T], error) {
	maxInt := 1<<(mathbits.UintSize-1) - 1

	queue := &FifoQueue[T]{
		maxCapacity:    maxInt,
		lengthObserver: func(int) {},
	}
	for _, opt := range options {
		err := opt(queue)
		if err != nil {
			return nil, fmt.Errorf("failed to apply constructor option to fifoqueue queue: %w", err)
		}
	}
	return queue, nil
}

// Push appends the element to the tail of the queue. It returns false if the
// queue is full and the element was dropped.
func (q *FifoQueue[T]) Push(element T) bool {
	q.mu.Lock()
	length := q.queue.Len()
	if length >= q.maxCapacity {
		q.mu.Unlock()
		return false
	}
	q.queue.PushBack(element)
	q.mu.Unlock()

	q.lengthObserver(length + 1)
	return true
}

// Pop removes and returns the head of the queue.
func (q *FifoQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	head, ok := q.queue.PopFront()
	length := q.queue.Len()
	q.mu.Unlock()

	if !ok {
		var zero T
		return zero, false
	}
	q.lengthObserver(length)
	return head.(T), true
}

func (q *FifoQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}
