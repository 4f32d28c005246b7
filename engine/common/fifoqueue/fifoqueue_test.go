package fifoqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifoQueue_Order(t *testing.T) {
	queue, err := NewFifoQueue[int]()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.True(t, queue.Push(i))
	}
	assert.Equal(t, 5, queue.Len())

	for i := 0; i < 5; i++ {
		v, ok := queue.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := queue.Pop()
	assert.False(t, ok)
}

func TestFifoQueue_Capacity(t *testing.T) {
	var lengths []int
	queue, err := NewFifoQueue(
		WithCapacity[string](2),
		WithLengthObserver[string](func(l int) { lengths = append(lengths, l) }),
	)
	require.NoError(t, err)

	assert.True(t, queue.Push("a"))
	assert.True(t, queue.Push("b"))
	assert.False(t, queue.Push("c"))

	v, ok := queue.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, []int{1, 2, 1}, lengths)
}

func TestFifoQueue_InvalidOptions(t *testing.T) {
	_, err := NewFifoQueue(WithCapacity[int](0))
	assert.Error(t, err)
	_, err = NewFifoQueue(WithLengthObserver[int](nil))
	assert.Error(t, err)
}
