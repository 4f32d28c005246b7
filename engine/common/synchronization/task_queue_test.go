package synchronization

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestTaskQueue_PopsDueTasksInDeadlineOrder(t *testing.T) {
	clk := clock.NewMock()
	q := NewTaskQueue(clk)
	a := unittest.BlockIDFixture(1)
	b := unittest.BlockIDFixture(2)

	q.ScheduleIn(a, 10*time.Millisecond)
	q.ScheduleIn(b, 5*time.Millisecond)
	assert.Equal(t, 2, q.Len())

	_, ok := q.Pop()
	assert.False(t, ok)

	deadline, ok := q.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, clk.Now().Add(5*time.Millisecond), deadline)

	clk.Add(20 * time.Millisecond)
	id, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, b, id)
	id, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, a, id)
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_SameDeadlineKeepsScheduleOrder(t *testing.T) {
	clk := clock.NewMock()
	q := NewTaskQueue(clk)
	var ids []chain.BlockID
	for i := uint32(0); i < 5; i++ {
		id := unittest.BlockIDFixture(i)
		ids = append(ids, id)
		q.ScheduleIn(id, 0)
	}

	var popped []chain.BlockID
	for {
		id, ok := q.Pop()
		if !ok {
			break
		}
		popped = append(popped, id)
	}
	assert.Equal(t, ids, popped)
}

func TestTaskQueue_RescheduleReplacesDeadline(t *testing.T) {
	clk := clock.NewMock()
	q := NewTaskQueue(clk)
	a := unittest.BlockIDFixture(1)

	q.ScheduleIn(a, 5*time.Millisecond)
	q.ScheduleIn(a, 20*time.Millisecond)
	assert.Equal(t, 1, q.Len())

	clk.Add(10 * time.Millisecond)
	_, ok := q.Pop()
	assert.False(t, ok, "earlier deadline should have been replaced")

	deadline, ok := q.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, clk.Now().Add(10*time.Millisecond), deadline)

	clk.Add(10 * time.Millisecond)
	id, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, a, id)
	_, ok = q.Pop()
	assert.False(t, ok)

	// a later schedule may also move the deadline forward
	q.ScheduleIn(a, time.Second)
	q.ScheduleIn(a, 0)
	id, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, a, id)
	_, ok = q.NextDeadline()
	assert.False(t, ok)
}
