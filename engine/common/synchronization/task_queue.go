package synchronization

import (
	"container/heap"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/finalitylabs/blocksync/model/chain"
)

type task struct {
	id  chain.BlockID
	at  time.Time
	seq uint64
}

// taskHeap orders tasks by deadline, then by the order they were scheduled in.
type taskHeap []task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(task)) }

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// TaskQueue is a delay queue of block ids. Scheduling an id that is already
// scheduled replaces the previous deadline.
//
// TaskQueue is not safe for concurrent use.
type TaskQueue struct {
	clock  clock.Clock
	tasks  taskHeap
	latest map[chain.BlockID]uint64
	seq    uint64
}

func NewTaskQueue(clock clock.Clock) *TaskQueue {
	return &TaskQueue{
		clock:  clock,
		latest: make(map[chain.BlockID]uint64),
	}
}

// ScheduleIn schedules the id to become due after the given delay.
func (q *TaskQueue) ScheduleIn(id chain.BlockID, delay time.Duration) {
	q.seq++
	q.latest[id] = q.seq
	heap.Push(&q.tasks, task{id: id, at: q.clock.Now().Add(delay), seq: q.seq})
}

// Pop returns the due id with the earliest deadline, if any.
func (q *TaskQueue) Pop() (chain.BlockID, bool) {
	now := q.clock.Now()
	for q.tasks.Len() > 0 {
		next := q.tasks[0]
		if next.at.After(now) {
			return chain.BlockID{}, false
		}
		heap.Pop(&q.tasks)
		if q.latest[next.id] != next.seq {
			// replaced by a later schedule
			continue
		}
		delete(q.latest, next.id)
		return next.id, true
	}
	return chain.BlockID{}, false
}

// NextDeadline returns the earliest deadline of the scheduled ids.
func (q *TaskQueue) NextDeadline() (time.Time, bool) {
	for q.tasks.Len() > 0 {
		next := q.tasks[0]
		if q.latest[next.id] == next.seq {
			return next.at, true
		}
		heap.Pop(&q.tasks)
	}
	return time.Time{}, false
}

// Len returns the number of scheduled ids.
func (q *TaskQueue) Len() int {
	return len(q.latest)
}
