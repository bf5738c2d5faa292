package eventqueue

import (
	"container/heap"

	"github.com/iotaledger/hive.go/ds/generalheap"
)

// Task is the unit of work dispatched by the Scheduler. A Task runs to
// completion at its scheduled virtual time; "waiting" is modeled by scheduling
// a follow-up Task, never by blocking.
type Task interface {
	Execute()
}

// taskKey orders the queue by execution time, with insertion order breaking ties.
type taskKey struct {
	time int64
	seq  uint64
}

func (k taskKey) CompareTo(other taskKey) int {
	switch {
	case k.time < other.time:
		return -1
	case k.time > other.time:
		return 1
	case k.seq < other.seq:
		return -1
	case k.seq > other.seq:
		return 1
	default:
		return 0
	}
}

// ScheduledTask is the handle returned by Schedule. It allows the owner to
// cancel the pending task by tombstoning it; tombstoned tasks are skipped on
// dequeue without advancing the clock.
type ScheduledTask struct {
	task        Task
	time        int64
	invalidated bool
}

// Time returns the virtual time at which the task is due to execute.
func (s *ScheduledTask) Time() int64 {
	return s.time
}

// Invalidate tombstones the task so that it is dropped instead of executed.
func (s *ScheduledTask) Invalidate() {
	s.invalidated = true
}

// Invalidated returns true if the task has been tombstoned.
func (s *ScheduledTask) Invalidated() bool {
	return s.invalidated
}

// Scheduler keeps the virtual clock and the pending tasks of a simulation run.
// It is single-threaded: tasks execute one at a time in non-decreasing virtual
// time order, FIFO among tasks scheduled for the same time.
type Scheduler struct {
	inbox       generalheap.Heap[taskKey, *ScheduledTask]
	currentTime int64
	seq         uint64
}

// New creates an empty Scheduler at virtual time zero.
func New() *Scheduler {
	return &Scheduler{}
}

// CurrentTime returns the current virtual time in milliseconds.
func (s *Scheduler) CurrentTime() int64 {
	return s.currentTime
}

// Size returns the number of pending tasks, including tombstoned ones.
func (s *Scheduler) Size() int {
	return s.inbox.Len()
}

// Schedule enqueues the given task to execute after delay milliseconds of
// virtual time and returns its cancellation handle. A negative delay is
// treated as zero so that the clock stays monotonic.
func (s *Scheduler) Schedule(task Task, delay int64) *ScheduledTask {
	if delay < 0 {
		delay = 0
	}

	scheduledTask := &ScheduledTask{task: task, time: s.currentTime + delay}
	heap.Push(&s.inbox, &generalheap.HeapElement[taskKey, *ScheduledTask]{
		Key:   taskKey{time: scheduledTask.time, seq: s.seq},
		Value: scheduledTask,
	})
	s.seq++

	return scheduledTask
}

// RunNext pops the next pending task, advances the clock to its execution time
// and runs it. Tombstoned tasks are discarded without advancing the clock.
// It returns false once the queue is empty.
func (s *Scheduler) RunNext() bool {
	for s.inbox.Len() > 0 {
		element, isHeapElement := heap.Pop(&s.inbox).(*generalheap.HeapElement[taskKey, *ScheduledTask])
		if !isHeapElement {
			return false
		}

		scheduledTask := element.Value
		if scheduledTask.invalidated {
			continue
		}

		s.currentTime = scheduledTask.time
		scheduledTask.task.Execute()

		return true
	}

	return false
}
