package eventqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingTask struct {
	name     string
	schedule *Scheduler
	trace    *[]string
	times    *[]int64
}

func (t *recordingTask) Execute() {
	*t.trace = append(*t.trace, t.name)
	*t.times = append(*t.times, t.schedule.CurrentTime())
}

func newRecorder(s *Scheduler, trace *[]string, times *[]int64) func(name string) Task {
	return func(name string) Task {
		return &recordingTask{name: name, schedule: s, trace: trace, times: times}
	}
}

func TestScheduler_TimeOrder(t *testing.T) {
	s := New()

	var trace []string
	var times []int64
	task := newRecorder(s, &trace, &times)

	s.Schedule(task("c"), 30)
	s.Schedule(task("a"), 10)
	s.Schedule(task("b"), 20)

	for s.RunNext() {
	}

	require.Equal(t, []string{"a", "b", "c"}, trace)
	require.Equal(t, []int64{10, 20, 30}, times)
	require.EqualValues(t, 30, s.CurrentTime())
}

func TestScheduler_FIFOTieBreak(t *testing.T) {
	s := New()

	var trace []string
	var times []int64
	task := newRecorder(s, &trace, &times)

	for _, name := range []string{"first", "second", "third", "fourth"} {
		s.Schedule(task(name), 5)
	}

	for s.RunNext() {
	}

	require.Equal(t, []string{"first", "second", "third", "fourth"}, trace)
}

func TestScheduler_RelativeDelays(t *testing.T) {
	s := New()

	var trace []string
	var times []int64
	task := newRecorder(s, &trace, &times)

	// A task scheduled during execution is delayed relative to the current
	// virtual time, not the enqueue time of its parent.
	s.Schedule(taskFunc(func() {
		s.Schedule(task("child"), 7)
	}), 3)

	for s.RunNext() {
	}

	require.Equal(t, []string{"child"}, trace)
	require.Equal(t, []int64{10}, times)
}

func TestScheduler_Tombstone(t *testing.T) {
	s := New()

	var trace []string
	var times []int64
	task := newRecorder(s, &trace, &times)

	cancelled := s.Schedule(task("cancelled"), 10)
	s.Schedule(task("kept"), 20)
	cancelled.Invalidate()

	require.True(t, cancelled.Invalidated())

	for s.RunNext() {
	}

	require.Equal(t, []string{"kept"}, trace)
	require.EqualValues(t, 20, s.CurrentTime())
}

func TestScheduler_MonotonicClock(t *testing.T) {
	s := New()

	var trace []string
	var times []int64
	task := newRecorder(s, &trace, &times)

	delays := []int64{40, 3, 19, 3, 0, 77, 40}
	for _, delay := range delays {
		s.Schedule(task("t"), delay)
	}

	for s.RunNext() {
	}

	require.Len(t, times, len(delays))
	for i := 1; i < len(times); i++ {
		require.GreaterOrEqual(t, times[i], times[i-1])
	}
}

func TestScheduler_NegativeDelayClamped(t *testing.T) {
	s := New()

	var trace []string
	var times []int64
	task := newRecorder(s, &trace, &times)

	s.Schedule(taskFunc(func() {
		s.Schedule(task("clamped"), -5)
	}), 10)

	for s.RunNext() {
	}

	require.Equal(t, []int64{10}, times)
}

type taskFunc func()

func (f taskFunc) Execute() {
	f()
}
