package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSchedulerFiresTask(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	fired := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}
}

func TestSchedulerFiresInOrder(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	order := make(chan int, 3)

	// Schedule out of order; the heap must fire them by due time.
	s.Schedule(90*time.Millisecond, func() { order <- 3 })
	s.Schedule(10*time.Millisecond, func() { order <- 1 })
	s.Schedule(50*time.Millisecond, func() { order <- 2 })

	for want := 1; want <= 3; want++ {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("fired %d before %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d did not fire", want)
		}
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	var fired atomic.Bool
	handle := s.Schedule(30*time.Millisecond, func() { fired.Store(true) })

	if !handle.Cancel() {
		t.Fatal("Cancel() = false for a pending task")
	}
	if handle.Cancel() {
		t.Error("second Cancel() = true, want false")
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled task fired")
	}
}

func TestSchedulerCancelAfterFire(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	fired := make(chan struct{})
	handle := s.Schedule(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}

	if handle.Cancel() {
		t.Error("Cancel() = true for an already-fired task")
	}
}

func TestSchedulerStopDropsPending(t *testing.T) {
	s := NewScheduler(zerolog.Nop())

	var fired atomic.Bool
	s.Schedule(30*time.Millisecond, func() { fired.Store(true) })

	s.Stop()
	time.Sleep(100 * time.Millisecond)

	if fired.Load() {
		t.Error("task fired after Stop")
	}
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	s.Schedule(5*time.Millisecond, func() { panic("boom") })

	// A later task must still fire after the panic was recovered.
	fired := make(chan struct{})
	s.Schedule(20*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped firing after a panicking task")
	}
}
