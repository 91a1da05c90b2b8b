// Package schedule provides a delayed-task scheduler used to expire idle
// upload streams. Tasks are kept in a min-heap ordered by due time; a single
// goroutine sleeps until the earliest task and fires it.
package schedule

import (
	"container/heap"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is a unit of delayed work. It runs on the scheduler goroutine, so
// implementations should hand off long work elsewhere.
type Task func()

// Handle allows a scheduled task to be cancelled before it fires.
type Handle struct {
	scheduler *Scheduler
	entry     *taskEntry
}

// Cancel removes the task from the scheduler. Returns true if the task had
// not yet fired. Cancel is safe to call multiple times.
func (h *Handle) Cancel() bool {
	return h.scheduler.cancel(h.entry)
}

// taskEntry is a heap element.
type taskEntry struct {
	dueAt     time.Time
	task      Task
	index     int
	cancelled bool
	fired     bool
}

// taskHeap orders entries by due time.
type taskHeap []*taskEntry

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].dueAt.Before(h[j].dueAt) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x interface{}) { e := x.(*taskEntry); e.index = len(*h); *h = append(*h, e) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler runs tasks after a delay.
type Scheduler struct {
	mu      sync.Mutex
	tasks   taskHeap
	wakeup  chan struct{}
	done    chan struct{}
	stopped bool
	logger  zerolog.Logger
}

// NewScheduler creates and starts a scheduler.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	s := &Scheduler{
		tasks:  make(taskHeap, 0),
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With().Str("service", "scheduler").Logger(),
	}
	heap.Init(&s.tasks)

	go s.run()

	return s
}

// Schedule registers a task to run after the given delay and returns a
// cancellation handle.
func (s *Scheduler) Schedule(delay time.Duration, task Task) *Handle {
	entry := &taskEntry{
		dueAt: time.Now().Add(delay),
		task:  task,
	}

	s.mu.Lock()
	heap.Push(&s.tasks, entry)
	earliest := s.tasks[0] == entry
	s.mu.Unlock()

	if earliest {
		s.wake()
	}

	return &Handle{scheduler: s, entry: entry}
}

// Stop shuts the scheduler down. Pending tasks do not fire.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.done)
}

// cancel marks an entry cancelled. The run loop skips cancelled entries.
func (s *Scheduler) cancel(entry *taskEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.cancelled || entry.fired {
		return false
	}
	entry.cancelled = true

	if entry.index >= 0 {
		heap.Remove(&s.tasks, entry.index)
	}
	return true
}

// wake nudges the run loop to re-check the head of the heap.
func (s *Scheduler) wake() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// run is the scheduler loop. It sleeps until the earliest due time, fires
// everything that is due, and goes back to sleep.
func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var wait time.Duration
		if len(s.tasks) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(s.tasks[0].dueAt)
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.done:
			return
		case <-s.wakeup:
		case <-timer.C:
			s.fireDue()
		}
	}
}

// fireDue pops and runs every task whose due time has passed.
func (s *Scheduler) fireDue() {
	now := time.Now()

	for {
		s.mu.Lock()
		if len(s.tasks) == 0 || s.tasks[0].dueAt.After(now) {
			s.mu.Unlock()
			return
		}
		entry := heap.Pop(&s.tasks).(*taskEntry)
		entry.fired = true
		s.mu.Unlock()

		if entry.cancelled {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().Interface("panic", r).Msg("Scheduled task panicked")
				}
			}()
			entry.task()
		}()
	}
}
