package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Scheduler runs deferred callbacks at their scheduled instants, earliest
// first. The clock is injected so tests advance time instead of sleeping.
// Entries do not survive a restart; callers are expected to have a lazy
// recovery path for anything scheduled before a crash.
type Scheduler struct {
	clock  clock.Clock
	logger *zap.Logger

	mu    sync.Mutex
	queue taskQueue
	wake  chan struct{}
}

type task struct {
	at time.Time
	fn func(context.Context)
}

func New(clk clock.Clock, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		clock:  clk,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// At registers fn to run once the scheduler's clock reaches at. Instants in
// the past fire on the next loop iteration.
func (s *Scheduler) At(at time.Time, fn func(context.Context)) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	heap.Push(&s.queue, task{at: at, fn: fn})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, firing due tasks in order. Tasks run on
// the scheduler goroutine; panics are not recovered, keep callbacks small.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.fireDue(ctx)

		delay := s.untilNext()

		if delay <= 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
			}
			continue
		}

		timer := s.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.clock.Now()

	for {
		s.mu.Lock()
		if s.queue.Len() == 0 || s.queue[0].at.After(now) {
			s.mu.Unlock()
			return
		}
		next := heap.Pop(&s.queue).(task)
		s.mu.Unlock()

		next.fn(ctx)
	}
}

// untilNext returns the wait before the earliest pending task, or a negative
// value when the queue is empty (wait for a wake-up instead).
func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() == 0 {
		return -1
	}
	d := s.queue[0].at.Sub(s.clock.Now())
	if d <= 0 {
		d = time.Nanosecond
	}
	return d
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

type taskQueue []task

func (q taskQueue) Len() int            { return len(q) }
func (q taskQueue) Less(i, j int) bool  { return q[i].at.Before(q[j].at) }
func (q taskQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x interface{}) { *q = append(*q, x.(task)) }

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
