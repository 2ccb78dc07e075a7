package later

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"
)

type job struct {
	fn  func(interface{})
	arg interface{}
}

// Queue is a FIFO Scheduler pumped by whichever goroutine calls RunPending
// or Run. That goroutine becomes the loop goroutine.
type Queue struct {
	mu     sync.Mutex
	jobs   *queue.Queue
	timers map[*time.Timer]struct{}
	closed bool
	wake   chan struct{}
}

var _ Scheduler = (*Queue)(nil)

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		jobs:   queue.New(),
		timers: make(map[*time.Timer]struct{}),
		wake:   make(chan struct{}, 1),
	}
}

func (q *Queue) Schedule(fn func(arg interface{}), arg interface{}, delay time.Duration) error {
	if fn == nil {
		return errors.New("later: nil callback")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	j := job{fn: fn, arg: arg}
	if delay <= 0 {
		q.pushLocked(j)
		return nil
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.timers, t)
		if !q.closed {
			q.pushLocked(j)
		}
	})
	q.timers[t] = struct{}{}
	return nil
}

func (q *Queue) pushLocked(j job) {
	q.jobs.Add(j)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of jobs ready to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs.Length()
}

// RunPending runs the jobs that were ready when it was called and returns
// how many ran. Jobs scheduled by those jobs wait for the next call.
func (q *Queue) RunPending() int {
	q.mu.Lock()
	n := q.jobs.Length()
	batch := make([]job, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, q.jobs.Remove().(job))
	}
	q.mu.Unlock()

	for _, j := range batch {
		j.fn(j.arg)
	}
	return len(batch)
}

// Run pumps the queue until ctx is done or the queue is closed and empty.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.RunPending()
		q.mu.Lock()
		drained := q.closed && q.jobs.Length() == 0
		q.mu.Unlock()
		if drained {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}
	}
}

// Close rejects further Schedule calls and drops timers that have not
// fired. Jobs already queued still run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	clear(q.timers)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
