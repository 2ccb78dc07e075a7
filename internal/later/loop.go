package later

import (
	"errors"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// Loop schedules callbacks on a goja_nodejs event loop. Callbacks share
// the goroutine that also runs JavaScript, so they may use the loop's
// *goja.Runtime.
type Loop struct {
	loop *eventloop.EventLoop
	once sync.Once
}

var _ Scheduler = (*Loop)(nil)

// NewLoop creates and starts an event loop.
func NewLoop(opts ...eventloop.Option) *Loop {
	l := &Loop{loop: eventloop.NewEventLoop(opts...)}
	l.loop.Start()
	return l
}

// Schedule queues fn. It returns ErrClosed once the loop is terminated;
// a nil error means fn runs, unless it was delayed and Close cancels it.
func (l *Loop) Schedule(fn func(arg interface{}), arg interface{}, delay time.Duration) error {
	if fn == nil {
		return errors.New("later: nil callback")
	}
	job := func(*goja.Runtime) { fn(arg) }
	if delay <= 0 {
		return l.Do(job)
	}
	if l.loop.SetTimeout(job, delay) == nil {
		return ErrClosed
	}
	return nil
}

// Do runs fn with the loop's JavaScript runtime on the loop goroutine.
func (l *Loop) Do(fn func(*goja.Runtime)) error {
	if !l.loop.RunOnLoop(fn) {
		return ErrClosed
	}
	return nil
}

// Close terminates the loop. Jobs accepted before Close still run, on the
// loop or on the goroutine calling Close; pending timers are dropped.
func (l *Loop) Close() {
	l.once.Do(l.loop.Terminate)
}
