// Package async runs a transfer pool to completion on a dedicated worker
// and hands the completion back to a single-threaded scheduler exactly
// once.
//
// A run looks like this:
//
//	r := async.New(async.Static(async.Capabilities{
//		Threads:  threads.New(threads.Options{LockOSThread: true}),
//		Deferred: loop,
//	}))
//	h, err := r.RunAsync(p)
//
// The worker only drives the engine. Every caller-visible effect of the
// completion (pool state, per-transfer callbacks, completion hooks) happens
// inside the deferred task on the scheduler's loop goroutine.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpmulti/internal/later"
	"github.com/warpdl/warpmulti/internal/poll"
	"github.com/warpdl/warpmulti/internal/threads"
	"github.com/warpdl/warpmulti/pkg/logger"
	"github.com/warpdl/warpmulti/pkg/pool"
)

// Capabilities are the collaborators a Runner needs.
type Capabilities struct {
	Threads  threads.Spawner
	Deferred later.Scheduler
}

// Resolver produces the Capabilities. A Runner calls it at most once, on
// the first RunAsync.
type Resolver func() (Capabilities, error)

// Static returns a Resolver that always yields caps.
func Static(caps Capabilities) Resolver {
	return func() (Capabilities, error) { return caps, nil }
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used by workers and completion tasks.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = logger.OrNop(l) }
}

// WithPollOptions tunes the poll loop of every run.
func WithPollOptions(o poll.Options) Option {
	return func(r *Runner) { r.pollOpts = o }
}

// WithContext sets the context that cancels runs started by RunAsync.
func WithContext(ctx context.Context) Option {
	return func(r *Runner) { r.ctx = ctx }
}

// WithOnRelease registers fn to be called with the pool id whenever a
// run's shared context is released.
func WithOnRelease(fn func(uuid.UUID)) Option {
	return func(r *Runner) { r.onRelease = fn }
}

// Runner starts async runs. It is safe for concurrent use.
type Runner struct {
	resolve   Resolver
	once      sync.Once
	caps      Capabilities
	capsErr   error
	log       logger.Logger
	pollOpts  poll.Options
	ctx       context.Context
	onRelease func(uuid.UUID)
}

// New creates a Runner. resolve is not called until the first run.
func New(resolve Resolver, opts ...Option) *Runner {
	r := &Runner{
		resolve: resolve,
		log:     logger.NewNopLogger(),
		ctx:     context.Background(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Capabilities resolves the collaborators once and caches the outcome,
// failure included.
func (r *Runner) Capabilities() (Capabilities, error) {
	r.once.Do(func() {
		if r.resolve == nil {
			r.capsErr = &DependencyError{Err: fmt.Errorf("%w: no resolver", ErrMissingCapability)}
			return
		}
		caps, err := r.resolve()
		switch {
		case err != nil:
			r.capsErr = &DependencyError{Err: err}
		case caps.Threads == nil:
			r.capsErr = &DependencyError{Err: fmt.Errorf("%w: threads", ErrMissingCapability)}
		case caps.Deferred == nil:
			r.capsErr = &DependencyError{Err: fmt.Errorf("%w: deferred execution", ErrMissingCapability)}
		default:
			r.caps = caps
		}
	})
	return r.caps, r.capsErr
}

// RunAsync starts driving p on a new worker and returns immediately.
// Completion is delivered through the scheduler, never to the caller.
func (r *Runner) RunAsync(p *pool.Pool) (*Handle, error) {
	return r.RunAsyncContext(r.ctx, p)
}

// RunAsyncContext is RunAsync with a per-run cancellation context. A
// cancelled run still delivers its completion.
func (r *Runner) RunAsyncContext(ctx context.Context, p *pool.Pool) (*Handle, error) {
	caps, err := r.Capabilities()
	if err != nil {
		return nil, err
	}
	prev, err := p.Begin()
	if err != nil {
		return nil, err
	}

	opts := r.pollOpts
	if opts.Logger == nil {
		opts.Logger = r.log
	}
	tc := newTaskContext(ctx, p, opts, r.onRelease)
	h := newHandle(tc)
	p.Attach(h)

	deferred := caps.Deferred
	ref, err := caps.Threads.Spawn("warpmulti-"+p.ID.String(), func() {
		r.work(tc, deferred)
	})
	if err != nil {
		p.Rollback(prev)
		h.Release()
		tc.dropWorker()
		return nil, &ThreadCreationError{PoolID: p.ID, Err: err}
	}
	h.thread = ref
	return h, nil
}

// work is the worker entry. It never runs caller-supplied code: it drives
// the engine, then schedules the notification.
func (r *Runner) work(tc *taskContext, deferred later.Scheduler) {
	started := time.Now()
	res := r.drive(tc)
	r.log.Info("number of waits: %d", res.Waits)

	n := Notification{
		PoolID: tc.id,
		Outcome: pool.Outcome{
			Advances:  res.Advances,
			Waits:     res.Waits,
			Pending:   res.Pending,
			Err:       res.Err,
			Cancelled: res.Cancelled,
			Started:   started,
			Finished:  time.Now(),
		},
	}
	r.notify(tc, deferred, n)
	// The pool keeps the handle attached, so the context must stop
	// reaching the pool or the handle's cleanup could never run.
	tc.pool, tc.eng, tc.guard = nil, nil, nil
	close(tc.done)
	tc.dropWorker()
}

// drive runs the poll loop, turning a panic into an aborted result so the
// notification still fires.
func (r *Runner) drive(tc *taskContext) (res poll.Result) {
	defer func() {
		if v := recover(); v != nil {
			stack := debug.Stack()
			r.log.Error("PANIC [pool %s]: %v\n%s", tc.id, v, stack)
			res.Err = &PanicError{Value: v, Stack: stack}
		}
	}()
	return poll.Run(tc.ctx, tc.eng, tc.guard, tc.pollOpts)
}
