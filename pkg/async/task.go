package async

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/warpdl/warpmulti/internal/guard"
	"github.com/warpdl/warpmulti/internal/poll"
	"github.com/warpdl/warpmulti/internal/threads"
	"github.com/warpdl/warpmulti/pkg/engine"
	"github.com/warpdl/warpmulti/pkg/pool"
)

// taskContext is shared by the worker and the caller's Handle. It is
// released when the last of the two drops its reference, never earlier.
type taskContext struct {
	id       uuid.UUID
	eng      engine.Engine
	pool     *pool.Pool
	guard    *guard.Guard
	ctx      context.Context
	pollOpts poll.Options
	done     chan struct{}

	onRelease func(uuid.UUID)

	refs          atomic.Int32
	callerDropped atomic.Bool
	notified      atomic.Bool
	released      atomic.Bool
}

var contexts = sync.Pool{New: func() interface{} { return new(taskContext) }}

func newTaskContext(ctx context.Context, p *pool.Pool, opts poll.Options, onRelease func(uuid.UUID)) *taskContext {
	tc := contexts.Get().(*taskContext)
	tc.id = p.ID
	tc.eng = p.Engine()
	tc.pool = p
	tc.guard = p.Guard()
	tc.ctx = ctx
	tc.pollOpts = opts
	tc.done = make(chan struct{})
	tc.onRelease = onRelease
	tc.refs.Store(2)
	tc.callerDropped.Store(false)
	tc.notified.Store(false)
	tc.released.Store(false)
	return tc
}

// dropCaller drops the Handle's reference. Only the first call counts.
func (tc *taskContext) dropCaller() {
	if tc.callerDropped.CompareAndSwap(false, true) {
		tc.unref()
	}
}

// dropWorker drops the worker's reference. The worker calls it exactly once,
// after it scheduled the completion notification.
func (tc *taskContext) dropWorker() {
	tc.unref()
}

func (tc *taskContext) unref() {
	if tc.refs.Add(-1) == 0 {
		tc.release()
	}
}

func (tc *taskContext) release() {
	if !tc.released.CompareAndSwap(false, true) {
		panic("async: task context released twice")
	}
	id, hook := tc.id, tc.onRelease
	tc.id = uuid.Nil
	tc.eng = nil
	tc.pool = nil
	tc.guard = nil
	tc.ctx = nil
	tc.pollOpts = poll.Options{}
	tc.done = nil
	tc.onRelease = nil
	contexts.Put(tc)
	if hook != nil {
		hook(id)
	}
}

// Handle is the caller's view of one async run. Dropping every reference
// to it (or calling Release) gives up the caller's share of the run's
// context; the run itself continues either way.
type Handle struct {
	id      uuid.UUID
	done    chan struct{}
	thread  threads.Ref
	tc      *taskContext
	cleanup runtime.Cleanup
	dropped atomic.Bool
}

func newHandle(tc *taskContext) *Handle {
	h := &Handle{id: tc.id, done: tc.done, tc: tc}
	h.cleanup = runtime.AddCleanup(h, (*taskContext).dropCaller, tc)
	return h
}

// Pool returns the id of the pool being driven.
func (h *Handle) Pool() uuid.UUID { return h.id }

// Running reports whether the worker has not exited yet.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done is closed when the worker exits. The completion notification may
// still be queued on the loop at that point.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Thread identifies the worker.
func (h *Handle) Thread() threads.Ref { return h.thread }

// Release drops the caller's reference without waiting for the garbage
// collector. It is idempotent.
func (h *Handle) Release() {
	if !h.dropped.CompareAndSwap(false, true) {
		return
	}
	h.cleanup.Stop()
	tc := h.tc
	h.tc = nil
	tc.dropCaller()
}
