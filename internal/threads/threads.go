// Package threads starts the worker goroutines that drive async runs.
//
// Each worker may be pinned to its own OS thread so that engine code which
// keeps thread-local state sees a stable thread for the whole run.
package threads

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/warpdl/warpmulti/pkg/logger"
	"golang.org/x/sync/semaphore"
)

// ErrLimitReached is returned by Spawn when the live worker limit is hit.
var ErrLimitReached = errors.New("threads: live worker limit reached")

// Ref identifies a spawned worker.
type Ref interface {
	Name() string
	// OSThreadID is the kernel thread id the worker started on, or 0 where
	// the platform does not expose one.
	OSThreadID() int
	// Done is closed when the worker's entry function has returned.
	Done() <-chan struct{}
}

// Spawner starts exactly one worker per call running entry.
type Spawner interface {
	Spawn(name string, entry func()) (Ref, error)
}

// Options configures a Goroutines spawner.
type Options struct {
	// LockOSThread pins every worker to its OS thread.
	LockOSThread bool
	// MaxLive limits concurrently running workers. Zero means unlimited.
	MaxLive int64
	Logger  logger.Logger
	// OnPanic is called with the recovered value of a panicking worker.
	OnPanic func(name string, r interface{})
}

// Goroutines is the default Spawner.
type Goroutines struct {
	opts Options
	log  logger.Logger
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
	mu   sync.Mutex
	live int
}

var _ Spawner = (*Goroutines)(nil)

// New returns a Spawner configured by opts.
func New(opts Options) *Goroutines {
	g := &Goroutines{opts: opts, log: logger.OrNop(opts.Logger)}
	if opts.MaxLive > 0 {
		g.sem = semaphore.NewWeighted(opts.MaxLive)
	}
	return g
}

type thread struct {
	name    string
	tid     int
	started chan struct{}
	done    chan struct{}
}

func (t *thread) Name() string { return t.name }

func (t *thread) OSThreadID() int {
	<-t.started
	return t.tid
}

func (t *thread) Done() <-chan struct{} { return t.done }

// Spawn starts entry on a new goroutine. Panics in entry are recovered and
// logged with their stack.
func (g *Goroutines) Spawn(name string, entry func()) (Ref, error) {
	if entry == nil {
		return nil, fmt.Errorf("threads: nil entry for %s", name)
	}
	if g.sem != nil && !g.sem.TryAcquire(1) {
		return nil, ErrLimitReached
	}
	t := &thread{
		name:    name,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	g.mu.Lock()
	g.live++
	g.mu.Unlock()
	g.wg.Add(1)

	go func() {
		if g.opts.LockOSThread {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
		}
		t.tid = currentThreadID()
		close(t.started)

		defer g.wg.Done()
		defer close(t.done)
		defer func() {
			g.mu.Lock()
			g.live--
			g.mu.Unlock()
			if g.sem != nil {
				g.sem.Release(1)
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				g.log.Error("PANIC [%s]: %v\n%s", name, r, debug.Stack())
				if g.opts.OnPanic != nil {
					g.opts.OnPanic(name, r)
				}
			}
		}()
		entry()
	}()
	return t, nil
}

// Live returns the number of workers still running.
func (g *Goroutines) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live
}

// Wait blocks until every spawned worker has returned.
func (g *Goroutines) Wait() {
	g.wg.Wait()
}
