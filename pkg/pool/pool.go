// Package pool holds a set of transfers registered with one engine, plus
// the state of the async run driving them.
package pool

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpmulti/internal/guard"
	"github.com/warpdl/warpmulti/pkg/engine"
)

var (
	// ErrAlreadyRunning is returned by Begin while a run is in progress.
	ErrAlreadyRunning = errors.New("pool: async run already in progress")
	// ErrNotRunning is returned by Finish when no run is in progress.
	ErrNotRunning = errors.New("pool: no async run in progress")
	// ErrUnguardedAccess is returned when an unguarded pool's engine would be
	// touched while a worker owns it.
	ErrUnguardedAccess = errors.New("pool: engine is owned by a worker and the pool has no guard")
	// ErrNotSupported is returned when the engine cannot register transfers.
	ErrNotSupported = errors.New("pool: engine does not support adding transfers")
)

// State is the lifecycle of a pool's async run.
type State int

const (
	Idle State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome describes how a run ended.
type Outcome struct {
	Advances  int
	Waits     int
	Pending   int
	Err       error
	Cancelled bool
	Started   time.Time
	Finished  time.Time
}

// Drained reports whether the run ended with nothing pending.
func (o Outcome) Drained() bool {
	return o.Err == nil && !o.Cancelled && o.Pending == 0
}

// Completion is passed to completion hooks on the loop goroutine.
type Completion struct {
	PoolID  uuid.UUID
	Outcome Outcome
	Results []engine.Result
}

// Bytes sums the bytes written by successful transfers.
func (c Completion) Bytes() int64 {
	var n int64
	for _, r := range c.Results {
		if r.Err == nil {
			n += r.Bytes
		}
	}
	return n
}

// Failed counts the transfers that ended with an error.
func (c Completion) Failed() int {
	n := 0
	for _, r := range c.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Registrar is implemented by engines that accept new transfers.
type Registrar interface {
	Add(t *engine.Transfer) error
	Remove(t *engine.Transfer) error
}

// Pool is a transfer pool handle. State changes only through Begin (caller
// side) and Finish (deferred completion task).
type Pool struct {
	ID uuid.UUID

	eng engine.Engine
	g   *guard.Guard

	mu       sync.Mutex
	state    State
	outcome  Outcome
	attached interface{}
	hooks    []func(Completion)
	runs     int
}

// New creates a pool over eng. g may be nil, in which case the pool's
// engine must not be touched while a run is in progress.
func New(eng engine.Engine, g *guard.Guard) *Pool {
	return &Pool{ID: uuid.New(), eng: eng, g: g}
}

func (p *Pool) Engine() engine.Engine { return p.eng }
func (p *Pool) Guard() *guard.Guard    { return p.g }

func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Outcome returns the outcome of the last completed run.
func (p *Pool) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

// Runs returns how many runs have begun on this pool.
func (p *Pool) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

// Begin moves the pool to Running and returns the state it left so a
// failed start can be rolled back.
func (p *Pool) Begin() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Running {
		return p.state, ErrAlreadyRunning
	}
	prev := p.state
	p.state = Running
	p.runs++
	return prev, nil
}

// Rollback undoes a Begin whose worker never started.
func (p *Pool) Rollback(prev State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Running {
		p.state = prev
		p.runs--
		p.attached = nil
	}
}

// Finish records o and moves the pool to Completed. It also detaches the
// async handle.
func (p *Pool) Finish(o Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Running {
		return ErrNotRunning
	}
	p.state = Completed
	p.outcome = o
	p.attached = nil
	return nil
}

// Attach stores the handle of the run in progress.
func (p *Pool) Attach(h interface{}) {
	p.mu.Lock()
	p.attached = h
	p.mu.Unlock()
}

// Attached returns the handle of the run in progress, or nil.
func (p *Pool) Attached() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

// OnComplete registers fn to run on the loop goroutine after every run.
func (p *Pool) OnComplete(fn func(Completion)) {
	p.mu.Lock()
	p.hooks = append(p.hooks, fn)
	p.mu.Unlock()
}

// Add registers t with the engine.
func (p *Pool) Add(t *engine.Transfer) error {
	r, ok := p.eng.(Registrar)
	if !ok {
		return ErrNotSupported
	}
	return p.withEngine(func() error { return r.Add(t) })
}

// Remove unregisters t from the engine.
func (p *Pool) Remove(t *engine.Transfer) error {
	r, ok := p.eng.(Registrar)
	if !ok {
		return ErrNotSupported
	}
	return p.withEngine(func() error { return r.Remove(t) })
}

// withEngine runs fn under the guard. Unguarded pools run fn only when no
// worker owns the engine, and hold the pool lock so a run cannot begin
// meanwhile.
func (p *Pool) withEngine(fn func() error) error {
	if p.g != nil {
		var err error
		p.g.Do(func() { err = fn() })
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Running {
		return ErrUnguardedAccess
	}
	return fn()
}

// Drain returns the engine's completion messages.
func (p *Pool) Drain() []engine.Result {
	var out []engine.Result
	p.g.Do(func() { out = p.eng.DrainResults() })
	return out
}

// Complete finishes the run with o, drains the engine, dispatches every
// result to its transfer's OnDone and then runs the completion hooks.
// It must run on the loop goroutine.
func (p *Pool) Complete(o Outcome) (Completion, error) {
	if err := p.Finish(o); err != nil {
		return Completion{}, err
	}
	c := Completion{PoolID: p.ID, Outcome: o, Results: p.Drain()}
	for _, r := range c.Results {
		if r.Transfer != nil && r.Transfer.OnDone != nil {
			r.Transfer.OnDone(r)
		}
	}
	p.mu.Lock()
	hooks := slices.Clone(p.hooks)
	p.mu.Unlock()
	for _, h := range hooks {
		h(c)
	}
	return c, nil
}
