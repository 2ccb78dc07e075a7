// Package enginetest provides scripted engines for tests of code that
// drives an engine.Engine.
package enginetest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/warpdl/warpmulti/pkg/engine"
)

// Step is one scripted Advance outcome.
type Step struct {
	Code    engine.Code
	Pending int
	// Results become drainable once this step has been returned.
	Results []engine.Result
}

// Done is a step that reports no pending transfers.
func Done(results ...engine.Result) Step {
	return Step{Code: engine.CodeOK, Results: results}
}

// Pending is a step that reports n transfers in flight.
func Pending(n int) Step {
	return Step{Code: engine.CodeOK, Pending: n}
}

// Fail is a step that returns a fatal code.
func Fail(c engine.Code) Step {
	return Step{Code: c}
}

// Scripted is an engine.Engine that replays Steps. Once the script is
// exhausted the last step repeats. Scripted records overlapping calls so
// tests can assert that callers serialise access.
type Scripted struct {
	// Advised is returned by Timeout. New sets it to -1.
	Advised time.Duration
	// WaitErr is returned by every WaitReady.
	WaitErr error
	// Hold, when non-nil, blocks WaitReady until it is closed.
	Hold chan struct{}
	// WaitDelay makes WaitReady sleep, bounded by the timeout it receives.
	WaitDelay time.Duration
	// OnAdvance runs at the start of every Advance with its 1-based count.
	OnAdvance func(n int)
	// GuardHeld, when set, is sampled during WaitReady.
	GuardHeld func() bool

	mu      sync.Mutex
	steps   []Step
	next    int
	pending int
	results []engine.Result
	added   []*engine.Transfer
	timeout []time.Duration

	advances   atomic.Int32
	waits      atomic.Int32
	drains     atomic.Int32
	inside     atomic.Int32
	overlaps   atomic.Int32
	heldWaits  atomic.Int32
	pendingLog []int
}

var _ engine.Engine = (*Scripted)(nil)

// New returns a Scripted engine that replays steps.
func New(steps ...Step) *Scripted {
	if len(steps) == 0 {
		steps = []Step{Done()}
	}
	return &Scripted{Advised: -1, steps: steps, pending: steps[0].Pending}
}

func (s *Scripted) enter() {
	if s.inside.Add(1) != 1 {
		s.overlaps.Add(1)
	}
}

func (s *Scripted) leave() { s.inside.Add(-1) }

func (s *Scripted) Advance() (engine.Code, int) {
	s.enter()
	defer s.leave()
	n := int(s.advances.Add(1))
	if s.OnAdvance != nil {
		s.OnAdvance(n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.steps[len(s.steps)-1]
	if s.next < len(s.steps) {
		step = s.steps[s.next]
		s.next++
	}
	s.pending = step.Pending
	s.pendingLog = append(s.pendingLog, step.Pending)
	s.results = append(s.results, step.Results...)
	return step.Code, step.Pending
}

func (s *Scripted) Registered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending + len(s.added)
}

func (s *Scripted) Timeout() time.Duration {
	return s.Advised
}

func (s *Scripted) WaitReady(timeout time.Duration) error {
	s.waits.Add(1)
	s.mu.Lock()
	s.timeout = append(s.timeout, timeout)
	s.mu.Unlock()
	if s.GuardHeld != nil && s.GuardHeld() {
		s.heldWaits.Add(1)
	}
	if s.Hold != nil {
		<-s.Hold
	}
	if d := min(s.WaitDelay, timeout); d > 0 {
		time.Sleep(d)
	}
	return s.WaitErr
}

func (s *Scripted) DrainResults() []engine.Result {
	s.enter()
	defer s.leave()
	s.drains.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.results
	s.results = nil
	return out
}

// Add records t. It takes part in overlap detection like Advance.
func (s *Scripted) Add(t *engine.Transfer) error {
	s.enter()
	defer s.leave()
	s.mu.Lock()
	s.added = append(s.added, t)
	s.mu.Unlock()
	return nil
}

// Remove forgets t.
func (s *Scripted) Remove(t *engine.Transfer) error {
	s.enter()
	defer s.leave()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.added {
		if a == t {
			s.added = append(s.added[:i], s.added[i+1:]...)
			break
		}
	}
	return nil
}

// Advances returns the number of Advance calls so far.
func (s *Scripted) Advances() int { return int(s.advances.Load()) }

// Waits returns the number of WaitReady calls so far.
func (s *Scripted) Waits() int { return int(s.waits.Load()) }

// Drains returns the number of DrainResults calls so far.
func (s *Scripted) Drains() int { return int(s.drains.Load()) }

// Overlaps returns how many calls started while another was in progress.
func (s *Scripted) Overlaps() int { return int(s.overlaps.Load()) }

// WaitsUnderGuard returns how many waits observed GuardHeld() == true.
func (s *Scripted) WaitsUnderGuard() int { return int(s.heldWaits.Load()) }

// PendingHistory returns the pending count reported by each Advance.
func (s *Scripted) PendingHistory() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pendingLog...)
}

// Timeouts returns the timeout passed to each WaitReady.
func (s *Scripted) Timeouts() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.timeout...)
}

// Added returns the transfers registered through Add.
func (s *Scripted) Added() []*engine.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*engine.Transfer(nil), s.added...)
}
