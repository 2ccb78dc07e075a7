// Package poll drives an engine.Engine until it has no transfers in flight.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/warpdl/warpmulti/internal/guard"
	"github.com/warpdl/warpmulti/pkg/engine"
	"github.com/warpdl/warpmulti/pkg/logger"
)

const (
	// DefaultWait replaces a negative engine timeout.
	DefaultWait = time.Second
	// DefaultMaxWait caps every readiness wait so the loop re-polls.
	DefaultMaxWait = time.Second
)

// Options tunes Run. Zero fields take the defaults.
type Options struct {
	DefaultWait time.Duration
	MaxWait     time.Duration
	Logger      logger.Logger
}

func (o Options) withDefaults() Options {
	if o.DefaultWait <= 0 {
		o.DefaultWait = DefaultWait
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	o.Logger = logger.OrNop(o.Logger)
	return o
}

// Result summarises one Run.
type Result struct {
	// Advances counts every Advance call, including CallAgain retries.
	Advances int
	// Waits counts readiness waits.
	Waits int
	// Pending is the last pending count the engine reported.
	Pending int
	// Err is an *EngineError or a *WaitError when the loop aborted.
	Err error
	// Cancelled is set when ctx ended the loop.
	Cancelled bool
}

// Drained reports whether the loop ended because nothing was pending.
func (r Result) Drained() bool {
	return r.Err == nil && !r.Cancelled && r.Pending == 0
}

// EngineError is a fatal status returned by Advance.
type EngineError struct {
	Op   string
	Code engine.Code
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %s", e.Op, e.Code)
}

// WaitError wraps a failure of Engine.WaitReady.
type WaitError struct {
	Timeout time.Duration
	Err     error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("engine wait (%s): %v", e.Timeout, e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}

// Run advances eng until it reports nothing pending, a fatal status is
// observed, a wait fails or ctx is done. Every engine call except
// WaitReady runs under g; g may be nil when the caller owns eng outright.
func Run(ctx context.Context, eng engine.Engine, g *guard.Guard, opts Options) Result {
	opts = opts.withDefaults()
	var res Result
	for {
		var (
			code    engine.Code
			pending int
			stop    bool
		)
		g.Do(func() {
			if ctx.Err() != nil {
				stop = true
				return
			}
			for {
				code, pending = eng.Advance()
				res.Advances++
				if code != engine.CodeCallAgain {
					return
				}
			}
		})
		if stop {
			res.Cancelled = true
			return res
		}
		res.Pending = pending

		if code != engine.CodeOK {
			res.Err = &EngineError{Op: "advance", Code: code}
			opts.Logger.Error("engine error: %s", code)
			return res
		}
		if pending == 0 {
			return res
		}

		timeout := waitFor(eng, g, opts)
		res.Waits++
		if err := eng.WaitReady(timeout); err != nil {
			res.Err = &WaitError{Timeout: timeout, Err: err}
			opts.Logger.Error("engine wait failed: %v", err)
			return res
		}
	}
}

func waitFor(eng engine.Engine, g *guard.Guard, opts Options) time.Duration {
	var timeout time.Duration
	g.Do(func() { timeout = eng.Timeout() })
	if timeout < 0 {
		timeout = opts.DefaultWait
	}
	return min(timeout, opts.MaxWait)
}
