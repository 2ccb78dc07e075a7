// Package later provides the single-threaded deferred-execution facilities
// that async completions are handed back to.
package later

import (
	"errors"
	"time"
)

// ErrClosed is returned by Schedule once the scheduler has shut down.
var ErrClosed = errors.New("later: scheduler closed")

// Scheduler runs fn(arg) on its loop goroutine after delay. A zero delay
// runs fn on the next loop turn. Schedule itself is safe to call from any
// goroutine.
type Scheduler interface {
	Schedule(fn func(arg interface{}), arg interface{}, delay time.Duration) error
}
