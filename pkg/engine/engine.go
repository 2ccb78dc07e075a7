// Package engine defines the multi-transfer engine contract driven by the
// async runner, and Multi, the concrete engine behind it.
//
// An Engine is not goroutine-safe. Callers that share one between the loop
// goroutine and a worker must serialise every call except WaitReady, which
// only blocks on the engine's wakeup signal.
package engine

import (
	"errors"
	"time"
)

// Engine is the contract the poll loop drives.
type Engine interface {
	// Advance performs whatever transfer work is ready without blocking and
	// returns the status plus the number of transfers still in progress.
	Advance() (Code, int)

	// Registered returns the number of transfers currently registered.
	Registered() int

	// Timeout is the engine-advised maximum wait before the next Advance.
	// A negative value means the engine has no opinion.
	Timeout() time.Duration

	// WaitReady blocks until some transfer may make progress or timeout
	// elapses. Timing out is not an error.
	WaitReady(timeout time.Duration) error

	// DrainResults returns and forgets the completion messages harvested by
	// previous Advance calls.
	DrainResults() []Result
}

// Result is the completion message for one transfer.
type Result struct {
	Transfer *Transfer
	// Path is where the payload was written.
	Path  string
	Bytes int64
	Err   error
}

// Transfer describes one download registered with an engine.
type Transfer struct {
	URL string
	// Destination is the directory the payload is written to.
	Destination string
	// FileName overrides the name derived from the URL path.
	FileName string

	// OnDone is invoked with the transfer's Result on the goroutine that
	// drains the engine.
	OnDone func(Result)
	// OnProgress is invoked from the engine's transfer goroutines with the
	// number of bytes just written. It must be safe for concurrent use.
	OnProgress func(n int)
	// OnSize is invoked once the payload size is known; -1 means unknown.
	OnSize func(total int64)
}

var (
	// ErrConcurrentUse is returned when two calls into the same engine overlap.
	ErrConcurrentUse = errors.New("engine: concurrent use of a non goroutine-safe engine")
	// ErrEngineClosed is returned by calls on a closed engine.
	ErrEngineClosed = errors.New("engine: closed")
	// ErrRemoved is the Result error of a transfer removed before it finished.
	ErrRemoved = errors.New("engine: transfer removed")
	// ErrUnsupportedScheme is returned for URLs whose scheme has no opener.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrNoFileName is returned when no file name can be derived for a transfer.
	ErrNoFileName = errors.New("cannot determine file name")
)
