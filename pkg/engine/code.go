package engine

import "fmt"

// Code is the status returned by Engine.Advance.
type Code int

const (
	// CodeOK means the engine made whatever progress it could.
	CodeOK Code = iota
	// CodeCallAgain asks the caller to advance again without waiting.
	CodeCallAgain
	// CodeBadHandle means the engine was closed or never initialised.
	CodeBadHandle
	// CodeOutOfMemory means the engine could not allocate bookkeeping.
	CodeOutOfMemory
	// CodeInternal is an unexpected engine failure.
	CodeInternal
	// CodeRecursiveCall means two engine calls overlapped.
	CodeRecursiveCall
	// CodeWakeupFailure means the engine could not arm its wakeup signal.
	CodeWakeupFailure
)

var codeText = map[Code]string{
	CodeOK:            "no error",
	CodeCallAgain:     "please call advance again",
	CodeBadHandle:     "invalid multi handle",
	CodeOutOfMemory:   "out of memory",
	CodeInternal:      "internal error",
	CodeRecursiveCall: "API function called from within callback or concurrently",
	CodeWakeupFailure: "wakeup failure",
}

// String returns the engine's human-readable diagnostic for c.
func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown engine code %d", int(c))
}

// Fatal reports whether c terminates a poll loop.
func (c Code) Fatal() bool {
	return c != CodeOK && c != CodeCallAgain
}
