package async

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMissingCapability is wrapped by DependencyError when the resolver
// returned a Capabilities value with a nil member.
var ErrMissingCapability = errors.New("missing capability")

// DependencyError reports that the threading or deferred-execution facility
// could not be resolved. It is cached: every RunAsync on the same Runner
// returns the same error.
type DependencyError struct {
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("async: dependencies unavailable: %v", e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// ThreadCreationError reports that no worker could be started. The pool is
// left in the state it had before RunAsync.
type ThreadCreationError struct {
	PoolID uuid.UUID
	Err    error
}

func (e *ThreadCreationError) Error() string {
	return fmt.Sprintf("async: cannot start worker for pool %s: %v", e.PoolID, e.Err)
}

func (e *ThreadCreationError) Unwrap() error {
	return e.Err
}

// PanicError is the outcome error of a run whose worker panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("async: worker panic: %v", e.Value)
}
