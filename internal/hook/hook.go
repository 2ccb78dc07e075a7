// Package hook runs user JavaScript when a pool finishes.
//
// A hook script defines a global onComplete function:
//
//	function onComplete(summary) {
//	    warpmulti.log("pool " + summary.pool + " moved " + summary.bytes + " bytes")
//	}
//
// Scripts live in the event loop's goja runtime, so every entry point here
// must run on the loop goroutine. Script errors are logged and swallowed.
package hook

import (
	"errors"
	"fmt"
	"os"

	"github.com/dop251/goja"
	"github.com/warpdl/warpmulti/internal/later"
	"github.com/warpdl/warpmulti/pkg/logger"
	"github.com/warpdl/warpmulti/pkg/pool"
)

// HandlerName is the global function a script must define.
const HandlerName = "onComplete"

// ErrNoHandler is returned when a script does not define onComplete.
var ErrNoHandler = errors.New("hook: script does not define " + HandlerName)

// Hook is a loaded completion script.
type Hook struct {
	name string
	rt   *goja.Runtime
	fn   goja.Callable
	log  logger.Logger
}

// Load evaluates src in rt and binds its onComplete handler. It must run on
// the goroutine that owns rt.
func Load(rt *goja.Runtime, name, src string, l logger.Logger) (*Hook, error) {
	l = logger.OrNop(l)
	api := rt.NewObject()
	if err := api.Set("log", func(call goja.FunctionCall) goja.Value {
		l.Info("[%s] %s", name, joinArgs(call.Arguments))
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}
	if err := rt.Set("warpmulti", api); err != nil {
		return nil, err
	}
	if _, err := rt.RunScript(name, src); err != nil {
		return nil, fmt.Errorf("hook: load %s: %w", name, err)
	}
	fn, ok := goja.AssertFunction(rt.Get(HandlerName))
	if !ok {
		return nil, ErrNoHandler
	}
	return &Hook{name: name, rt: rt, fn: fn, log: l}, nil
}

// LoadFile reads path and loads it on loop, blocking until done. It must
// not be called from the loop goroutine.
func LoadFile(loop *later.Loop, path string, l logger.Logger) (*Hook, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hook: read %s: %w", path, err)
	}
	return LoadString(loop, path, string(src), l)
}

// LoadString is LoadFile for in-memory source.
func LoadString(loop *later.Loop, name, src string, l logger.Logger) (*Hook, error) {
	type loaded struct {
		h   *Hook
		err error
	}
	ch := make(chan loaded, 1)
	if err := loop.Do(func(rt *goja.Runtime) {
		h, err := Load(rt, name, src, l)
		ch <- loaded{h, err}
	}); err != nil {
		return nil, err
	}
	res := <-ch
	return res.h, res.err
}

// Call runs onComplete with a summary of c.
func (h *Hook) Call(c pool.Completion) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("completion hook %s panicked: %v", h.name, r)
		}
	}()
	if _, err := h.fn(goja.Undefined(), h.rt.ToValue(Summary(c))); err != nil {
		h.log.Error("completion hook %s: %v", h.name, err)
	}
}

// Func adapts h to pool.OnComplete.
func (h *Hook) Func() func(pool.Completion) {
	return h.Call
}

// Summary is the plain value handed to onComplete.
func Summary(c pool.Completion) map[string]interface{} {
	results := make([]interface{}, 0, len(c.Results))
	for _, r := range c.Results {
		entry := map[string]interface{}{
			"path":  r.Path,
			"bytes": r.Bytes,
			"error": nil,
		}
		if r.Transfer != nil {
			entry["url"] = r.Transfer.URL
		}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		results = append(results, entry)
	}
	var errText interface{}
	if c.Outcome.Err != nil {
		errText = c.Outcome.Err.Error()
	}
	return map[string]interface{}{
		"pool":       c.PoolID.String(),
		"advances":   c.Outcome.Advances,
		"waits":      c.Outcome.Waits,
		"pending":    c.Outcome.Pending,
		"cancelled":  c.Outcome.Cancelled,
		"error":      errText,
		"transfers":  len(c.Results),
		"failed":     c.Failed(),
		"bytes":      c.Bytes(),
		"durationMs": c.Outcome.Finished.Sub(c.Outcome.Started).Milliseconds(),
		"results":    results,
	}
}

func joinArgs(args []goja.Value) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += " "
		}
		s += a.String()
	}
	return s
}
