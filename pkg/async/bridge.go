package async

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/warpdl/warpmulti/internal/later"
	"github.com/warpdl/warpmulti/pkg/pool"
)

// Notification is the plain record a worker hands to the scheduler.
type Notification struct {
	PoolID  uuid.UUID
	Outcome pool.Outcome
}

// notify schedules the completion task. It runs at most once per run.
func (r *Runner) notify(tc *taskContext, deferred later.Scheduler, n Notification) {
	if !tc.notified.CompareAndSwap(false, true) {
		return
	}
	p := tc.pool
	err := deferred.Schedule(func(arg interface{}) {
		r.deliver(p, arg.(Notification))
	}, n, 0)
	if err != nil {
		r.log.Error("cannot deliver completion of pool %s: %v", n.PoolID, err)
	}
}

// deliver is the completion task. It runs on the loop goroutine.
func (r *Runner) deliver(p *pool.Pool, n Notification) {
	c, err := p.Complete(n.Outcome)
	if err != nil {
		r.log.Error("pool %s: %v", n.PoolID, err)
		return
	}
	if n.Outcome.Err != nil {
		r.log.Warning("pool %s aborted: %v", n.PoolID, n.Outcome.Err)
	}
	r.log.Info("async transfers complete: pool %s, %d transfers, %d failed, %s in %s",
		n.PoolID, len(c.Results), c.Failed(), humanize.Bytes(uint64(c.Bytes())),
		n.Outcome.Finished.Sub(n.Outcome.Started).Round(time.Millisecond))
}
