package async

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpmulti/internal/later"
	"github.com/warpdl/warpmulti/internal/threads"
	"github.com/warpdl/warpmulti/pkg/logger"
	"github.com/warpdl/warpmulti/pkg/pool"
)

type spawnFunc func(name string, entry func()) (threads.Ref, error)

func (f spawnFunc) Spawn(name string, entry func()) (threads.Ref, error) { return f(name, entry) }

type countingSpawner struct {
	threads.Spawner
	n atomic.Int32
}

func (c *countingSpawner) Spawn(name string, entry func()) (threads.Ref, error) {
	c.n.Add(1)
	return c.Spawner.Spawn(name, entry)
}

// releases counts context releases per pool id.
type releases struct {
	mu sync.Mutex
	m  map[uuid.UUID]int
}

func newReleases() *releases { return &releases{m: map[uuid.UUID]int{}} }

func (r *releases) hook(id uuid.UUID) {
	r.mu.Lock()
	r.m[id]++
	r.mu.Unlock()
}

func (r *releases) count(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id]
}

func (r *releases) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.m {
		n += c
	}
	return n
}

type fixture struct {
	q       *later.Queue
	spawner *threads.Goroutines
	log     *logger.MockLogger
	rel     *releases
	runner  *Runner
	pumping atomic.Bool
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		q:       later.NewQueue(),
		spawner: threads.New(threads.Options{LockOSThread: true}),
		log:     logger.NewMockLogger(),
		rel:     newReleases(),
	}
	opts = append([]Option{WithLogger(f.log), WithOnRelease(f.rel.hook)}, opts...)
	f.runner = New(Static(Capabilities{Threads: f.spawner, Deferred: f.q}), opts...)
	t.Cleanup(f.spawner.Wait)
	return f
}

// pumpUntil runs the deferred queue on the test goroutine until cond holds.
func (f *fixture) pumpUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		f.pumping.Store(true)
		f.q.RunPending()
		f.pumping.Store(false)
		time.Sleep(time.Millisecond)
	}
}

// completions counts deliveries for p and remembers the last one.
type completions struct {
	n    atomic.Int32
	mu   sync.Mutex
	last pool.Completion
}

func watch(p *pool.Pool) *completions {
	c := &completions{}
	p.OnComplete(func(comp pool.Completion) {
		c.mu.Lock()
		c.last = comp
		c.mu.Unlock()
		c.n.Add(1)
	})
	return c
}

func (c *completions) count() int { return int(c.n.Load()) }

func (c *completions) get() pool.Completion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
