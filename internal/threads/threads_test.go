package threads

import (
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/warpdl/warpmulti/pkg/logger"
)

func waitDone(t *testing.T, r Ref) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("worker %s did not finish", r.Name())
	}
}

func TestSpawnRunsEntryOnce(t *testing.T) {
	g := New(Options{})
	var calls int
	ref, err := g.Spawn("w1", func() { calls++ })
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, ref)
	if calls != 1 {
		t.Errorf("entry ran %d times, want 1", calls)
	}
	if ref.Name() != "w1" {
		t.Errorf("Name() = %q", ref.Name())
	}
	g.Wait()
	if g.Live() != 0 {
		t.Errorf("Live() = %d after Wait", g.Live())
	}
}

func TestSpawnNilEntry(t *testing.T) {
	if _, err := New(Options{}).Spawn("x", nil); err == nil {
		t.Fatal("expected error for nil entry")
	}
}

func TestSpawnRecoversPanics(t *testing.T) {
	log := logger.NewMockLogger()
	var got interface{}
	g := New(Options{Logger: log, OnPanic: func(name string, r interface{}) { got = r }})
	ref, err := g.Spawn("boom", func() { panic("kaboom") })
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, ref)
	if got != "kaboom" {
		t.Errorf("OnPanic got %v", got)
	}
	errs := log.Errors()
	if len(errs) != 1 || !strings.Contains(errs[0], "PANIC [boom]") {
		t.Errorf("logged = %v", errs)
	}
}

func TestSpawnLimit(t *testing.T) {
	g := New(Options{MaxLive: 1})
	release := make(chan struct{})
	first, err := g.Spawn("a", func() { <-release })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Spawn("b", func() {}); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("second Spawn = %v, want ErrLimitReached", err)
	}
	close(release)
	waitDone(t, first)

	// The slot is released once the first worker returns.
	deadline := time.Now().Add(time.Second)
	for {
		ref, err := g.Spawn("c", func() {})
		if err == nil {
			waitDone(t, ref)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("slot never released: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLockedWorkersGetDistinctThreads(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread ids are only exposed on linux in this test")
	}
	g := New(Options{LockOSThread: true})
	release := make(chan struct{})
	var refs []Ref
	for i := 0; i < 4; i++ {
		ref, err := g.Spawn("locked", func() { <-release })
		if err != nil {
			t.Fatal(err)
		}
		refs = append(refs, ref)
	}
	seen := map[int]bool{}
	for _, r := range refs {
		id := r.OSThreadID()
		if id == 0 {
			t.Fatal("expected a thread id")
		}
		if seen[id] {
			t.Errorf("thread id %d reused by concurrently locked workers", id)
		}
		seen[id] = true
	}
	close(release)
	g.Wait()
}

func TestConcurrentSpawn(t *testing.T) {
	g := New(Options{})
	var mu sync.Mutex
	ran := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Spawn("c", func() {
				mu.Lock()
				ran++
				mu.Unlock()
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	g.Wait()
	if ran != 20 {
		t.Errorf("ran = %d, want 20", ran)
	}
}
