package pool

import (
	"errors"
	"testing"

	"github.com/warpdl/warpmulti/internal/guard"
	"github.com/warpdl/warpmulti/pkg/engine"
	"github.com/warpdl/warpmulti/pkg/engine/enginetest"
)

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Running: "running", Completed: "completed", State(7): "State(7)"} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestBeginFinishCycle(t *testing.T) {
	p := New(enginetest.New(), nil)
	if p.State() != Idle {
		t.Fatalf("new pool state = %v", p.State())
	}
	prev, err := p.Begin()
	if err != nil || prev != Idle {
		t.Fatalf("Begin() = %v, %v", prev, err)
	}
	if _, err := p.Begin(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Begin() = %v, want ErrAlreadyRunning", err)
	}
	p.Attach("handle")
	if p.Attached() != "handle" {
		t.Fatal("Attached() lost the handle")
	}
	if err := p.Finish(Outcome{Advances: 2}); err != nil {
		t.Fatal(err)
	}
	if p.State() != Completed || p.Outcome().Advances != 2 {
		t.Errorf("state=%v outcome=%+v", p.State(), p.Outcome())
	}
	if p.Attached() != nil {
		t.Error("Finish must detach the handle")
	}
	if err := p.Finish(Outcome{}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Finish on completed pool = %v", err)
	}

	// A completed pool can be run again.
	if prev, err := p.Begin(); err != nil || prev != Completed {
		t.Fatalf("re-Begin() = %v, %v", prev, err)
	}
	if p.Runs() != 2 {
		t.Errorf("Runs() = %d, want 2", p.Runs())
	}
}

func TestRollback(t *testing.T) {
	p := New(enginetest.New(), nil)
	prev, _ := p.Begin()
	p.Attach("h")
	p.Rollback(prev)
	if p.State() != Idle || p.Attached() != nil || p.Runs() != 0 {
		t.Errorf("after rollback: state=%v attached=%v runs=%d", p.State(), p.Attached(), p.Runs())
	}
}

func TestUnguardedAddRejectedWhileRunning(t *testing.T) {
	eng := enginetest.New()
	p := New(eng, nil)
	tr := &engine.Transfer{URL: "http://h/f"}
	if err := p.Add(tr); err != nil {
		t.Fatalf("Add while idle: %v", err)
	}
	p.Begin()
	if err := p.Add(tr); !errors.Is(err, ErrUnguardedAccess) {
		t.Fatalf("Add while running = %v, want ErrUnguardedAccess", err)
	}
	if err := p.Remove(tr); !errors.Is(err, ErrUnguardedAccess) {
		t.Fatalf("Remove while running = %v, want ErrUnguardedAccess", err)
	}
	if len(eng.Added()) != 1 {
		t.Errorf("engine saw %d adds, want 1", len(eng.Added()))
	}
}

func TestGuardedAddAllowedWhileRunning(t *testing.T) {
	eng := enginetest.New()
	p := New(eng, guard.New())
	p.Begin()
	if err := p.Add(&engine.Transfer{URL: "http://h/f"}); err != nil {
		t.Fatalf("guarded Add while running: %v", err)
	}
	if len(eng.Added()) != 1 {
		t.Error("transfer not registered")
	}
}

type plainEngine struct{ engine.Engine }

func TestAddNotSupported(t *testing.T) {
	p := New(plainEngine{enginetest.New()}, nil)
	if err := p.Add(&engine.Transfer{}); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Add = %v, want ErrNotSupported", err)
	}
}

func TestCompleteDispatchesResultsThenHooks(t *testing.T) {
	var order []string
	t1 := &engine.Transfer{URL: "http://h/a", OnDone: func(r engine.Result) { order = append(order, "done:a") }}
	t2 := &engine.Transfer{URL: "http://h/b", OnDone: func(r engine.Result) { order = append(order, "done:b") }}
	eng := enginetest.New(enginetest.Done(
		engine.Result{Transfer: t1, Bytes: 10},
		engine.Result{Transfer: t2, Err: errors.New("x"), Bytes: 3},
	))
	eng.Advance()

	p := New(eng, guard.New())
	var got Completion
	p.OnComplete(func(c Completion) {
		order = append(order, "hook")
		got = c
	})
	p.Begin()
	c, err := p.Complete(Outcome{Advances: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"done:a", "done:b", "hook"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if got.PoolID != p.ID || c.PoolID != p.ID {
		t.Error("completion carries the wrong pool id")
	}
	if c.Bytes() != 10 || c.Failed() != 1 {
		t.Errorf("Bytes()=%d Failed()=%d", c.Bytes(), c.Failed())
	}
	if p.State() != Completed {
		t.Errorf("state = %v", p.State())
	}
}

func TestHookAddedDuringCompleteRunsNextTime(t *testing.T) {
	p := New(enginetest.New(), nil)
	var first, late int
	p.OnComplete(func(Completion) {
		first++
		if first == 1 {
			p.OnComplete(func(Completion) { late++ })
		}
	})
	for run := 1; run <= 2; run++ {
		if _, err := p.Begin(); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Complete(Outcome{}); err != nil {
			t.Fatal(err)
		}
		if run == 1 && late != 0 {
			t.Fatalf("hook registered during run 1 ran %d times in it", late)
		}
	}
	if first != 2 || late != 1 {
		t.Errorf("first=%d late=%d, want 2 and 1", first, late)
	}
}

func TestCompleteRequiresRunning(t *testing.T) {
	p := New(enginetest.New(), nil)
	if _, err := p.Complete(Outcome{}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Complete on idle pool = %v", err)
	}
}

func TestOutcomeDrained(t *testing.T) {
	if !(Outcome{}).Drained() {
		t.Error("zero outcome is drained")
	}
	if (Outcome{Cancelled: true}).Drained() || (Outcome{Pending: 1}).Drained() || (Outcome{Err: errors.New("x")}).Drained() {
		t.Error("cancelled, pending or failed outcomes are not drained")
	}
}

func TestPoolIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New(enginetest.New(), nil).ID.String()
		if seen[id] {
			t.Fatalf("duplicate pool id %s", id)
		}
		seen[id] = true
	}
}
