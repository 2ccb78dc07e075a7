package later

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue()
	var got []int
	for i := 0; i < 5; i++ {
		if err := q.Schedule(func(arg interface{}) { got = append(got, arg.(int)) }, i, 0); err != nil {
			t.Fatal(err)
		}
	}
	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}
	if n := q.RunPending(); n != 5 {
		t.Fatalf("RunPending() = %d, want 5", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestQueueNestedScheduleWaitsForNextTurn(t *testing.T) {
	q := NewQueue()
	ran := 0
	q.Schedule(func(interface{}) {
		ran++
		q.Schedule(func(interface{}) { ran++ }, nil, 0)
	}, nil, 0)
	if n := q.RunPending(); n != 1 || ran != 1 {
		t.Fatalf("first turn ran %d (%d)", n, ran)
	}
	if n := q.RunPending(); n != 1 || ran != 2 {
		t.Fatalf("second turn ran %d (%d)", n, ran)
	}
}

func TestQueueDelayed(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})
	q.Schedule(func(interface{}) { close(done) }, nil, 20*time.Millisecond)
	if q.RunPending() != 0 {
		t.Fatal("delayed job ran early")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go q.Run(ctx)
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("delayed job never ran")
	}
}

func TestQueueRunReturnsWhenClosedAndDrained(t *testing.T) {
	q := NewQueue()
	ran := false
	q.Schedule(func(interface{}) { ran = true }, nil, 0)
	q.Schedule(func(interface{}) {}, nil, time.Hour)
	q.Close()

	if err := q.Schedule(func(interface{}) {}, nil, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Schedule after Close = %v, want ErrClosed", err)
	}
	if err := q.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Error("job queued before Close did not run")
	}
}

func TestQueueRunHonoursContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Schedule(func(interface{}) {}, nil, 0)
			}
		}()
	}
	wg.Wait()
	if n := q.RunPending(); n != 1000 {
		t.Errorf("RunPending() = %d, want 1000", n)
	}
}

func TestQueueNilCallback(t *testing.T) {
	if err := NewQueue().Schedule(nil, nil, 0); err == nil {
		t.Error("expected error for nil callback")
	}
}
