package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type testOutcome struct {
	err error
	id  int
}

func (o *testOutcome) Err() error { return o.err }

type testTask struct {
	id       int
	fail     bool
	duration time.Duration
	executed *int32
}

func (t *testTask) Run(ctx context.Context) Outcome {
	if t.executed != nil {
		atomic.AddInt32(t.executed, 1)
	}
	if t.duration > 0 {
		select {
		case <-time.After(t.duration):
		case <-ctx.Done():
			return &testOutcome{err: ctx.Err(), id: t.id}
		}
	}
	if t.fail {
		return &testOutcome{err: errors.New("task failed"), id: t.id}
	}
	return &testOutcome{id: t.id}
}

func TestNewPool_WorkerFloor(t *testing.T) {
	for _, workers := range []int{0, -3} {
		p := NewPool(workers)
		if p.workers != 1 {
			t.Errorf("NewPool(%d).workers = %d, want 1", workers, p.workers)
		}
	}
}

func TestPool_AllTasksComplete(t *testing.T) {
	var executed int32
	pool := NewPool(4)
	pool.Start()

	for i := 0; i < 20; i++ {
		pool.Submit(&testTask{id: i, executed: &executed})
	}
	outcomes := pool.Wait()

	if len(outcomes) != 20 {
		t.Errorf("got %d outcomes, want 20", len(outcomes))
	}
	if n := atomic.LoadInt32(&executed); n != 20 {
		t.Errorf("executed %d tasks, want 20", n)
	}
}

func TestPool_FailureIsolation(t *testing.T) {
	pool := NewPool(3)
	pool.Start()

	for i := 0; i < 10; i++ {
		pool.Submit(&testTask{id: i, fail: i == 4})
	}
	outcomes := pool.Wait()

	if len(outcomes) != 10 {
		t.Fatalf("got %d outcomes, want 10: one failure must not cancel siblings", len(outcomes))
	}

	failures := 0
	for _, outcome := range outcomes {
		if outcome.Err() != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("got %d failures, want 1", failures)
	}
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(&testTask{id: 0, duration: 5 * time.Second})
	pool.Submit(&testTask{id: 1, duration: 5 * time.Second})

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not cancel in-flight tasks")
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(1, 2)

	if !limiter.Allow() || !limiter.Allow() {
		t.Error("burst of 2 should allow two immediate requests")
	}
	if limiter.Allow() {
		t.Error("third immediate request should be rate limited")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow() {
			t.Fatal("zero rate should mean unlimited")
		}
	}
}
