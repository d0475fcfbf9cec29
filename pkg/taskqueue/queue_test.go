package taskqueue //nolint:testpackage // white-box tests for the serialized queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPush_RunsTaskAndReturnsItsError(t *testing.T) {
	q := New()

	ran := false
	if err := q.Push(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("task did not run")
	}

	want := errors.New("boom")
	err := q.Push(context.Background(), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("error: got %v, want %v", err, want)
	}
}

func TestPush_TasksRunInSubmissionOrderWithoutOverlap(t *testing.T) {
	q := New()

	const n = 20
	var (
		order   []int
		orderMu sync.Mutex
		inTask  atomic.Int32
		wg      sync.WaitGroup
	)

	// Hold the first task open until all others are queued, so submission
	// order is fixed before anything beyond task 0 runs.
	release := make(chan struct{})
	started := make(chan struct{})
	queued := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			queued <- struct{}{}
			_ = q.Push(context.Background(), func(ctx context.Context) error {
				if inTask.Add(1) != 1 {
					t.Error("two tasks ran concurrently")
				}
				if i == 0 {
					close(started)
					<-release
				}
				orderMu.Lock()
				order = append(order, i)
				orderMu.Unlock()
				inTask.Add(-1)
				return nil
			})
		}()
		<-queued
		if i == 0 {
			// Wait for the drain goroutine to begin task 0 so later
			// pushes queue behind it and Len counts only them.
			<-started
		} else {
			// Wait for push i to land in the pending list before
			// spawning push i+1, fixing submission order.
			i := i
			waitUntil(t, func() bool { return q.Len() == i })
		}
	}
	close(release)
	wg.Wait()

	if len(order) != n {
		t.Fatalf("ran %d tasks, want %d", len(order), n)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d]: got %d, want %d (full order %v)", i, got, i, order)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("pending after drain: got %d, want 0", q.Len())
	}
	waitUntil(t, func() bool { return !q.Running() })
}

func TestPush_FailureDoesNotBlockNextTask(t *testing.T) {
	q := New()

	_ = q.Push(context.Background(), func(ctx context.Context) error {
		return errors.New("first fails")
	})

	ran := false
	if err := q.Push(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("second task did not run after first failed")
	}
}

func TestPush_PanicIsReportedAsError(t *testing.T) {
	q := New()

	err := q.Push(context.Background(), func(ctx context.Context) error {
		panic("bad task")
	})
	if err == nil {
		t.Fatal("expected error from panicking task")
	}

	// Queue still works afterwards.
	if err := q.Push(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("queue dead after panic: %v", err)
	}
}

func TestPush_CancelledWaiterStillRunsTask(t *testing.T) {
	q := New()

	block := make(chan struct{})
	go func() {
		_ = q.Push(context.Background(), func(ctx context.Context) error {
			<-block
			return nil
		})
	}()
	waitUntil(t, func() bool { return q.Running() })

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Push(ctx, func(ctx context.Context) error {
			close(ran)
			return nil
		})
	}()
	waitUntil(t, func() bool { return q.Len() == 1 })

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("error: got %v, want context.Canceled", err)
	}

	close(block)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned task never ran")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
