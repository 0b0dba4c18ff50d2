package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// WHAT: the scheduler sweeps immediately on start, then on every tick, and
// stops when the context is cancelled.
func TestSchedulerRunsImmediatelyAndOnTick(t *testing.T) {
	var runs atomic.Int32
	s := New(func(ctx context.Context) (int, error) {
		runs.Add(1)
		return 0, nil
	}, Config{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("runs = %d after deadline", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

// WHAT: a failing sweep does not stop the loop.
// WHY: a transient fetch or model outage must not end monitoring until
// someone restarts the process.
func TestSchedulerSurvivesSweepError(t *testing.T) {
	var runs atomic.Int32
	s := New(func(ctx context.Context) (int, error) {
		runs.Add(1)
		return 0, errors.New("upstream down")
	}, Config{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if runs.Load() < 2 {
		t.Fatalf("runs = %d, want the loop to continue past errors", runs.Load())
	}
}
