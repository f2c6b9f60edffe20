package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"jobmill/internal/calendar"
	"jobmill/pkg/logx"
)

func newTestEngine() *Engine {
	return New(Config{Workers: 1, QueueSize: 8}, logx.Nop())
}

func TestScheduleCronIfAbsent(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	job := func(ctx context.Context) error { return nil }

	registered, err := e.ScheduleCron("t:job-v1", "0 0 2 * * ?", "", job)
	if err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}
	if !registered {
		t.Fatal("first registration should register")
	}
	if !e.Exists("t:job-v1") {
		t.Fatal("Exists should report the key")
	}

	registered, err = e.ScheduleCron("t:job-v1", "0 0 2 * * ?", "", job)
	if err != nil {
		t.Fatalf("second ScheduleCron: %v", err)
	}
	if registered {
		t.Fatal("second registration under the same key should be a no-op")
	}
}

func TestScheduleCronRejectsBadSpec(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	_, err := e.ScheduleCron("t:job-v1", "not a cron", "", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected parse error")
	}
	if e.Exists("t:job-v1") {
		t.Fatal("failed registration must not leave an entry behind")
	}
}

func TestScheduleCronRejectsUnknownCalendar(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	_, err := e.ScheduleCron("t:job-v1", "@hourly", "t:cal:missing", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("want ErrRejected, got %v", err)
	}
}

func TestFireNowUnknownKey(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	if err := e.FireNow("t:nothing-v1"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("want ErrNotRegistered, got %v", err)
	}
}

func TestFireNowRunsJob(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	var fired atomic.Int32
	_, err := e.ScheduleCron("t:job-v1", "0 0 2 * * ?", "", func(ctx context.Context) error {
		fired.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop(context.Background())

	// Two requests are two independent fires.
	if err := e.FireNow("t:job-v1"); err != nil {
		t.Fatalf("FireNow: %v", err)
	}
	if err := e.FireNow("t:job-v1"); err != nil {
		t.Fatalf("FireNow: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for fired.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("fired %d times, want 2", fired.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

type excludeAll struct{}

func (excludeAll) Excludes(time.Time) bool { return true }

func TestTickSuppressedByCalendar(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	var fired atomic.Int32
	if err := e.RegisterCalendar("t:cal:block", excludeAll{}); err != nil {
		t.Fatalf("RegisterCalendar: %v", err)
	}
	_, err := e.ScheduleCron("t:job-v1", "@hourly", "t:cal:block", func(ctx context.Context) error {
		fired.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}

	e.mu.Lock()
	ent := e.entries["t:job-v1"]
	e.mu.Unlock()

	// A tick at an excluded instant must not enqueue.
	e.tick(ent)
	if len(e.queue) != 0 {
		t.Fatal("excluded tick enqueued a task")
	}

	// Run-now bypasses the calendar.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop(context.Background())
	if err := e.FireNow("t:job-v1"); err != nil {
		t.Fatalf("FireNow: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for fired.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("run-now did not bypass the exclusion calendar")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTickEnqueuesWhenPermitted(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	if err := e.RegisterCalendar("t:cal:none", calendar.None); err != nil {
		t.Fatalf("RegisterCalendar: %v", err)
	}
	_, err := e.ScheduleCron("t:job-v1", "@hourly", "t:cal:none", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}
	e.mu.Lock()
	ent := e.entries["t:job-v1"]
	e.mu.Unlock()

	e.tick(ent)
	if len(e.queue) != 1 {
		t.Fatalf("queue len = %d, want 1", len(e.queue))
	}
}
