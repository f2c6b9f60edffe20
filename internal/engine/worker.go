package engine

import (
	"context"
	"runtime/debug"
	"time"

	"jobmill/pkg/logx"
)

// Start launches the cron runner and the worker pool. Calling Start on a
// started engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	e.stopCh = make(chan struct{})
	e.runCtx, e.runCancel = context.WithCancel(ctx)

	// Local captures prevent races if fields are swapped during Stop().
	runCtx := e.runCtx
	stopCh := e.stopCh
	queue := e.queue

	e.workerWG.Add(e.cfg.Workers)
	for i := 0; i < e.cfg.Workers; i++ {
		idx := i
		go func() {
			defer e.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("panic in engine worker",
						logx.Int("worker", idx),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			e.worker(runCtx, stopCh, queue)
		}()
	}
	e.c.Start()
	e.log.Info("engine started",
		logx.Int("workers", e.cfg.Workers),
		logx.String("tz", e.loc.String()),
		logx.Int("schedules", len(e.entries)))
}

// Stop halts cron evaluation and waits for workers to drain, up to ctx.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	stopCh := e.stopCh
	cancel := e.runCancel
	c := e.c
	e.stopCh = nil
	e.runCancel = nil
	e.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	<-c.Stop().Done()

	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.log.Info("engine stopped")
	case <-ctx.Done():
		// workers finish in background
	}
}

func (e *Engine) enqueue(t task) {
	select {
	case e.queue <- t:
	default:
		e.log.Warn("engine queue full; dropping task",
			logx.String("key", t.key),
			logx.Int("queue_len", len(e.queue)),
			logx.Int("queue_cap", cap(e.queue)))
	}
}

func (e *Engine) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			e.execOne(ctx, t)
		}
	}
}

func (e *Engine) execOne(ctx context.Context, t task) {
	start := time.Now()
	runCtx := ctx
	var cancel context.CancelFunc
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
	}
	err := t.run(runCtx)
	if cancel != nil {
		cancel()
	}

	dur := time.Since(start)
	if err != nil {
		e.log.Warn("job failed", logx.String("key", t.key), logx.Err(err), logx.Duration("dur", dur))
		return
	}
	// Avoid noisy logs for very frequent jobs: only elevate to INFO when it
	// took noticeable time.
	if dur >= 750*time.Millisecond {
		e.log.Info("job completed", logx.String("key", t.key), logx.Duration("dur", dur))
	} else {
		e.log.Debug("job completed", logx.String("key", t.key), logx.Duration("dur", dur))
	}
}
