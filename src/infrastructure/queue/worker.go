package queue

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"jobfeed/src/log"
)

// Executor runs the fetch -> normalize -> upsert pipeline for one claimed
// task. Execute returns a non-nil error only when the fetch/parse stage
// failed before any posting-level processing; those tasks are retried.
// Abandon is invoked once the retry budget is exhausted so the paired
// ImportRun can be terminally failed.
type Executor interface {
	Execute(ctx context.Context, task *Task) error
	Abandon(ctx context.Context, task *Task, cause error)
}

// Store is the subset of TaskStore the worker pool needs.
type Store interface {
	ClaimNext(ctx context.Context) (*Task, error)
	Reschedule(ctx context.Context, id string, delay time.Duration, lastError string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, lastError string) error
	ReclaimStale(ctx context.Context, maxAge time.Duration) (int64, error)
	TrimHistory(ctx context.Context, retain int) error
}

// Config tunes the worker pool. Zero values fall back to defaults.
type Config struct {
	Concurrency         int           // parallel workers, default 2
	PollInterval        time.Duration // idle claim poll interval, default 1s
	InitialBackoff      time.Duration // first retry delay, default 5s
	StaleAfter          time.Duration // active tasks older than this are reclaimed, default 10m
	Retention           int           // completed/failed tasks kept, default 50
	MaintenanceInterval time.Duration // default 30s
}

func (c *Config) applyDefaults() {
	if c.Concurrency < 1 {
		c.Concurrency = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 5 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 10 * time.Minute
	}
	if c.Retention < 1 {
		c.Retention = 50
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = 30 * time.Second
	}
}

// WorkerPool claims due tasks and executes them with bounded concurrency.
// Each task is owned by exactly one worker at a time; the claim query
// enforces that, not a process-level lock.
type WorkerPool struct {
	store Store
	exec  Executor
	cfg   Config
}

func NewWorkerPool(store Store, exec Executor, cfg Config) *WorkerPool {
	cfg.applyDefaults()
	return &WorkerPool{
		store: store,
		exec:  exec,
		cfg:   cfg,
	}
}

// Run starts the workers and the maintenance loop, blocking until ctx is
// cancelled. In-progress tasks finish their current execution; nothing is
// interrupted mid-pipeline beyond the fetch's own timeout.
func (p *WorkerPool) Run(ctx context.Context) {
	log.Info("worker pool started",
		"concurrency", p.cfg.Concurrency,
		"poll_interval", p.cfg.PollInterval.String(),
	)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.workerLoop(ctx, worker)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.maintenanceLoop(ctx)
	}()

	wg.Wait()
	log.Info("worker pool stopped")
}

func (p *WorkerPool) workerLoop(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := p.store.ClaimNext(ctx)
		if err != nil {
			if !errors.Is(err, ErrNoTask) && ctx.Err() == nil {
				log.Error(err, "task claim failed", "worker", worker)
			}
			p.idle(ctx)
			continue
		}

		p.runTask(ctx, worker, task)
	}
}

// idle sleeps one poll interval with jitter so idle workers do not hit the
// store in lockstep.
func (p *WorkerPool) idle(ctx context.Context) {
	jitter := time.Duration(rand.Int63n(int64(p.cfg.PollInterval) / 2))
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.PollInterval + jitter):
	}
}

func (p *WorkerPool) runTask(ctx context.Context, worker int, task *Task) {
	log.Info("processing task",
		"worker", worker,
		"task_id", task.ID,
		"import_run_id", task.ImportRunID,
		"attempt", task.Attempt,
		"url", task.FeedURL,
	)

	err := p.exec.Execute(ctx, task)
	if err == nil {
		if markErr := p.store.MarkCompleted(ctx, task.ID); markErr != nil {
			log.Error(markErr, "failed to mark task completed", "task_id", task.ID)
		}
		return
	}

	if task.Attempt < task.MaxAttempts {
		delay := Backoff(task.Attempt, p.cfg.InitialBackoff)
		log.Info("task failed, retrying",
			"task_id", task.ID,
			"attempt", task.Attempt,
			"max_attempts", task.MaxAttempts,
			"backoff", delay.String(),
			"error", err.Error(),
		)
		if reErr := p.store.Reschedule(ctx, task.ID, delay, err.Error()); reErr != nil {
			log.Error(reErr, "failed to reschedule task", "task_id", task.ID)
		}
		return
	}

	log.Error(err, "task exhausted retries, abandoning",
		"task_id", task.ID,
		"attempts", task.Attempt,
	)
	if markErr := p.store.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
		log.Error(markErr, "failed to mark task failed", "task_id", task.ID)
	}
	p.exec.Abandon(ctx, task, err)
}

func (p *WorkerPool) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.store.ReclaimStale(ctx, p.cfg.StaleAfter); err != nil {
				log.Error(err, "stale task reclaim failed")
			} else if n > 0 {
				log.Info("reclaimed stale tasks", "count", n)
			}
			if err := p.store.TrimHistory(ctx, p.cfg.Retention); err != nil {
				log.Error(err, "task history trim failed")
			}
		}
	}
}
