package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt, 5*time.Second); got != tt.want {
			t.Errorf("Backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", cfg.Concurrency)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %s, want 1s", cfg.PollInterval)
	}
	if cfg.InitialBackoff != 5*time.Second {
		t.Errorf("InitialBackoff = %s, want 5s", cfg.InitialBackoff)
	}
	if cfg.StaleAfter != 10*time.Minute {
		t.Errorf("StaleAfter = %s, want 10m", cfg.StaleAfter)
	}
	if cfg.Retention != 50 {
		t.Errorf("Retention = %d, want 50", cfg.Retention)
	}
}

type fakeStore struct {
	mu sync.Mutex

	completed   []string
	failed      []string
	rescheduled []rescheduleCall
}

type rescheduleCall struct {
	id        string
	delay     time.Duration
	lastError string
}

func (s *fakeStore) ClaimNext(context.Context) (*Task, error) { return nil, ErrNoTask }

func (s *fakeStore) Reschedule(_ context.Context, id string, delay time.Duration, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescheduled = append(s.rescheduled, rescheduleCall{id, delay, lastError})
	return nil
}

func (s *fakeStore) MarkCompleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *fakeStore) ReclaimStale(context.Context, time.Duration) (int64, error) { return 0, nil }
func (s *fakeStore) TrimHistory(context.Context, int) error                     { return nil }

type fakeExecutor struct {
	err       error
	executed  int
	abandoned []error
}

func (e *fakeExecutor) Execute(context.Context, *Task) error {
	e.executed++
	return e.err
}

func (e *fakeExecutor) Abandon(_ context.Context, _ *Task, cause error) {
	e.abandoned = append(e.abandoned, cause)
}

func TestRunTaskSuccess(t *testing.T) {
	store := &fakeStore{}
	exec := &fakeExecutor{}
	pool := NewWorkerPool(store, exec, Config{})

	pool.runTask(context.Background(), 0, &Task{ID: "t1", Attempt: 1, MaxAttempts: 3})

	if exec.executed != 1 {
		t.Fatalf("executed = %d, want 1", exec.executed)
	}
	if len(store.completed) != 1 || store.completed[0] != "t1" {
		t.Errorf("completed = %v, want [t1]", store.completed)
	}
	if len(store.rescheduled) != 0 || len(store.failed) != 0 {
		t.Error("successful task must not be rescheduled or failed")
	}
}

func TestRunTaskRetriesWithBackoff(t *testing.T) {
	store := &fakeStore{}
	exec := &fakeExecutor{err: errors.New("fetch failed: status 500")}
	pool := NewWorkerPool(store, exec, Config{InitialBackoff: 5 * time.Second})

	pool.runTask(context.Background(), 0, &Task{ID: "t1", Attempt: 1, MaxAttempts: 3})
	pool.runTask(context.Background(), 0, &Task{ID: "t1", Attempt: 2, MaxAttempts: 3})

	if len(store.rescheduled) != 2 {
		t.Fatalf("rescheduled %d times, want 2", len(store.rescheduled))
	}
	if store.rescheduled[0].delay != 5*time.Second {
		t.Errorf("first retry delay = %s, want 5s", store.rescheduled[0].delay)
	}
	if store.rescheduled[1].delay != 10*time.Second {
		t.Errorf("second retry delay = %s, want 10s", store.rescheduled[1].delay)
	}
	if store.rescheduled[0].lastError != "fetch failed: status 500" {
		t.Errorf("lastError = %q", store.rescheduled[0].lastError)
	}
	if len(store.failed) != 0 || len(exec.abandoned) != 0 {
		t.Error("task with attempts remaining must not be abandoned")
	}
}

func TestRunTaskExhaustsRetries(t *testing.T) {
	store := &fakeStore{}
	cause := errors.New("fetch failed: status 500")
	exec := &fakeExecutor{err: cause}
	pool := NewWorkerPool(store, exec, Config{})

	pool.runTask(context.Background(), 0, &Task{ID: "t1", Attempt: 3, MaxAttempts: 3})

	if len(store.rescheduled) != 0 {
		t.Error("exhausted task must not be rescheduled")
	}
	if len(store.failed) != 1 || store.failed[0] != "t1" {
		t.Errorf("failed = %v, want [t1]", store.failed)
	}
	if len(exec.abandoned) != 1 || !errors.Is(exec.abandoned[0], cause) {
		t.Errorf("abandoned = %v, want the execute error", exec.abandoned)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	pool := NewWorkerPool(&fakeStore{}, &fakeExecutor{}, Config{
		PollInterval:        10 * time.Millisecond,
		MaintenanceInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
