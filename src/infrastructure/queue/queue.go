package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobfeed/src/log"
	"jobfeed/src/storage/postgres/importrunctrl"
)

// DefaultMaxAttempts bounds retries of the fetch/parse stage: the initial
// attempt plus two retries.
const DefaultMaxAttempts = 3

// RunCreator creates the ledger entry paired with each task.
type RunCreator interface {
	Create(ctx context.Context, source, sourceURL string) (*importrunctrl.ImportRun, error)
}

// Enqueued describes one queued task, returned to API callers.
type Enqueued struct {
	TaskID      string `json:"jobId"`
	ImportRunID int64  `json:"importLogId"`
	URL         string `json:"url"`
	Source      string `json:"source"`
}

// Service is the enqueue-side of the queue. Enqueuing is the only way to
// create work and always pairs one task with one fresh ImportRun.
type Service struct {
	tasks       *TaskStore
	runs        RunCreator
	maxAttempts int
}

func NewService(tasks *TaskStore, runs RunCreator, maxAttempts int) *Service {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		tasks:       tasks,
		runs:        runs,
		maxAttempts: maxAttempts,
	}
}

// Enqueue creates a pending ImportRun and a waiting task for the feed URL,
// eligible to run after the given delay.
func (s *Service) Enqueue(ctx context.Context, feedURL, source string, delay time.Duration) (*Enqueued, error) {
	run, err := s.runs.Create(ctx, source, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create import run: %w", err)
	}

	task := &Task{
		ID:          uuid.NewString(),
		FeedURL:     feedURL,
		Source:      source,
		ImportRunID: run.ID,
		Status:      TaskWaiting,
		MaxAttempts: s.maxAttempts,
		NextRunAt:   time.Now().Add(delay),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		// Leave the pending run behind; history shows the task never ran.
		return nil, err
	}

	log.Info("import task queued",
		"task_id", task.ID,
		"import_run_id", run.ID,
		"url", feedURL,
		"source", source,
		"delay", delay.String(),
	)

	return &Enqueued{
		TaskID:      task.ID,
		ImportRunID: run.ID,
		URL:         feedURL,
		Source:      source,
	}, nil
}

// Counts reports queue state for the status API.
func (s *Service) Counts(ctx context.Context) (*Counts, error) {
	return s.tasks.Counts(ctx)
}
