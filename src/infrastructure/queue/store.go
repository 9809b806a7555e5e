package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoTask is returned by ClaimNext when no task is due.
var ErrNoTask = errors.New("no task due")

// TaskStore persists queue tasks in postgres.
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, task *Task) error {
	result := s.db.WithContext(ctx).Create(task)
	if result.Error != nil {
		return fmt.Errorf("failed to create task: %v", result.Error)
	}
	return nil
}

// ClaimNext atomically claims the earliest due waiting task for the
// calling worker: the row is locked with SKIP LOCKED and flipped to
// active with its attempt counter incremented before the transaction
// ends, so no two workers ever hold the same task.
func (s *TaskStore) ClaimNext(ctx context.Context) (*Task, error) {
	var task Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_run_at <= ?", TaskWaiting, time.Now()).
			Order("next_run_at").
			Limit(1).
			Find(&task)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNoTask
		}

		task.Status = TaskActive
		task.Attempt++
		return tx.Model(&Task{}).Where("id = ?", task.ID).
			Updates(map[string]interface{}{
				"status":  TaskActive,
				"attempt": task.Attempt,
			}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNoTask) {
			return nil, ErrNoTask
		}
		return nil, fmt.Errorf("failed to claim task: %v", err)
	}

	return &task, nil
}

// Reschedule puts a retryable task back in the waiting state, eligible
// again after the given delay.
func (s *TaskStore) Reschedule(ctx context.Context, id string, delay time.Duration, lastError string) error {
	result := s.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      TaskWaiting,
			"next_run_at": time.Now().Add(delay),
			"last_error":  lastError,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reschedule task: %v", result.Error)
	}
	return nil
}

func (s *TaskStore) MarkCompleted(ctx context.Context, id string) error {
	return s.finish(ctx, id, TaskCompleted, "")
}

func (s *TaskStore) MarkFailed(ctx context.Context, id, lastError string) error {
	return s.finish(ctx, id, TaskFailed, lastError)
}

func (s *TaskStore) finish(ctx context.Context, id string, status TaskStatus, lastError string) error {
	result := s.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark task %s: %v", status, result.Error)
	}
	return nil
}

// Counts summarizes the queue state for the status API.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}

func (s *TaskStore) Counts(ctx context.Context) (*Counts, error) {
	type row struct {
		Status TaskStatus
		Count  int64
	}
	var rows []row
	result := s.db.WithContext(ctx).Model(&Task{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to count tasks: %v", result.Error)
	}

	var counts Counts
	for _, r := range rows {
		switch r.Status {
		case TaskWaiting:
			counts.Waiting = r.Count
		case TaskActive:
			counts.Active = r.Count
		case TaskCompleted:
			counts.Completed = r.Count
		case TaskFailed:
			counts.Failed = r.Count
		}
		counts.Total += r.Count
	}
	return &counts, nil
}

// ReclaimStale returns tasks stuck in active longer than maxAge to the
// waiting state. Covers worker crashes between claim and finish.
func (s *TaskStore) ReclaimStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Task{}).
		Where("status = ? AND updated_at < ?", TaskActive, time.Now().Add(-maxAge)).
		Updates(map[string]interface{}{
			"status":      TaskWaiting,
			"next_run_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reclaim stale tasks: %v", result.Error)
	}
	return result.RowsAffected, nil
}

// TrimHistory evicts completed and failed tasks beyond the retention cap,
// oldest first. The ImportRun ledger is untouched; it is the durable
// record of import history.
func (s *TaskStore) TrimHistory(ctx context.Context, retain int) error {
	for _, status := range []TaskStatus{TaskCompleted, TaskFailed} {
		err := s.db.WithContext(ctx).
			Where("status = ? AND id NOT IN (?)", status,
				s.db.Model(&Task{}).
					Select("id").
					Where("status = ?", status).
					Order("updated_at DESC").
					Limit(retain),
			).
			Delete(&Task{}).Error
		if err != nil {
			return fmt.Errorf("failed to trim %s tasks: %v", status, err)
		}
	}
	return nil
}
