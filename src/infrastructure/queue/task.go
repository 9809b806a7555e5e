// Package queue implements the durable task queue driving feed imports:
// explicit task rows with attempt counters and next-eligible times,
// claimed by a fixed-size worker pool.
package queue

import (
	"time"
)

type TaskStatus string

const (
	TaskWaiting   TaskStatus = "waiting"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is one queued unit of work, paired 1:1 with an ImportRun. Attempt
// counts the claim currently executing (1-based once claimed).
type Task struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	FeedURL     string     `gorm:"column:feed_url;not null" json:"feedUrl"`
	Source      string     `gorm:"not null" json:"source"`
	ImportRunID int64      `gorm:"column:import_run_id;not null" json:"importRunId"`
	Status      TaskStatus `gorm:"index:idx_tasks_status_next_run;not null" json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `gorm:"column:max_attempts" json:"maxAttempts"`
	NextRunAt   time.Time  `gorm:"index:idx_tasks_status_next_run;column:next_run_at" json:"nextRunAt"`
	LastError   string     `gorm:"column:last_error" json:"lastError"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Task) TableName() string {
	return "queue_tasks"
}

// Backoff returns the delay before re-running a task whose given attempt
// just failed: initial, 2*initial, 4*initial, ...
func Backoff(attempt int, initial time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	return backoff
}
