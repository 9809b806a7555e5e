// Package importrunctrl owns the import ledger: one ImportRun row per
// queued task, the durable source of truth for import history.
package importrunctrl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// RunStatus moves forward only: pending -> processing -> completed|failed.
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Terminal reports whether s permits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrRunFinalized is returned when a mutation targets a run already in a
// terminal state. That is a programming error, not an expected condition.
var ErrRunFinalized = errors.New("import run already finalized")

// ErrRunNotFound is returned when no run exists for the given id.
var ErrRunNotFound = errors.New("import run not found")

// FailureDetail records one posting that failed normalization or
// persistence during a run.
type FailureDetail struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// RunStats carries the accumulated counters of a completed batch.
type RunStats struct {
	TotalImported     int             `json:"totalImported"`
	NewJobs           int             `json:"newJobs"`
	UpdatedJobs       int             `json:"updatedJobs"`
	FailedJobs        int             `json:"failedJobs"`
	FailedJobsDetails []FailureDetail `json:"failedJobsDetails"`
}

type ImportRun struct {
	ID                int64           `gorm:"primaryKey" json:"id"`
	Source            string          `gorm:"index;not null" json:"source"`
	SourceURL         string          `gorm:"column:source_url;not null" json:"sourceUrl"`
	Status            RunStatus       `gorm:"index;not null" json:"status"`
	TotalFetched      int             `json:"totalFetched"`
	TotalImported     int             `json:"totalImported"`
	NewJobs           int             `json:"newJobs"`
	UpdatedJobs       int             `json:"updatedJobs"`
	FailedJobs        int             `json:"failedJobs"`
	FailedJobsDetails []FailureDetail `gorm:"serializer:json" json:"failedJobsDetails"`
	StartTime         time.Time       `json:"startTime"`
	EndTime           *time.Time      `json:"endTime"`
	Duration          int64           `json:"duration"` // milliseconds
	ErrorMessage      string          `json:"errorMessage"`
	CreatedAt         time.Time       `gorm:"index:idx_import_runs_created,sort:desc" json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type ImportRunService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewImportRunService(db *gorm.DB) (*ImportRunService, error) {
	node, err := snowflake.NewNode(2) // Node number 2 for import runs
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &ImportRunService{
		db:        db,
		snowflake: node,
	}, nil
}

// Create records a new pending run for one feed endpoint.
func (s *ImportRunService) Create(ctx context.Context, source, sourceURL string) (*ImportRun, error) {
	run := &ImportRun{
		ID:        s.snowflake.Generate().Int64(),
		Source:    source,
		SourceURL: sourceURL,
		Status:    StatusPending,
		StartTime: time.Now(),
	}

	result := s.db.WithContext(ctx).Create(run)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create import run: %v", result.Error)
	}
	return run, nil
}

// MarkProcessing transitions the run out of pending at task start. Retried
// attempts call it again, which refreshes StartTime so Duration measures
// the attempt that actually completed.
func (s *ImportRunService) MarkProcessing(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Model(&ImportRun{}).
		Where("id = ? AND status IN ?", id, []RunStatus{StatusPending, StatusProcessing}).
		Updates(map[string]interface{}{
			"status":     StatusProcessing,
			"start_time": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark import run processing: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.guardError(ctx, id)
	}
	return nil
}

// RecordFetched snapshots the number of normalized records the fetch
// produced, before any posting-level processing.
func (s *ImportRunService) RecordFetched(ctx context.Context, id int64, n int) error {
	result := s.db.WithContext(ctx).Model(&ImportRun{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Update("total_fetched", n)
	if result.Error != nil {
		return fmt.Errorf("failed to record fetched count: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.guardError(ctx, id)
	}
	return nil
}

// Complete finalizes the run with the accumulated batch statistics. A run
// completes even when some individual postings failed.
func (s *ImportRunService) Complete(ctx context.Context, id int64, stats RunStats) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&ImportRun{}).
		Where("id = ? AND status IN ?", id, []RunStatus{StatusPending, StatusProcessing}).
		Updates(map[string]interface{}{
			"status":              StatusCompleted,
			"total_imported":      stats.TotalImported,
			"new_jobs":            stats.NewJobs,
			"updated_jobs":        stats.UpdatedJobs,
			"failed_jobs":         stats.FailedJobs,
			"failed_jobs_details": stats.FailedJobsDetails,
			"end_time":            now,
			"duration":            gorm.Expr("(EXTRACT(EPOCH FROM (?::timestamptz - start_time)) * 1000)::bigint", now),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete import run: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.guardError(ctx, id)
	}
	return nil
}

// Fail marks the run terminally failed, capturing the last error. Used
// when the fetch/parse stage threw and the retry budget is exhausted.
func (s *ImportRunService) Fail(ctx context.Context, id int64, errorMessage string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&ImportRun{}).
		Where("id = ? AND status IN ?", id, []RunStatus{StatusPending, StatusProcessing}).
		Updates(map[string]interface{}{
			"status":        StatusFailed,
			"error_message": errorMessage,
			"end_time":      now,
			"duration":      gorm.Expr("(EXTRACT(EPOCH FROM (?::timestamptz - start_time)) * 1000)::bigint", now),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to fail import run: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.guardError(ctx, id)
	}
	return nil
}

// Get returns one run by id.
func (s *ImportRunService) Get(ctx context.Context, id int64) (*ImportRun, error) {
	var run ImportRun
	result := s.db.WithContext(ctx).First(&run, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get import run: %v", result.Error)
	}
	return &run, nil
}

// List returns a page of runs ordered by creation time descending,
// optionally filtered by source, plus the total match count.
func (s *ImportRunService) List(ctx context.Context, page, limit int, source string) ([]ImportRun, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	query := s.db.WithContext(ctx).Model(&ImportRun{})
	if source != "" {
		query = query.Where("source = ?", source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count import runs: %v", err)
	}

	var runs []ImportRun
	result := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&runs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list import runs: %v", result.Error)
	}

	return runs, total, nil
}

// guardError distinguishes a missing run from a terminal-state violation
// after a guarded update matched no rows.
func (s *ImportRunService) guardError(ctx context.Context, id int64) error {
	var run ImportRun
	result := s.db.WithContext(ctx).Select("status").First(&run, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrRunNotFound
		}
		return fmt.Errorf("failed to check import run state: %v", result.Error)
	}
	if run.Status.Terminal() {
		return ErrRunFinalized
	}
	return fmt.Errorf("import run %d in unexpected state %s", id, run.Status)
}
