// Package importer executes the import pipeline for one claimed queue
// task: ledger transitions, fetch and normalize, dedup/upsert by external
// id, and per-item failure accounting.
package importer

import (
	"context"
	"time"

	"jobfeed/src/infrastructure/feed"
	"jobfeed/src/infrastructure/queue"
	"jobfeed/src/infrastructure/registry"
	"jobfeed/src/log"
	"jobfeed/src/storage/postgres/importrunctrl"
	"jobfeed/src/storage/postgres/jobctrl"
)

// JobStore persists canonical postings, keyed for dedup by external id.
type JobStore interface {
	GetByExternalID(ctx context.Context, externalID string) (*jobctrl.JobPosting, error)
	Create(ctx context.Context, posting *jobctrl.JobPosting) error
	Update(ctx context.Context, posting *jobctrl.JobPosting) error
}

// RunStore mutates the import ledger entry owned by the executing task.
type RunStore interface {
	MarkProcessing(ctx context.Context, id int64) error
	RecordFetched(ctx context.Context, id int64, n int) error
	Complete(ctx context.Context, id int64, stats importrunctrl.RunStats) error
	Fail(ctx context.Context, id int64, errorMessage string) error
}

// Fetcher retrieves and normalizes one feed endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint registry.Endpoint) (*feed.Result, error)
}

// RunEvent is published when a run reaches a terminal state.
type RunEvent struct {
	RunID     int64                   `json:"runId"`
	TaskID    string                  `json:"taskId"`
	Source    string                  `json:"source"`
	SourceURL string                  `json:"sourceUrl"`
	Status    importrunctrl.RunStatus `json:"status"`
	Stats     *importrunctrl.RunStats `json:"stats,omitempty"`
	Error     string                  `json:"error,omitempty"`
	At        time.Time               `json:"at"`
}

// Publisher emits terminal run events for downstream consumers. Optional.
type Publisher interface {
	PublishRunEvent(ctx context.Context, event RunEvent) error
}

// Pipeline implements queue.Executor.
type Pipeline struct {
	fetcher Fetcher
	jobs    JobStore
	runs    RunStore
	events  Publisher
}

func NewPipeline(fetcher Fetcher, jobs JobStore, runs RunStore, events Publisher) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		jobs:    jobs,
		runs:    runs,
		events:  events,
	}
}

// Execute runs the full pipeline for one task. It returns a non-nil error
// only when the fetch/parse stage failed; individual posting failures are
// captured in the run's FailedJobsDetails and the run still completes.
func (p *Pipeline) Execute(ctx context.Context, task *queue.Task) error {
	start := time.Now()

	if err := p.runs.MarkProcessing(ctx, task.ImportRunID); err != nil {
		return err
	}

	endpoint := endpointFor(task)
	result, err := p.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return err
	}

	// Fetched-count snapshot happens after item-level filtering: dropped
	// items never count as fetched.
	if err := p.runs.RecordFetched(ctx, task.ImportRunID, len(result.Jobs)); err != nil {
		return err
	}

	stats := p.upsertAll(ctx, task, endpoint, result)

	if err := p.runs.Complete(ctx, task.ImportRunID, stats); err != nil {
		return err
	}

	log.Info("import run completed",
		"import_run_id", task.ImportRunID,
		"source", task.Source,
		"fetched", len(result.Jobs),
		"imported", stats.TotalImported,
		"new", stats.NewJobs,
		"updated", stats.UpdatedJobs,
		"failed", stats.FailedJobs,
		"duration", time.Since(start).String(),
	)

	p.publish(ctx, RunEvent{
		RunID:     task.ImportRunID,
		TaskID:    task.ID,
		Source:    task.Source,
		SourceURL: task.FeedURL,
		Status:    importrunctrl.StatusCompleted,
		Stats:     &stats,
		At:        time.Now(),
	})

	return nil
}

// Abandon terminally fails the run after the task's retry budget is spent.
func (p *Pipeline) Abandon(ctx context.Context, task *queue.Task, cause error) {
	if err := p.runs.Fail(ctx, task.ImportRunID, cause.Error()); err != nil {
		log.Error(err, "failed to mark import run failed",
			"import_run_id", task.ImportRunID)
		return
	}

	p.publish(ctx, RunEvent{
		RunID:     task.ImportRunID,
		TaskID:    task.ID,
		Source:    task.Source,
		SourceURL: task.FeedURL,
		Status:    importrunctrl.StatusFailed,
		Error:     cause.Error(),
		At:        time.Now(),
	})
}

// upsertAll is the dedup/upsert engine: postings are processed
// sequentially in fetch order, insert-or-update keyed by external id, and
// a single bad record never aborts the batch.
func (p *Pipeline) upsertAll(ctx context.Context, task *queue.Task, endpoint registry.Endpoint, result *feed.Result) importrunctrl.RunStats {
	var stats importrunctrl.RunStats

	for i := range result.Jobs {
		job := &result.Jobs[i]
		posting := postingFromJob(job, task, endpoint, result.ChannelTitle)

		isNew, err := p.upsertOne(ctx, posting)
		if err != nil {
			stats.FailedJobs++
			stats.FailedJobsDetails = append(stats.FailedJobsDetails, importrunctrl.FailureDetail{
				ItemID: job.ExternalID,
				Reason: "persistence failure",
				Error:  err.Error(),
			})
			log.Error(err, "failed to import job posting",
				"external_id", job.ExternalID,
				"title", job.Title,
			)
			continue
		}

		stats.TotalImported++
		if isNew {
			stats.NewJobs++
		} else {
			stats.UpdatedJobs++
		}
	}

	return stats
}

func (p *Pipeline) upsertOne(ctx context.Context, posting *jobctrl.JobPosting) (bool, error) {
	existing, err := p.jobs.GetByExternalID(ctx, posting.ExternalID)
	if err != nil {
		return false, err
	}

	if existing != nil {
		return false, p.jobs.Update(ctx, posting)
	}
	return true, p.jobs.Create(ctx, posting)
}

func (p *Pipeline) publish(ctx context.Context, event RunEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishRunEvent(ctx, event); err != nil {
		log.Error(err, "failed to publish run event", "import_run_id", event.RunID)
	}
}

// endpointFor rebuilds the endpoint descriptor for a task, preferring the
// registry entry so the catalogue name is preserved.
func endpointFor(task *queue.Task) registry.Endpoint {
	for _, e := range registry.Endpoints() {
		if e.URL == task.FeedURL {
			return e
		}
	}
	return registry.Endpoint{
		Name:   task.Source,
		URL:    task.FeedURL,
		Source: registry.Source(task.Source),
	}
}

// postingFromJob maps a normalized feed record onto the stored schema.
func postingFromJob(job *feed.Job, task *queue.Task, endpoint registry.Endpoint, channelTitle string) *jobctrl.JobPosting {
	company := job.Company
	if company == "" {
		company = job.Institution
	}
	if company == "" {
		company = "Unknown"
	}

	location := job.Location
	if location == "" {
		location = job.Department
	}

	category := job.Category
	if category == "" {
		category = "General"
	}

	sourceName := channelTitle
	if sourceName == "" {
		sourceName = endpoint.Name
	}

	return &jobctrl.JobPosting{
		ExternalID:       job.ExternalID,
		Title:            job.Title,
		Company:          company,
		Location:         location,
		Description:      job.Description,
		ShortDescription: job.ShortDescription,
		Category:         category,
		JobType:          feed.NormalizeJobType(job.JobType),
		Salary:           job.Salary,
		PublishedDate:    job.Published,
		ApplicationURL:   job.Link,
		IsActive:         true,
		Source:           task.Source,
		SourceURL:        task.FeedURL,
		SourceName:       sourceName,
		Remote:           job.Remote,
	}
}
