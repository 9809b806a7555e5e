// Package scheduler triggers periodic imports: an hourly UTC cron tick
// enqueues one task per registry endpoint with jitter to avoid bursts.
// It only produces queue entries, never executes the pipeline.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"

	"jobfeed/src/infrastructure/queue"
	"jobfeed/src/infrastructure/registry"
	"jobfeed/src/log"
)

// DefaultSpec fires at minute 0 of every hour.
const DefaultSpec = "0 * * * *"

// maxJitter spreads endpoint tasks over the first seconds of each sweep.
const maxJitter = 5 * time.Second

// Enqueuer creates one queued task per endpoint.
type Enqueuer interface {
	Enqueue(ctx context.Context, feedURL, source string, delay time.Duration) (*queue.Enqueued, error)
}

type Scheduler struct {
	cron    *cron.Cron
	queue   Enqueuer
	spec    string
	entryID cron.EntryID
}

func New(enqueuer Enqueuer, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		queue: enqueuer,
		spec:  spec,
	}
}

// Start registers the cron entry and begins ticking. Sweep failures are
// logged; the next tick is unaffected.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.ImportAll(ctx); err != nil {
			log.Error(err, "scheduled import sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register cron entry: %w", err)
	}
	s.entryID = id

	s.cron.Start()
	log.Info("scheduler started", "spec", s.spec)
	return nil
}

// Stop halts the cron loop; a sweep in progress finishes on its own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info("scheduler stopped")
}

// ImportAll enqueues an import task for every registry endpoint, each
// delayed by a random 0-5s to spread load across the provider set. Also
// invoked on demand by the control API. A single endpoint's enqueue
// failure does not stop the sweep.
func (s *Scheduler) ImportAll(ctx context.Context) ([]queue.Enqueued, error) {
	endpoints := registry.Endpoints()
	log.Info("import sweep started", "endpoints", len(endpoints))

	var queued []queue.Enqueued
	var lastErr error

	for _, endpoint := range endpoints {
		delay := time.Duration(rand.Int63n(int64(maxJitter)))
		enq, err := s.queue.Enqueue(ctx, endpoint.URL, string(endpoint.Source), delay)
		if err != nil {
			lastErr = err
			log.Error(err, "failed to enqueue import task", "endpoint", endpoint.Name)
			continue
		}
		queued = append(queued, *enq)
	}

	if len(queued) == 0 && lastErr != nil {
		return nil, fmt.Errorf("import sweep enqueued nothing: %w", lastErr)
	}

	log.Info("import sweep queued", "tasks", len(queued))
	return queued, nil
}
