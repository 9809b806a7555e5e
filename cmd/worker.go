package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobfeed/src/core/importer"
	"jobfeed/src/infrastructure/events"
	"jobfeed/src/infrastructure/feed"
	"jobfeed/src/infrastructure/queue"
	"jobfeed/src/storage/postgres/importrunctrl"
	"jobfeed/src/storage/postgres/jobctrl"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the import worker pool",
	Long: `The worker command runs the fixed-size pool that claims queued
import tasks and executes the fetch, normalize and upsert pipeline,
plus queue maintenance (stale task reclaim and history trimming).`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	settingDefaultConfig()
}

func runWorker(cmd *cobra.Command, args []string) error {
	db, cleanup, err := openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	jobService, err := jobctrl.NewJobService(db)
	if err != nil {
		return err
	}

	runService, err := importrunctrl.NewImportRunService(db)
	if err != nil {
		return err
	}

	fetcher, err := feed.NewFetcher(viper.GetDuration("importer.fetch_timeout"))
	if err != nil {
		return err
	}

	// Import events are optional; without a broker the worker still runs.
	var publisher importer.Publisher
	if amqpURL := viper.GetString("amqp.url"); amqpURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(amqpURL, watermill.NewStdLogger(false, false))
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		log.Println("AMQP_URL not set, import event publishing disabled")
	}

	pipeline := importer.NewPipeline(fetcher, jobService, runService, publisher)

	taskStore := queue.NewTaskStore(db)
	pool := queue.NewWorkerPool(taskStore, pipeline, queue.Config{
		Concurrency:    viper.GetInt("importer.concurrency"),
		PollInterval:   viper.GetDuration("importer.poll_interval"),
		InitialBackoff: viper.GetDuration("importer.initial_backoff"),
		StaleAfter:     viper.GetDuration("importer.stale_after"),
		Retention:      viper.GetInt("importer.retention"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Println("Shutting down...")
	cancel()
	<-done
	log.Println("Worker pool stopped")

	return nil
}
