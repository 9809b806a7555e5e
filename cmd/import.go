package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobfeed/src/infrastructure/queue"
	"jobfeed/src/infrastructure/scheduler"
	"jobfeed/src/storage/postgres/importrunctrl"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Enqueue an import for every registry endpoint",
	Long: `The import command performs one full-registry sweep: it creates a
pending import run and a queued task for each known feed endpoint, then
exits. A running worker picks the tasks up.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	settingDefaultConfig()
}

func runImport(cmd *cobra.Command, args []string) error {
	db, cleanup, err := openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	runService, err := importrunctrl.NewImportRunService(db)
	if err != nil {
		return err
	}

	taskStore := queue.NewTaskStore(db)
	queueService := queue.NewService(taskStore, runService, viper.GetInt("importer.max_attempts"))

	sched := scheduler.New(queueService, viper.GetString("scheduler.spec"))
	queued, err := sched.ImportAll(context.Background())
	if err != nil {
		return err
	}

	for _, q := range queued {
		fmt.Printf("queued task %s (import run %d) for %s\n", q.TaskID, q.ImportRunID, q.URL)
	}
	fmt.Printf("queued %d import tasks\n", len(queued))
	return nil
}
