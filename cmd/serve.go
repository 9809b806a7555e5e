package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpHdlr "jobfeed/handler/http"
	"jobfeed/src/infrastructure/queue"
	"jobfeed/src/infrastructure/scheduler"
	"jobfeed/src/storage/postgres/importrunctrl"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the import control API and scheduler",
	Long: `The serve command starts the HTTP control surface for enqueueing
imports and browsing import history, plus the hourly scheduler that
enqueues one task per registry endpoint. Tasks are executed by the
worker command.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	settingDefaultConfig()
}

func runServer(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	// Setup gin router
	r := gin.Default()
	handler := httpHdlr.NewImportHandler(queueService, sched, runService)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Printf("Invalid shutdown timeout: %v, using default 5s", err)
		timeout = 5 * time.Second
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
