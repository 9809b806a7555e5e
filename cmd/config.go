package cmd

import "github.com/spf13/viper"

func settingDefaultConfig() {
	// Enable automatic environment variable binding
	viper.AutomaticEnv()

	// Map environment variables to Viper keys for PostgreSQL
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.db", "POSTGRES_DB")

	// Map environment variables for the HTTP server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Map environment variables for RabbitMQ (import events; optional)
	viper.BindEnv("amqp.url", "AMQP_URL")

	// Map environment variables for the importer and scheduler
	viper.BindEnv("importer.concurrency", "IMPORTER_CONCURRENCY")
	viper.BindEnv("importer.fetch_timeout", "IMPORTER_FETCH_TIMEOUT")
	viper.BindEnv("importer.poll_interval", "IMPORTER_POLL_INTERVAL")
	viper.BindEnv("importer.max_attempts", "IMPORTER_MAX_ATTEMPTS")
	viper.BindEnv("importer.initial_backoff", "IMPORTER_INITIAL_BACKOFF")
	viper.BindEnv("importer.retention", "IMPORTER_RETENTION")
	viper.BindEnv("importer.stale_after", "IMPORTER_STALE_AFTER")
	viper.BindEnv("scheduler.spec", "SCHEDULER_SPEC")

	// Set default values for PostgreSQL
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.db", "jobfeed")

	// Set default values for the HTTP server
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdown_timeout", "5s")

	// Empty AMQP URL disables import event publishing
	viper.SetDefault("amqp.url", "")

	// Set default values for the importer and scheduler
	viper.SetDefault("importer.concurrency", 2)
	viper.SetDefault("importer.fetch_timeout", "30s")
	viper.SetDefault("importer.poll_interval", "1s")
	viper.SetDefault("importer.max_attempts", 3)
	viper.SetDefault("importer.initial_backoff", "5s")
	viper.SetDefault("importer.retention", 50)
	viper.SetDefault("importer.stale_after", "10m")
	viper.SetDefault("scheduler.spec", "0 * * * *")
}
