package cmd

import (
	"fmt"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"jobfeed/src/infrastructure/queue"
	"jobfeed/src/storage/postgres/importrunctrl"
	"jobfeed/src/storage/postgres/jobctrl"
)

// openDatabase connects to PostgreSQL using the viper config and ensures
// the schema is current. The cleanup func closes the underlying pool.
func openDatabase() (*gorm.DB, func(), error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	cleanup := func() { sqlDB.Close() }

	if err := db.AutoMigrate(
		&jobctrl.JobPosting{},
		&importrunctrl.ImportRun{},
		&queue.Task{},
	); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to migrate schema: %v", err)
	}

	return db, cleanup, nil
}
