// Package database opens the single GORM connection shared by
// internal/storage's PostgresStore, adapted from the teacher's
// database/connection.go (same Cloud SQL unix-socket-vs-TCP dsn
// branching), swapped from the teacher's stdlib log to zerolog to
// match the rest of this service's logging.
package database

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Connect opens the GORM connection, preferring a Cloud SQL unix
// socket when INSTANCE_CONNECTION_NAME is set, falling back to local
// TCP otherwise. Returns an error instead of panicking so main.go
// decides how to fail.
func Connect(dbUser, dbPass, dbName string) error {
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbName == "" {
		dbName = "shift_orchestrator"
	}

	socketDir := "/cloudsql"
	instanceConnectionName := os.Getenv("INSTANCE_CONNECTION_NAME")

	var dsn string
	if instanceConnectionName != "" {
		dsn = fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, instanceConnectionName, dbUser, dbPass, dbName)
		log.Info().Str("instance", instanceConnectionName).Msg("connecting to Cloud SQL via socket")
	} else {
		dsn = fmt.Sprintf("host=localhost user=%s password=%s dbname=%s port=5432 sslmode=disable",
			dbUser, dbPass, dbName)
		log.Info().Msg("connecting to local PostgreSQL")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	DB = db
	log.Info().Msg("database connected")
	return nil
}
