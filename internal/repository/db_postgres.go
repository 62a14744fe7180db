// Package repository contains the repository layer for the Profile API
package repository

import (
	"fmt"

	"github.com/nsvirk/profileapi/internal/config"
	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// UserBlockedChannel is the Postgres NOTIFY channel fired when users.blocked changes
const UserBlockedChannel = "CH:API:USER:BLOCKED"

// ConnectPostgres connects to a Postgres database, migrates the schema and
// returns a GORM database object
func ConnectPostgres(cfg *config.Config) (*gorm.DB, error) {
	zaplogger.Info(config.SingleLine)
	zaplogger.Info("Initializing Postgres")
	zaplogger.Info(config.SingleLine)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.PostgresLogLevel)),
	}

	postgresDSN := fmt.Sprintf("%s search_path=%s,public", cfg.PostgresDsn, cfg.PostgresSchema)
	db, err := gorm.Open(postgres.Open(postgresDSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	zaplogger.Info("  * connected")

	if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", cfg.PostgresSchema)).Error; err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	zaplogger.Info("  * migrating schema: \"" + cfg.PostgresSchema + "\"")

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	if err := createUserBlockedTrigger(db); err != nil {
		return nil, err
	}
	zaplogger.Info("  * trigger on " + models.UsersTableName + ".blocked notifies " + UserBlockedChannel)

	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func autoMigrate(db *gorm.DB) error {
	tables := []struct {
		name  string
		model interface{}
	}{
		{models.UsersTableName, &models.UserModel{}},
		{models.SessionsTableName, &models.SessionModel{}},
	}

	zaplogger.Info("  * migrating tables")
	for _, table := range tables {
		if err := db.AutoMigrate(table.model); err != nil {
			return fmt.Errorf("failed to auto migrate table: %s, err: %w", table.name, err)
		}
		zaplogger.Info("    - \"" + table.name + "\"")
	}
	return nil
}

// createUserBlockedTrigger makes Postgres publish every change of the blocked
// flag, including changes made outside the API
func createUserBlockedTrigger(db *gorm.DB) error {
	statements := []string{
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION notify_user_blocked() RETURNS trigger AS $$
BEGIN
	IF NEW.blocked IS DISTINCT FROM OLD.blocked THEN
		PERFORM pg_notify('%s', json_build_object('id', NEW.id, 'blocked', NEW.blocked)::text);
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`, UserBlockedChannel),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS users_blocked_notify ON %s`, models.UsersTableName),
		fmt.Sprintf(`CREATE TRIGGER users_blocked_notify AFTER UPDATE OF blocked ON %s
	FOR EACH ROW EXECUTE FUNCTION notify_user_blocked()`, models.UsersTableName),
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create user blocked trigger: %w", err)
		}
	}
	return nil
}
