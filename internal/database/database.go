// Package database opens the GORM connections the SQL track source reads
// from.
package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fleetpulse/trackmap/internal/model"
)

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// OpenPostgres returns a connection to the Postgres database and verifies it
// with a ping.
func OpenPostgres(cfg PostgresConfig, log *slog.Logger) (*gorm.DB, error) {
	log.Debug("Connecting to Postgres DB", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open Postgres DB: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate Postgres connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	log.Info("Connected to database", "dialect", db.Dialector.Name())
	return db, nil
}

// OpenSqlite returns a connection to a SQLite database.
// If path is empty, uses a private in-memory database.
func OpenSqlite(path string, log *slog.Logger) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	if path == "" {
		// every pooled connection to :memory: would see its own database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		log.Info("Using SQLite DB in memory")
	} else {
		log.Info("Using local SQLite DB", "path", path)
	}

	pragmas := []string{
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// ErrNoTrackTable is returned by CheckSchema when the track table is missing.
var ErrNoTrackTable = errors.New("track_points table not found")

// CheckSchema verifies that the track tables exist. Track sources never
// create or alter tables.
func CheckSchema(db *gorm.DB) error {
	for _, m := range model.DatabaseModels {
		if !db.Migrator().HasTable(m) {
			return ErrNoTrackTable
		}
	}
	return nil
}

// Migrate creates or updates the track tables. The data is written by the
// fleet ingestion pipeline; Migrate prepares local databases for it.
func Migrate(db *gorm.DB, log *slog.Logger) error {
	log.Info("Migrating schema")
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
