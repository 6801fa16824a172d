package main

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/fleetpulse/trackmap/internal/config"
	"github.com/fleetpulse/trackmap/internal/database"
	"github.com/fleetpulse/trackmap/internal/loader"
	"github.com/fleetpulse/trackmap/internal/source/httpsource"
	"github.com/fleetpulse/trackmap/internal/source/sqlsource"
	"github.com/fleetpulse/trackmap/internal/source/static"
)

// trackSource is an opened, read-only chunk fetcher. db is set for SQL
// sources.
type trackSource struct {
	fetcher loader.ChunkFetcher
	db      *gorm.DB
}

func (s trackSource) close() {
	if s.db == nil {
		return
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openSource(ctx context.Context, cfg config.SourceConfig, device string, logger *slog.Logger) (trackSource, error) {
	switch cfg.Type {
	case config.SourcePostgres:
		db, err := database.OpenPostgres(cfg.Postgres, logger)
		if err != nil {
			return trackSource{}, err
		}
		if err := database.CheckSchema(db); err != nil {
			return trackSource{db: db}, err
		}
		logger.Info("Postgres track source initialized")
		return trackSource{fetcher: sqlsource.New(db), db: db}, nil

	case config.SourceHTTP:
		client := httpsource.New(cfg.HTTP.ServerURL, cfg.HTTP.APIKey)
		if err := client.Healthcheck(ctx); err != nil {
			logger.Warn("Track API healthcheck failed", "url", cfg.HTTP.ServerURL, "error", err)
		}
		logger.Info("HTTP track source initialized", "url", cfg.HTTP.ServerURL)
		return trackSource{fetcher: client}, nil

	case config.SourceFile:
		src, err := static.FromFile(device, cfg.File.Path)
		if err != nil {
			return trackSource{}, err
		}
		logger.Info("File track source initialized", "path", cfg.File.Path)
		return trackSource{fetcher: src}, nil

	default:
		db, err := database.OpenSqlite(cfg.SQLite.Path, logger)
		if err != nil {
			return trackSource{}, err
		}
		if err := database.CheckSchema(db); err != nil {
			return trackSource{db: db}, err
		}
		logger.Info("SQLite track source initialized")
		return trackSource{fetcher: sqlsource.New(db), db: db}, nil
	}
}
