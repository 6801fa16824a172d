package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/trackmap/internal/config"
	"github.com/fleetpulse/trackmap/internal/database"
	"github.com/fleetpulse/trackmap/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpenSource_SQLiteIsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.db")
	cfg := config.SourceConfig{Type: config.SourceSQLite, SQLite: config.SQLiteConfig{Path: path}}

	src, err := openSource(context.Background(), cfg, "van-1", discard)
	require.ErrorIs(t, err, database.ErrNoTrackTable)
	require.NotNil(t, src.db)
	assert.False(t, src.db.Migrator().HasTable(&model.TrackPoint{}))
	src.close()
}

func TestOpenSource_SQLiteWithTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.db")
	db, err := database.OpenSqlite(path, discard)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, discard))
	require.NoError(t, db.Create(&model.TrackPoint{DeviceID: "van-1", Seq: 0, Lat: 52.5, Lng: 13.4}).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	cfg := config.SourceConfig{Type: config.SourceSQLite, SQLite: config.SQLiteConfig{Path: path}}
	src, err := openSource(context.Background(), cfg, "van-1", discard)
	require.NoError(t, err)
	defer src.close()

	chunk, err := src.fetcher.FetchChunk(context.Background(), "van-1", 0, 100)
	require.NoError(t, err)
	require.Len(t, chunk, 1)
	assert.Equal(t, 52.5, chunk[0].Lat)
}
