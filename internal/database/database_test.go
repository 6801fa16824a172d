package database

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/trackmap/internal/model"
)

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", Username: "u", Password: "p", Database: "tracks"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tracks sslmode=disable", cfg.DSN())
}

func TestOpenSqlite_FileAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.db")
	db, err := OpenSqlite(path, slog.Default())
	require.NoError(t, err)

	require.NoError(t, Migrate(db, slog.Default()))
	assert.True(t, db.Migrator().HasTable(&model.TrackPoint{}))

	require.NoError(t, db.Create(&model.TrackPoint{DeviceID: "d", Seq: 0, Lat: 1, Lng: 2}).Error)

	var count int64
	require.NoError(t, db.Model(&model.TrackPoint{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOpenSqlite_InMemory(t *testing.T) {
	db, err := OpenSqlite("", slog.Default())
	require.NoError(t, err)
	require.NoError(t, Migrate(db, slog.Default()))
	assert.True(t, db.Migrator().HasTable("track_points"))
}

func TestOpenPostgres_Unreachable(t *testing.T) {
	_, err := OpenPostgres(PostgresConfig{
		Host: "127.0.0.1", Port: "1", Username: "u", Password: "p", Database: "x",
	}, slog.Default())
	require.Error(t, err)
}

func TestCheckSchema(t *testing.T) {
	db, err := OpenSqlite("", slog.Default())
	require.NoError(t, err)

	require.ErrorIs(t, CheckSchema(db), ErrNoTrackTable)
	assert.False(t, db.Migrator().HasTable(&model.TrackPoint{}), "the check must not create tables")

	require.NoError(t, Migrate(db, slog.Default()))
	require.NoError(t, CheckSchema(db))
}
