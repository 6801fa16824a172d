package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		base    string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "trackmaplogs",
			base:    "trackmap",
			want:    filepath.Join("trackmaplogs", "trackmap.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./trackmaplogs",
			base:    "trackmap",
			want:    filepath.Join(".", "trackmaplogs", "trackmap.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "trackmap"),
			base:    "trackmap",
			want:    filepath.Join("/var", "log", "trackmap", "trackmap.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.base, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogFilePath_NormalizesToUTC(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	start := time.Date(2026, 2, 12, 22, 38, 36, 0, berlin)
	assert.Equal(t, filepath.Join("logs", "trackmap.20260212_213836.log"), LogFilePath("logs", "trackmap", start))
}
