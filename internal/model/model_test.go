package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fleetpulse/trackmap/pkg/core"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"TrackPoint", &TrackPoint{}, "track_points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestTrackPointConversion(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	p := core.Point{Lat: 52.5, Lng: 13.4, Time: ts, Speed: core.Float(12.5)}

	row := TrackPointFromCore("dev-1", 7, p)
	assert.Equal(t, "dev-1", row.DeviceID)
	assert.Equal(t, 7, row.Seq)
	assert.Nil(t, row.Accuracy)

	assert.True(t, p.Equal(row.ToCore()))
}

func TestToCoreNormalizesTimezone(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	row := TrackPoint{Time: time.Date(2026, 3, 1, 10, 30, 0, 0, loc)}
	assert.Equal(t, time.UTC, row.ToCore().Time.Location())
}
