package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoint_Equal(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := Point{Lat: 52.5, Lng: 13.4, Time: ts, Speed: Float(12)}

	assert.True(t, base.Equal(Point{Lat: 52.5, Lng: 13.4, Time: ts.In(time.FixedZone("CET", 3600)), Speed: Float(12)}))
	assert.False(t, base.Equal(Point{Lat: 52.5, Lng: 13.4, Time: ts}))
	assert.False(t, base.Equal(Point{Lat: 52.5, Lng: 13.4, Time: ts, Speed: Float(13)}))
	assert.False(t, base.Equal(Point{Lat: 52.6, Lng: 13.4, Time: ts, Speed: Float(12)}))
}

func TestValidPoint(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"origin", Point{}, true},
		{"bounds", Point{Lat: -90, Lng: 180}, true},
		{"lat overflow", Point{Lat: 90.1}, false},
		{"lng overflow", Point{Lng: -180.5}, false},
		{"nan", Point{Lat: math.NaN()}, false},
		{"inf", Point{Lng: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPoint(tt.p))
		})
	}
}

func TestTrack_Clean(t *testing.T) {
	track := Track{{Lat: 1, Lng: 1}, {Lat: 100}, {Lat: 2, Lng: 2}, {Lng: math.NaN()}}
	clean := track.Clean()
	assert.True(t, clean.Equal(Track{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}))
	assert.Len(t, track, 4)
}

func TestTrack_OptionalColumns(t *testing.T) {
	track := Track{{Lat: 1}, {Lat: 2, Accuracy: Float(4)}}
	assert.False(t, track.HasSpeed())
	assert.True(t, track.HasAccuracy())
	assert.False(t, Track(nil).HasAccuracy())
}

func TestMarkers(t *testing.T) {
	a := []ClusterMarker{
		{Representative: Point{Lat: 1}, Label: LabelStart, AbsorbedCount: 1},
		{Representative: Point{Lat: 2}, AbsorbedCount: 5},
		{Representative: Point{Lat: 3}, Label: LabelEnd, AbsorbedCount: 1},
	}
	b := append([]ClusterMarker(nil), a...)

	assert.True(t, MarkersEqual(a, b))
	assert.Equal(t, 7, TotalAbsorbed(a))
	assert.Equal(t, Track{{Lat: 1}, {Lat: 2}, {Lat: 3}}, Points(a))

	b[1].AbsorbedCount = 4
	assert.False(t, MarkersEqual(a, b))
	assert.False(t, MarkersEqual(a, a[:2]))
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "lightweight", Lightweight.String())
	assert.Equal(t, "interactive", Interactive.String())
	assert.Equal(t, "fallback", Fallback.String())
	assert.Equal(t, "unknown", MapImplementation(9).String())

	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading_data", LoadingData.String())
	assert.Equal(t, "upgrading", Upgrading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "unknown", LoadingState(-1).String())
}
