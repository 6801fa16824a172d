package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fleetpulse/trackmap/pkg/core"
)

type syncRenderer struct{}

func (syncRenderer) RenderTileLayer(string, string, int, TileErrorFunc) error { return nil }
func (syncRenderer) RenderPolyline(core.Track, PolylineStyle) error          { return nil }
func (syncRenderer) RenderMarker(core.Point, Icon, string) error             { return nil }

type asyncRenderer struct{ syncRenderer }

func (asyncRenderer) MountsAsync() bool { return true }

func TestIsAsync(t *testing.T) {
	assert.False(t, IsAsync(syncRenderer{}))
	assert.True(t, IsAsync(asyncRenderer{}))
}

func TestIconFor(t *testing.T) {
	tests := []struct {
		name   string
		marker core.ClusterMarker
		want   string
	}{
		{"start", core.ClusterMarker{Label: core.LabelStart, AbsorbedCount: 3}, "start"},
		{"end", core.ClusterMarker{Label: core.LabelEnd, AbsorbedCount: 1}, "end"},
		{"single point", core.ClusterMarker{AbsorbedCount: 1}, "waypoint"},
		{"cluster", core.ClusterMarker{AbsorbedCount: 42}, "cluster"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IconFor(tt.marker).Name)
		})
	}
}

func TestIconFor_ClusterIconsAreShared(t *testing.T) {
	a := IconFor(core.ClusterMarker{AbsorbedCount: 7})
	b := IconFor(core.ClusterMarker{AbsorbedCount: 7})
	assert.Equal(t, a, b)
	assert.Equal(t, "7", a.Text)
	assert.Equal(t, 18, a.Size)
	assert.Equal(t, 26, IconFor(core.ClusterMarker{AbsorbedCount: 250}).Size)
}

func TestPopup(t *testing.T) {
	m := core.ClusterMarker{
		Representative: core.Point{
			Lat:   52.52,
			Lng:   13.405,
			Time:  time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
			Speed: core.Float(42.26),
		},
		Label:         core.LabelStart,
		AbsorbedCount: 4,
	}

	popup := Popup(m)
	assert.Contains(t, popup, "Start")
	assert.Contains(t, popup, "52.520000, 13.405000")
	assert.Contains(t, popup, "2026-05-01T09:30:00Z")
	assert.Contains(t, popup, "Speed: 42.3 km/h")
	assert.Contains(t, popup, "4 points")
	assert.NotContains(t, popup, "Accuracy")
}

func TestPopup_Minimal(t *testing.T) {
	popup := Popup(core.ClusterMarker{Representative: core.Point{Lat: 1, Lng: 2}, AbsorbedCount: 1})
	assert.Equal(t, "1.000000, 2.000000", popup)
}
