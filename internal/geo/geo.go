package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/fleetpulse/trackmap/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Track coordinates are kept in EPSG:4326 (lng as X, lat as Y). Tile math
// projects to EPSG:3857, the tiling scheme every XYZ provider uses.

// ErrEmptyTrack is returned when a geometry is requested for a track without points.
var ErrEmptyTrack = errors.New("track has no points")

// mercatorExtent is the half-width of the EPSG:3857 world square in metres.
const mercatorExtent = 20037508.342789244

// tileSize is the pixel edge length of a standard XYZ tile.
const tileSize = 256

// Bounds is a lng/lat bounding box.
type Bounds struct {
	MinLng, MinLat float64
	MaxLng, MaxLat float64
}

// Center returns the midpoint of the box.
func (b Bounds) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// Envelope returns the simplefeatures envelope of the track. Stationary and
// single-point tracks give a point envelope.
func Envelope(track core.Track) (geom.Envelope, error) {
	if len(track) == 0 {
		return geom.Envelope{}, ErrEmptyTrack
	}
	xys := make([]geom.XY, len(track))
	for i, p := range track {
		xys[i] = geom.XY{X: p.Lng, Y: p.Lat}
	}
	env, err := geom.NewEnvelope(xys)
	if err != nil {
		return geom.Envelope{}, fmt.Errorf("invalid track coordinates: %w", err)
	}
	return env, nil
}

// TrackBounds returns the bounding box of the track.
func TrackBounds(track core.Track) (Bounds, error) {
	env, err := Envelope(track)
	if err != nil {
		return Bounds{}, err
	}

	minXY, maxXY, ok := env.MinMaxXYs()
	if !ok {
		return Bounds{}, ErrEmptyTrack
	}
	return Bounds{MinLng: minXY.X, MinLat: minXY.Y, MaxLng: maxXY.X, MaxLat: maxXY.Y}, nil
}

// Mercator projects a lng/lat pair to EPSG:3857 metres.
func Mercator(lng, lat float64) (x, y float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(lng, lat, 0)
	return x, y
}

// FitZoom returns the largest zoom at which b fits into a width x height
// pixel viewport, clamped to [0, maxZoom]. A zero-area box yields maxZoom.
func FitZoom(b Bounds, width, height, maxZoom int) int {
	if maxZoom < 0 {
		maxZoom = 0
	}
	if width <= 0 || height <= 0 {
		return 0
	}

	minX, minY := Mercator(b.MinLng, clampLat(b.MinLat))
	maxX, maxY := Mercator(b.MaxLng, clampLat(b.MaxLat))
	dx := math.Abs(maxX - minX)
	dy := math.Abs(maxY - minY)
	if dx == 0 && dy == 0 {
		return maxZoom
	}

	world := 2 * mercatorExtent
	zoom := math.Inf(1)
	if dx > 0 {
		zoom = math.Min(zoom, math.Log2(float64(width)*world/(tileSize*dx)))
	}
	if dy > 0 {
		zoom = math.Min(zoom, math.Log2(float64(height)*world/(tileSize*dy)))
	}

	z := int(math.Floor(zoom))
	if z < 0 {
		return 0
	}
	if z > maxZoom {
		return maxZoom
	}
	return z
}

// clampLat keeps latitudes inside the Web Mercator domain.
func clampLat(lat float64) float64 {
	const limit = 85.05112878
	return math.Max(-limit, math.Min(limit, lat))
}
