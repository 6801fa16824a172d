// Package path reduces GPS tracks to something a map widget can draw:
// Douglas-Peucker simplification followed by endpoint-preserving marker
// clustering.
package path

import (
	"math"

	"github.com/fleetpulse/trackmap/pkg/core"
)

// DefaultTolerance is the Douglas-Peucker tolerance in degrees (~9 m at the
// equator). Jitter below consumer GPS noise collapses onto the track shape.
const DefaultTolerance = 0.00008

// DefaultMinPoints is the track length at or below which Simplify is the identity.
const DefaultMinPoints = 100

// Simplify applies Douglas-Peucker to tracks longer than DefaultMinPoints.
func Simplify(track core.Track, tolerance float64) core.Track {
	return SimplifyAbove(track, tolerance, DefaultMinPoints)
}

// SimplifyAbove applies Douglas-Peucker when len(track) > minPoints and
// returns track unchanged otherwise. The first and last points are always
// kept and the result never grows.
func SimplifyAbove(track core.Track, tolerance float64, minPoints int) core.Track {
	if len(track) <= minPoints || len(track) < 3 {
		return track
	}
	if tolerance < 0 {
		tolerance = 0
	}

	keep := make([]bool, len(track))
	keep[0] = true
	keep[len(track)-1] = true

	// explicit stack instead of recursion
	type segment struct{ first, last int }
	stack := []segment{{0, len(track) - 1}}
	for len(stack) > 0 {
		seg := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seg.last-seg.first < 2 {
			continue
		}

		idx, dist := farthest(track, seg.first, seg.last)
		if dist > tolerance {
			keep[idx] = true
			stack = append(stack, segment{idx, seg.last}, segment{seg.first, idx})
		}
	}

	out := make(core.Track, 0, len(track))
	for i, k := range keep {
		if k {
			out = append(out, track[i])
		}
	}
	return out
}

// farthest returns the first interior index with the largest perpendicular
// distance from the chord first..last.
func farthest(track core.Track, first, last int) (int, float64) {
	a, b := track[first], track[last]
	idx, maxDist := first, -1.0
	for i := first + 1; i < last; i++ {
		d := perpendicularDistance(track[i], a, b)
		if d > maxDist {
			idx, maxDist = i, d
		}
	}
	return idx, maxDist
}

// perpendicularDistance measures p against the infinite line through a and
// b in coordinate units (lng as x, lat as y). A degenerate chord falls back
// to the point distance from a.
func perpendicularDistance(p, a, b core.Point) float64 {
	dx := b.Lng - a.Lng
	dy := b.Lat - a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lng-a.Lng, p.Lat-a.Lat)
	}
	return math.Abs(dy*p.Lng-dx*p.Lat+b.Lng*a.Lat-b.Lat*a.Lng) / math.Hypot(dx, dy)
}
