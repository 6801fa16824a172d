// pkg/core/point.go
package core

import (
	"math"
	"time"
)

// Point is a single GPS fix. Speed and Accuracy are optional.
type Point struct {
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Time     time.Time `json:"time"`
	Speed    *float64  `json:"speed,omitempty"`
	Accuracy *float64  `json:"accuracy,omitempty"`
}

// Track is an ordered sequence of points. Insertion order is capture order.
type Track []Point

// Float returns a pointer to v, for filling the optional Point fields.
func Float(v float64) *float64 {
	return &v
}

// Equal compares two points by value, including the optional fields.
func (p Point) Equal(o Point) bool {
	if p.Lat != o.Lat || p.Lng != o.Lng || !p.Time.Equal(o.Time) {
		return false
	}
	return optionalEqual(p.Speed, o.Speed) && optionalEqual(p.Accuracy, o.Accuracy)
}

func optionalEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ValidPoint reports whether p has finite coordinates within WGS84 bounds.
// Callers filter with it before handing a track to the path processor.
func ValidPoint(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Clean returns the valid points of t, preserving order.
func (t Track) Clean() Track {
	out := make(Track, 0, len(t))
	for _, p := range t {
		if ValidPoint(p) {
			out = append(out, p)
		}
	}
	return out
}

// Equal reports whether both tracks hold the same points in the same order.
func (t Track) Equal(o Track) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if !t[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// HasSpeed reports whether any point carries a speed value.
func (t Track) HasSpeed() bool {
	for _, p := range t {
		if p.Speed != nil {
			return true
		}
	}
	return false
}

// HasAccuracy reports whether any point carries an accuracy value.
func (t Track) HasAccuracy() bool {
	for _, p := range t {
		if p.Accuracy != nil {
			return true
		}
	}
	return false
}
