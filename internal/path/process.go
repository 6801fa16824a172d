package path

import "github.com/fleetpulse/trackmap/pkg/core"

// Options controls one run of the path pipeline.
type Options struct {
	SimplifyPath   bool
	ClusterMarkers bool
	Tolerance      float64
	MinPoints      int
	MaxMarkers     int
}

// DefaultOptions returns the dashboard defaults.
func DefaultOptions() Options {
	return Options{
		SimplifyPath:   true,
		ClusterMarkers: true,
		Tolerance:      DefaultTolerance,
		MinPoints:      DefaultMinPoints,
		MaxMarkers:     DefaultMaxMarkers,
	}
}

// Result is the output of Process.
type Result struct {
	Source     core.Track
	Simplified core.Track
	Markers    []core.ClusterMarker
}

// Process simplifies and then clusters track. Shape reduction runs on the
// full-resolution track before marker counts are bounded.
func Process(track core.Track, opts Options) Result {
	simplified := track
	if opts.SimplifyPath {
		simplified = SimplifyAbove(track, opts.Tolerance, opts.MinPoints)
	}

	var markers []core.ClusterMarker
	if opts.ClusterMarkers {
		markers = Cluster(simplified, opts.MaxMarkers)
	} else {
		markers = Individual(simplified)
	}

	return Result{Source: track, Simplified: simplified, Markers: markers}
}
