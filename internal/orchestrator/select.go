// Package orchestrator drives a mounted map view: it picks the map
// implementation for a track, runs the loading and upgrade state machine
// and wires loading, path processing, tiles, error recovery and
// performance monitoring together.
package orchestrator

import "github.com/fleetpulse/trackmap/pkg/core"

// DefaultInteractiveThreshold is the path length from which a track is
// considered large.
const DefaultInteractiveThreshold = 50

// SelectionContext is everything implementation selection depends on.
type SelectionContext struct {
	PathLength               int
	UserRequestedInteractive bool
	TileSourceExhausted      bool
	// Threshold overrides DefaultInteractiveThreshold when positive.
	Threshold int
}

// Select returns the map implementation for c.
func Select(c SelectionContext) core.MapImplementation {
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultInteractiveThreshold
	}

	switch {
	case c.TileSourceExhausted:
		return core.Fallback
	case c.PathLength == 0:
		return core.Lightweight
	case c.UserRequestedInteractive && c.PathLength < threshold:
		return core.Interactive
	case c.PathLength >= threshold:
		if c.UserRequestedInteractive {
			return core.Interactive
		}
		return core.Lightweight
	default:
		return core.Lightweight
	}
}
