package geo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetpulse/trackmap/pkg/core"
)

// ParseTrack parses a JSON array of coordinates into a track.
// Input format: "[[lng,lat],[lng,lat,unixSeconds],...]"
// Points without a timestamp get a zero time.
func ParseTrack(input []byte) (core.Track, error) {
	var coords [][]float64
	if err := json.Unmarshal(input, &coords); err != nil {
		return nil, fmt.Errorf("failed to parse track JSON: %w", err)
	}

	track := make(core.Track, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		p := core.Point{Lng: coord[0], Lat: coord[1]}
		if len(coord) > 2 {
			p.Time = time.Unix(int64(coord[2]), 0).UTC()
		}
		if !core.ValidPoint(p) {
			return nil, fmt.Errorf("coordinate %d is out of range: %v", i, coord)
		}
		track[i] = p
	}

	return track, nil
}
