// Package static serves tracks held in memory or read from a JSON file.
package static

import (
	"context"
	"fmt"
	"os"

	"github.com/fleetpulse/trackmap/internal/geo"
	"github.com/fleetpulse/trackmap/internal/loader"
	"github.com/fleetpulse/trackmap/pkg/core"
)

// Source maps device ids to fixed tracks.
type Source struct {
	tracks map[string]core.Track
}

var (
	_ loader.ChunkFetcher = (*Source)(nil)
	_ loader.PointCounter = (*Source)(nil)
)

// New creates an empty source.
func New() *Source {
	return &Source{tracks: make(map[string]core.Track)}
}

// Add registers track under deviceID.
func (s *Source) Add(deviceID string, track core.Track) *Source {
	s.tracks[deviceID] = track
	return s
}

// FromFile reads a "[[lng,lat(,unix)],...]" file as the track of deviceID.
func FromFile(deviceID, path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}
	track, err := geo.ParseTrack(data)
	if err != nil {
		return nil, err
	}
	return New().Add(deviceID, track), nil
}

// FetchChunk returns the requested window of the device track. Unknown
// devices have an empty track.
func (s *Source) FetchChunk(ctx context.Context, deviceID string, offset, limit int) ([]core.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	track := s.tracks[deviceID]
	if offset >= len(track) {
		return nil, nil
	}
	end := min(offset+limit, len(track))
	out := make([]core.Point, end-offset)
	copy(out, track[offset:end])
	return out, nil
}

// CountPoints returns the length of the device track.
func (s *Source) CountPoints(ctx context.Context, deviceID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.tracks[deviceID]), nil
}
