// Package loader fetches device tracks in bounded chunks and downsamples
// very large tracks before they reach the map.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/fleetpulse/trackmap/pkg/core"
)

// ChunkFetcher supplies one chunk of a device track. A chunk shorter than
// limit signals the end of the track.
type ChunkFetcher interface {
	FetchChunk(ctx context.Context, deviceID string, offset, limit int) ([]core.Point, error)
}

// PointCounter is optionally implemented by fetchers that know the size of
// a track up front. The loader uses it as the progress total and to stop
// without an extra empty fetch.
type PointCounter interface {
	CountPoints(ctx context.Context, deviceID string) (int, error)
}

// ChunkFetcherFunc adapts a function to ChunkFetcher.
type ChunkFetcherFunc func(ctx context.Context, deviceID string, offset, limit int) ([]core.Point, error)

// FetchChunk calls f.
func (f ChunkFetcherFunc) FetchChunk(ctx context.Context, deviceID string, offset, limit int) ([]core.Point, error) {
	return f(ctx, deviceID, offset, limit)
}

// ChunkFetchError reports a failed chunk. The points loaded before the
// failure are returned alongside it.
type ChunkFetchError struct {
	DeviceID string
	Offset   int
	Err      error
}

func (e *ChunkFetchError) Error() string {
	return fmt.Sprintf("fetch chunk at offset %d for device %s: %v", e.Offset, e.DeviceID, e.Err)
}

func (e *ChunkFetchError) Unwrap() error {
	return e.Err
}

// ErrNoFetcher is returned by New when no fetcher is given.
var ErrNoFetcher = errors.New("loader needs a chunk fetcher")

// Config controls chunking and sampling.
type Config struct {
	ChunkSize         int `json:"chunkSize" mapstructure:"chunkSize" validate:"gte=1"`
	SamplingThreshold int `json:"samplingThreshold" mapstructure:"samplingThreshold" validate:"gte=0"`
	MaxPoints         int `json:"maxPoints" mapstructure:"maxPoints" validate:"gte=2"`
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         100,
		SamplingThreshold: 500,
		MaxPoints:         1000,
	}
}

var validate = validator.New()

// Validate checks the config bounds.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Loader fetches tracks sequentially, one chunk in flight at a time.
type Loader struct {
	fetcher ChunkFetcher
	cfg     Config
	logger  *slog.Logger
}

// New creates a loader.
func New(fetcher ChunkFetcher, cfg Config, logger *slog.Logger) (*Loader, error) {
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loader config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fetcher: fetcher, cfg: cfg, logger: logger}, nil
}

// Config returns the loader's configuration.
func (l *Loader) Config() Config {
	return l.cfg
}

// Load fetches the whole track for deviceID. onProgress, if not nil, is
// called after every chunk with non-decreasing values and finally with 100%.
// On a chunk failure the points fetched so far are returned together with
// a *ChunkFetchError. Sampling is only applied to complete tracks.
func (l *Loader) Load(ctx context.Context, deviceID string, onProgress func(core.LoadProgress)) (core.Track, error) {
	total := l.estimate(ctx, deviceID)
	progress := newTracker(total, l.cfg.ChunkSize, onProgress)

	var track core.Track
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return track, err
		}

		limit := l.cfg.ChunkSize
		if total > 0 {
			if remaining := total - offset; remaining < limit {
				limit = remaining
			}
		}

		chunk, err := l.fetcher.FetchChunk(ctx, deviceID, offset, limit)
		if err != nil {
			l.logger.Error("Chunk fetch failed",
				"device", deviceID, "offset", offset, "loaded", len(track), "error", err)
			return track, &ChunkFetchError{DeviceID: deviceID, Offset: offset, Err: err}
		}

		track = append(track, chunk...)
		offset += len(chunk)

		// A plain fetcher only learns the end of a track from a short
		// chunk, so a track that is an exact multiple of the chunk size
		// costs one extra, empty fetch.
		more := len(chunk) >= limit && len(chunk) > 0
		if total > 0 && offset >= total {
			more = false
		}
		progress.report(len(track), more)
		if !more {
			break
		}
	}

	progress.finish(len(track))

	if l.shouldSample(len(track)) {
		sampled := Sample(track, l.cfg.MaxPoints)
		l.logger.Info("Sampled track",
			"device", deviceID, "before", len(track), "after", len(sampled))
		track = sampled
	}

	l.logger.Debug("Track loaded", "device", deviceID, "points", len(track))
	return track, nil
}

func (l *Loader) shouldSample(n int) bool {
	return n > l.cfg.SamplingThreshold && n > l.cfg.MaxPoints
}

func (l *Loader) estimate(ctx context.Context, deviceID string) int {
	counter, ok := l.fetcher.(PointCounter)
	if !ok {
		return 0
	}
	n, err := counter.CountPoints(ctx, deviceID)
	if err != nil {
		l.logger.Warn("Point count unavailable, estimating from chunks",
			"device", deviceID, "error", err)
		return 0
	}
	return n
}

// Sample downsamples track to maxPoints by uniform index selection. The
// first and last points are always kept and the order is preserved.
func Sample(track core.Track, maxPoints int) core.Track {
	n := len(track)
	if maxPoints < 2 {
		maxPoints = 2
	}
	if n <= maxPoints {
		return track
	}

	out := make(core.Track, maxPoints)
	for i := 0; i < maxPoints; i++ {
		out[i] = track[i*(n-1)/(maxPoints-1)]
	}
	return out
}
