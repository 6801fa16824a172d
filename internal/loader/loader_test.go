package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/trackmap/pkg/core"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func makeTrack(n int) core.Track {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	track := make(core.Track, n)
	for i := range track {
		track[i] = core.Point{
			Lat:  52.5 + float64(i)*0.0001,
			Lng:  13.4 + float64(i)*0.0001,
			Time: base.Add(time.Duration(i) * time.Second),
		}
	}
	return track
}

// sliceFetcher serves chunks from an in-memory track.
type sliceFetcher struct {
	track  core.Track
	calls  int
	failAt int // offset that fails; -1 disables
}

func newSliceFetcher(n int) *sliceFetcher {
	return &sliceFetcher{track: makeTrack(n), failAt: -1}
}

func (f *sliceFetcher) FetchChunk(_ context.Context, _ string, offset, limit int) ([]core.Point, error) {
	f.calls++
	if offset == f.failAt {
		return nil, errors.New("connection reset")
	}
	if offset >= len(f.track) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.track) {
		end = len(f.track)
	}
	return f.track[offset:end], nil
}

type countingFetcher struct {
	*sliceFetcher
	countErr error
}

func (f *countingFetcher) CountPoints(context.Context, string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.track), nil
}

func collect(t *testing.T) (*[]core.LoadProgress, func(core.LoadProgress)) {
	t.Helper()
	var events []core.LoadProgress
	return &events, func(p core.LoadProgress) { events = append(events, p) }
}

func assertMonotonic(t *testing.T, events []core.LoadProgress) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Current, events[i-1].Current, "current at %d", i)
		assert.GreaterOrEqual(t, events[i].Percentage, events[i-1].Percentage, "percentage at %d", i)
	}
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Percentage, 0.0)
		assert.LessOrEqual(t, e.Percentage, 100.0)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig(), discard)
	require.ErrorIs(t, err, ErrNoFetcher)

	_, err = New(newSliceFetcher(1), Config{ChunkSize: 0, MaxPoints: 1000}, discard)
	require.Error(t, err)

	_, err = New(newSliceFetcher(1), Config{ChunkSize: 100, MaxPoints: 1}, discard)
	require.Error(t, err)

	l, err := New(newSliceFetcher(1), DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), l.Config())
}

func TestLoad_LargeTrackWithKnownTotal(t *testing.T) {
	f := &countingFetcher{sliceFetcher: newSliceFetcher(1200)}
	l, err := New(f, DefaultConfig(), discard)
	require.NoError(t, err)

	events, onProgress := collect(t)
	track, err := l.Load(context.Background(), "device-1", onProgress)
	require.NoError(t, err)

	assert.Equal(t, 12, f.calls)
	assert.LessOrEqual(t, len(track), 1000)
	assert.Equal(t, 1000, len(track))
	assert.True(t, track[0].Equal(f.track[0]))
	assert.True(t, track[len(track)-1].Equal(f.track[1199]))

	require.NotEmpty(t, *events)
	last := (*events)[len(*events)-1]
	assert.Equal(t, 100.0, last.Percentage)
	assert.Equal(t, 1200, last.Current)
	assert.Equal(t, 1200, (*events)[0].Total)
	assertMonotonic(t, *events)
}

func TestLoad_UnknownTotalStopsOnShortChunk(t *testing.T) {
	f := newSliceFetcher(250)
	l, err := New(f, DefaultConfig(), discard)
	require.NoError(t, err)

	events, onProgress := collect(t)
	track, err := l.Load(context.Background(), "device-1", onProgress)
	require.NoError(t, err)

	assert.Equal(t, 3, f.calls)
	assert.Len(t, track, 250)
	assertMonotonic(t, *events)

	// one event per chunk plus the final one
	require.Len(t, *events, 4)
	assert.Equal(t, core.LoadProgress{Current: 100, Total: 200, Percentage: 50}, (*events)[0])
	assert.Equal(t, 200, (*events)[1].Current)
	assert.Equal(t, 300, (*events)[1].Total)
	assert.InDelta(t, 200.0/300.0*100, (*events)[1].Percentage, 1e-9)
	assert.Equal(t, core.LoadProgress{Current: 250, Total: 300, Percentage: 100}, (*events)[2])
	assert.Equal(t, 100.0, (*events)[3].Percentage)
}

func TestLoad_PlainFetcherProgressRises(t *testing.T) {
	f := newSliceFetcher(1200)
	l, err := New(ChunkFetcherFunc(f.FetchChunk), DefaultConfig(), discard)
	require.NoError(t, err)

	events, onProgress := collect(t)
	track, err := l.Load(context.Background(), "device-1", onProgress)
	require.NoError(t, err)

	// A full twelfth chunk does not tell a plain fetcher that the track
	// ended; the thirteenth fetch comes back empty.
	assert.Equal(t, 13, f.calls)
	assert.Len(t, track, 1000)
	assert.True(t, track[0].Equal(f.track[0]))
	assert.True(t, track[len(track)-1].Equal(f.track[1199]))

	require.Len(t, *events, 14)
	assertMonotonic(t, *events)
	for i, e := range (*events)[:12] {
		assert.Equal(t, (i+1)*100, e.Current)
		assert.Equal(t, e.Current+100, e.Total)
		assert.Less(t, e.Percentage, 100.0)
		if i > 0 {
			assert.Greater(t, e.Percentage, (*events)[i-1].Percentage)
		}
	}
	assert.Greater(t, (*events)[0].Percentage, 0.0)
	assert.Equal(t, 100.0, (*events)[13].Percentage)
	assert.Equal(t, 1200, (*events)[13].Current)
}

func TestLoad_CountErrorFallsBackToChunks(t *testing.T) {
	f := &countingFetcher{sliceFetcher: newSliceFetcher(150), countErr: errors.New("count unavailable")}
	l, err := New(f, DefaultConfig(), discard)
	require.NoError(t, err)

	track, err := l.Load(context.Background(), "device-1", nil)
	require.NoError(t, err)
	assert.Len(t, track, 150)
	assert.Equal(t, 2, f.calls)
}

func TestLoad_NoSamplingBelowMaxPoints(t *testing.T) {
	f := newSliceFetcher(800)
	l, err := New(f, DefaultConfig(), discard)
	require.NoError(t, err)

	track, err := l.Load(context.Background(), "device-1", nil)
	require.NoError(t, err)
	assert.True(t, track.Equal(f.track))
}

func TestLoad_EmptyTrack(t *testing.T) {
	f := newSliceFetcher(0)
	l, err := New(f, DefaultConfig(), discard)
	require.NoError(t, err)

	events, onProgress := collect(t)
	track, err := l.Load(context.Background(), "device-1", onProgress)
	require.NoError(t, err)
	assert.Empty(t, track)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, 100.0, (*events)[len(*events)-1].Percentage)
}

func TestLoad_ChunkFailureReturnsPartialTrack(t *testing.T) {
	f := newSliceFetcher(500)
	f.failAt = 300
	l, err := New(f, DefaultConfig(), discard)
	require.NoError(t, err)

	track, err := l.Load(context.Background(), "device-9", nil)
	require.Error(t, err)

	var chunkErr *ChunkFetchError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 300, chunkErr.Offset)
	assert.Equal(t, "device-9", chunkErr.DeviceID)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Len(t, track, 300)
	assert.Equal(t, 4, f.calls, "failed chunks are not retried")
}

func TestLoad_ContextCancelled(t *testing.T) {
	f := newSliceFetcher(1000)
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := ChunkFetcherFunc(func(ctx context.Context, id string, offset, limit int) ([]core.Point, error) {
		chunk, err := f.FetchChunk(ctx, id, offset, limit)
		if offset == 200 {
			cancel()
		}
		return chunk, err
	})

	l, err := New(fetcher, DefaultConfig(), discard)
	require.NoError(t, err)

	track, err := l.Load(ctx, "device-1", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, track, 300)
}

func TestSample(t *testing.T) {
	track := makeTrack(1200)

	sampled := Sample(track, 1000)
	require.Len(t, sampled, 1000)
	assert.True(t, sampled[0].Equal(track[0]))
	assert.True(t, sampled[999].Equal(track[1199]))
	for i := 1; i < len(sampled); i++ {
		assert.True(t, sampled[i].Time.After(sampled[i-1].Time), "order preserved at %d", i)
	}
}

func TestSample_SmallInputUnchanged(t *testing.T) {
	track := makeTrack(10)
	assert.Equal(t, track, Sample(track, 20))
	assert.Len(t, Sample(makeTrack(10), 1), 2)
}
