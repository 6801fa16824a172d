package static

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/trackmap/pkg/core"
)

func TestFetchChunk(t *testing.T) {
	track := make(core.Track, 7)
	for i := range track {
		track[i] = core.Point{Lat: float64(i), Lng: 1}
	}
	s := New().Add("a", track)
	ctx := context.Background()

	chunk, err := s.FetchChunk(ctx, "a", 5, 5)
	require.NoError(t, err)
	require.Len(t, chunk, 2)
	assert.Equal(t, 5.0, chunk[0].Lat)

	chunk, err = s.FetchChunk(ctx, "a", 7, 5)
	require.NoError(t, err)
	assert.Empty(t, chunk)

	n, err := s.CountPoints(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFetchChunk_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().FetchChunk(ctx, "a", 0, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.json")
	require.NoError(t, os.WriteFile(path, []byte("[[13.4,52.5],[13.5,52.6,1767225600]]"), 0644))

	s, err := FromFile("dev", path)
	require.NoError(t, err)
	n, err := s.CountPoints(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFromFile_Errors(t *testing.T) {
	_, err := FromFile("dev", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("[[200,10]]"), 0644))
	_, err = FromFile("dev", path)
	require.Error(t, err)
}
