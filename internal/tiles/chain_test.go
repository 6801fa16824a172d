package tiles

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/trackmap/pkg/core"
)

func testProviders(n int) []core.TileProvider {
	out := make([]core.TileProvider, n)
	for i := range out {
		out[i] = core.TileProvider{URLTemplate: "https://p" + string(rune('a'+i)) + "/{z}/{x}/{y}.png", MaxZoom: 18}
	}
	return out
}

func newTestChain(t *testing.T, n int) (*Chain, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, err := New(testProviders(n), logger)
	require.NoError(t, err)
	return c, &buf
}

func TestNew_NoProviders(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, ErrNoProviders)
}

func TestChain_StartsAtFirstProvider(t *testing.T) {
	c, _ := newTestChain(t, 3)
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, "https://pa/{z}/{x}/{y}.png", c.Current().URLTemplate)
	assert.False(t, c.Exhausted())
	assert.Equal(t, 3, c.Len())
}

func TestChain_AdvancesThenExhausts(t *testing.T) {
	c, logs := newTestChain(t, 3)

	f := c.Fail("a/1/1/1.png")
	assert.True(t, f.Advanced)
	assert.Equal(t, 1, c.Index())

	f = c.Fail("b/1/1/1.png")
	assert.True(t, f.Advanced)
	assert.Equal(t, 2, c.Index())
	assert.False(t, c.Exhausted())

	f = c.Fail("c/1/1/1.png")
	assert.False(t, f.Advanced)
	assert.True(t, f.Exhausted)
	assert.True(t, f.NewlyExhausted)
	assert.Equal(t, 2, c.Index(), "index stays on the last provider")
	assert.True(t, c.Exhausted())

	f = c.Fail("c/1/1/2.png")
	assert.True(t, f.Exhausted)
	assert.False(t, f.NewlyExhausted)
	assert.Equal(t, 2, c.Index())

	assert.Equal(t, 1, strings.Count(logs.String(), "All tile providers exhausted"))
}

func TestChain_SingleProvider(t *testing.T) {
	c, _ := newTestChain(t, 1)
	f := c.Fail("")
	assert.True(t, f.NewlyExhausted)
	assert.Equal(t, 0, c.Index())
}

func TestNew_CopiesProviders(t *testing.T) {
	providers := testProviders(2)
	c, err := New(providers, nil)
	require.NoError(t, err)

	providers[0].URLTemplate = "mutated"
	assert.NotEqual(t, "mutated", c.Current().URLTemplate)
}

func TestDefaultProviders(t *testing.T) {
	require.NotEmpty(t, DefaultProviders)
	for _, p := range DefaultProviders {
		assert.Contains(t, p.URLTemplate, "{z}")
		assert.Greater(t, p.MaxZoom, 0)
	}
}
