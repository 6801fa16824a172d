// Package tiles implements the tile provider fallback chain.
package tiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fleetpulse/trackmap/pkg/core"
)

const instrumentationName = "github.com/fleetpulse/trackmap/internal/tiles"

// ErrNoProviders is returned when a chain is built without providers.
var ErrNoProviders = errors.New("tile chain needs at least one provider")

// DefaultProviders is the chain used when no providers are configured.
var DefaultProviders = []core.TileProvider{
	{
		URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
		MaxZoom:     19,
	},
	{
		URLTemplate: "https://{s}.tile.openstreetmap.fr/hot/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors, Humanitarian OSM Team",
		MaxZoom:     19,
	},
	{
		URLTemplate: "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
		MaxZoom:     20,
	},
}

// Failover describes what a tile failure did to the chain.
type Failover struct {
	// Advanced is true when the chain moved to the next provider.
	Advanced bool
	// Exhausted is true when the failure happened on the last provider.
	Exhausted bool
	// NewlyExhausted is true only for the first failure on the last provider.
	NewlyExhausted bool
	Provider       core.TileProvider
}

// Chain is an ordered list of tile providers with a current-index pointer.
// It only moves forward; the last provider is kept once reached.
type Chain struct {
	mu        sync.Mutex
	providers []core.TileProvider
	index     int
	exhausted bool
	logger    *slog.Logger

	failovers metric.Int64Counter
}

// New creates a chain starting at the first provider.
func New(providers []core.TileProvider, logger *slog.Logger) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if logger == nil {
		logger = slog.Default()
	}

	failovers, err := otel.Meter(instrumentationName).Int64Counter(
		"tiles.failovers",
		metric.WithDescription("Tile load failures handled by the provider chain"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failover counter: %w", err)
	}

	cp := make([]core.TileProvider, len(providers))
	copy(cp, providers)
	return &Chain{providers: cp, logger: logger, failovers: failovers}, nil
}

// Current returns the provider tiles should be loaded from.
func (c *Chain) Current() core.TileProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providers[c.index]
}

// Index returns the position of the current provider.
func (c *Chain) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Len returns the number of providers.
func (c *Chain) Len() int {
	return len(c.providers)
}

// Exhausted reports whether a tile has failed on the last provider.
func (c *Chain) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Fail records a tile load failure. The chain advances by one provider
// unless it is already on the last one, in which case it logs the
// exhaustion and keeps the index so tiles already delivered stay usable.
func (c *Chain) Fail(tileURL string) Failover {
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := c.providers[c.index]
	c.failovers.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int("provider", c.index)))

	if c.index < len(c.providers)-1 {
		c.index++
		next := c.providers[c.index]
		c.logger.Warn("Tile load failed, switching provider",
			"failed", failed.URLTemplate, "tile", tileURL,
			"next", next.URLTemplate, "index", c.index)
		return Failover{Advanced: true, Provider: next}
	}

	newly := !c.exhausted
	c.exhausted = true
	if newly {
		c.logger.Error("All tile providers exhausted, keeping last provider",
			"provider", failed.URLTemplate, "tile", tileURL, "providers", len(c.providers))
	} else {
		c.logger.Debug("Tile load failed on exhausted chain", "tile", tileURL)
	}
	return Failover{Exhausted: true, NewlyExhausted: newly, Provider: failed}
}
