// Package render defines the narrow interface the map view draws through
// and the static marker icon registry.
package render

import (
	"github.com/fleetpulse/trackmap/pkg/core"
)

// TileErrorFunc is called by a renderer when a tile fails to load.
type TileErrorFunc func(tileURL string)

// PolylineStyle describes how the track line is drawn.
type PolylineStyle struct {
	Color   string  `json:"color"`
	Weight  int     `json:"weight"`
	Opacity float64 `json:"opacity"`
}

// DefaultPolylineStyle is used for every track line.
var DefaultPolylineStyle = PolylineStyle{Color: "#2563eb", Weight: 4, Opacity: 0.85}

// Renderer is implemented by a map widget.
type Renderer interface {
	RenderTileLayer(urlTemplate, attribution string, maxZoom int, onTileError TileErrorFunc) error
	RenderPolyline(points core.Track, style PolylineStyle) error
	RenderMarker(point core.Point, icon Icon, popup string) error
}

// Viewport is the map center and zoom fitted to a track.
type Viewport struct {
	Center core.Point `json:"center"`
	Zoom   int        `json:"zoom"`
}

// Viewporter is implemented by renderers that accept a fitted viewport.
type Viewporter interface {
	SetViewport(v Viewport) error
}

// Resetter is implemented by renderers that must be cleared before a full
// re-render.
type Resetter interface {
	Reset() error
}

// AsyncMounter is implemented by renderers whose interactive map becomes
// ready after the render calls return. Such renderers report readiness
// separately, for the websocket widget via a "mounted" event.
type AsyncMounter interface {
	MountsAsync() bool
}

// IsAsync reports whether r reports interactive readiness later.
func IsAsync(r Renderer) bool {
	m, ok := r.(AsyncMounter)
	return ok && m.MountsAsync()
}
