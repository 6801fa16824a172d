package streaming

import (
	"encoding/json"
)

// Outbound message types drawn by the map widget.
const (
	TypeReset     = "reset"
	TypeTileLayer = "tile_layer"
	TypeViewport  = "viewport"
	TypePolyline  = "polyline"
	TypeMarker    = "marker"
)

// Inbound message types reported by the map widget.
const (
	TypeTileError   = "tile_error"
	TypeRenderError = "render_error"
	TypeMounted     = "mounted"
	TypeUpgrade     = "upgrade"
	TypeDowngrade   = "downgrade"
	TypeRetry       = "retry"
	TypeAck         = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	ViewID  string          `json:"viewId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the widget's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// TileLayerPayload asks the widget to mount a tile layer.
type TileLayerPayload struct {
	URLTemplate string `json:"urlTemplate"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
}

// ViewportPayload centers the map.
type ViewportPayload struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

// PolylinePayload carries the track line as [lat, lng] pairs.
type PolylinePayload struct {
	Points  [][2]float64 `json:"points"`
	Color   string       `json:"color"`
	Weight  int          `json:"weight"`
	Opacity float64      `json:"opacity"`
}

// MarkerPayload carries one marker with its icon and popup text.
type MarkerPayload struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Icon      string  `json:"icon"`
	IconColor string  `json:"iconColor"`
	IconSize  int     `json:"iconSize"`
	IconText  string  `json:"iconText,omitempty"`
	Popup     string  `json:"popup"`
}

// TileErrorPayload reports a tile that failed to load.
type TileErrorPayload struct {
	URL string `json:"url"`
}

// RenderErrorPayload reports a failure inside the widget.
type RenderErrorPayload struct {
	Message string `json:"message"`
}
