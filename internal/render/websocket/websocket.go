// Package websocket implements a renderer that drives a browser map widget
// over a WebSocket and relays the widget's events back to the view.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetpulse/trackmap/internal/render"
	"github.com/fleetpulse/trackmap/pkg/core"
	"github.com/fleetpulse/trackmap/pkg/streaming"
)

const defaultAckTimeout = 10 * time.Second

// Config holds widget connection settings.
type Config struct {
	URL        string        `json:"url" mapstructure:"url"`
	Secret     string        `json:"secret" mapstructure:"secret"`
	AckTimeout time.Duration `json:"ackTimeout" mapstructure:"ackTimeout"`
}

// Renderer streams render calls to the widget. Tile errors reported by the
// widget go to the callback passed with the current tile layer; all other
// inbound events go to the handler set with OnEvent.
type Renderer struct {
	conn   *connection
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	viewID      string
	onTileError render.TileErrorFunc
	onEvent     func(streaming.Envelope)
}

var (
	_ render.Renderer     = (*Renderer)(nil)
	_ render.Viewporter   = (*Renderer)(nil)
	_ render.Resetter     = (*Renderer)(nil)
	_ render.AsyncMounter = (*Renderer)(nil)
)

// New creates a widget renderer. Call Dial before rendering.
func New(cfg Config, logger *slog.Logger) *Renderer {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	r := &Renderer{cfg: cfg, logger: logger}
	r.conn = newConnection(logger, r.handleInbound)
	return r
}

// Dial connects to the widget.
func (r *Renderer) Dial() error {
	return r.conn.dial(r.cfg.URL, r.cfg.Secret)
}

// Close disconnects from the widget.
func (r *Renderer) Close() error {
	return r.conn.close()
}

// SetViewID tags every outbound message with the owning view.
func (r *Renderer) SetViewID(id string) {
	r.mu.Lock()
	r.viewID = id
	r.mu.Unlock()
}

// OnEvent sets the handler for inbound widget events other than acks and
// tile errors.
func (r *Renderer) OnEvent(fn func(streaming.Envelope)) {
	r.mu.Lock()
	r.onEvent = fn
	r.mu.Unlock()
}

// MountsAsync reports that the widget signals readiness with "mounted".
func (r *Renderer) MountsAsync() bool { return true }

func (r *Renderer) handleInbound(env streaming.Envelope) {
	r.mu.Lock()
	onTileError := r.onTileError
	onEvent := r.onEvent
	viewID := r.viewID
	r.mu.Unlock()

	if env.ViewID == "" {
		env.ViewID = viewID
	}

	if env.Type == streaming.TypeTileError {
		var p streaming.TileErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.logger.Warn("Malformed tile error from widget", "error", err)
			return
		}
		if onTileError != nil {
			onTileError(p.URL)
		}
		return
	}

	if onEvent == nil {
		r.logger.Debug("Unhandled widget event", "type", env.Type)
		return
	}
	onEvent(env)
}

func (r *Renderer) marshalEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		raw = b
	}

	r.mu.Lock()
	env := streaming.Envelope{Type: msgType, ViewID: r.viewID, Payload: raw}
	r.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (r *Renderer) sendEnvelope(msgType string, payload any) error {
	data, err := r.marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	r.conn.send(data, msgType == streaming.TypeReset)
	return nil
}

// Reset clears the widget.
func (r *Renderer) Reset() error {
	return r.sendEnvelope(streaming.TypeReset, nil)
}

// RenderTileLayer mounts a tile layer and waits for the widget to
// acknowledge it.
func (r *Renderer) RenderTileLayer(urlTemplate, attribution string, maxZoom int, onTileError render.TileErrorFunc) error {
	r.mu.Lock()
	r.onTileError = onTileError
	r.mu.Unlock()

	data, err := r.marshalEnvelope(streaming.TypeTileLayer, streaming.TileLayerPayload{
		URLTemplate: urlTemplate,
		Attribution: attribution,
		MaxZoom:     maxZoom,
	})
	if err != nil {
		return err
	}
	return r.conn.sendAndWait(data, streaming.TypeTileLayer, r.cfg.AckTimeout)
}

// SetViewport centers the widget map.
func (r *Renderer) SetViewport(v render.Viewport) error {
	return r.sendEnvelope(streaming.TypeViewport, streaming.ViewportPayload{
		Lat:  v.Center.Lat,
		Lng:  v.Center.Lng,
		Zoom: v.Zoom,
	})
}

// RenderPolyline draws the track line.
func (r *Renderer) RenderPolyline(points core.Track, style render.PolylineStyle) error {
	coords := make([][2]float64, len(points))
	for i, p := range points {
		coords[i] = [2]float64{p.Lat, p.Lng}
	}
	return r.sendEnvelope(streaming.TypePolyline, streaming.PolylinePayload{
		Points:  coords,
		Color:   style.Color,
		Weight:  style.Weight,
		Opacity: style.Opacity,
	})
}

// RenderMarker draws one marker.
func (r *Renderer) RenderMarker(point core.Point, icon render.Icon, popup string) error {
	return r.sendEnvelope(streaming.TypeMarker, streaming.MarkerPayload{
		Lat:       point.Lat,
		Lng:       point.Lng,
		Icon:      icon.Name,
		IconColor: icon.Color,
		IconSize:  icon.Size,
		IconText:  icon.Text,
		Popup:     popup,
	})
}
