// Package export implements a renderer that writes the map as a GeoJSON
// FeatureCollection file.
package export

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/fleetpulse/trackmap/internal/render"
	"github.com/fleetpulse/trackmap/pkg/core"
)

// ErrNothingRendered is returned by Export before anything was drawn.
var ErrNothingRendered = errors.New("nothing rendered")

// Config holds export renderer settings.
type Config struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// Renderer collects render calls into a FeatureCollection. It renders
// synchronously and never reports tile errors.
type Renderer struct {
	cfg  Config
	name string

	mu       sync.Mutex
	fc       *geojson.FeatureCollection
	resets   int
	lastPath string
}

var (
	_ render.Renderer   = (*Renderer)(nil)
	_ render.Viewporter = (*Renderer)(nil)
	_ render.Resetter   = (*Renderer)(nil)
)

// New creates an export renderer. name is used for the output file.
func New(cfg Config, name string) *Renderer {
	return &Renderer{cfg: cfg, name: name, fc: geojson.NewFeatureCollection()}
}

// RenderTileLayer records the tile source as a collection member.
func (r *Renderer) RenderTileLayer(urlTemplate, attribution string, maxZoom int, _ render.TileErrorFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extra()["tileLayer"] = map[string]any{
		"urlTemplate": urlTemplate,
		"attribution": attribution,
		"maxZoom":     maxZoom,
	}
	return nil
}

// RenderPolyline adds the track as a LineString feature.
func (r *Renderer) RenderPolyline(points core.Track, style render.PolylineStyle) error {
	if len(points) == 0 {
		return nil
	}

	line := make(orb.LineString, len(points))
	for i, p := range points {
		line[i] = orb.Point{p.Lng, p.Lat}
	}
	if len(line) == 1 {
		line = append(line, line[0])
	}

	f := geojson.NewFeature(line)
	f.BBox = geojson.NewBBox(line.Bound())
	f.Properties["kind"] = "track"
	f.Properties["points"] = len(points)
	f.Properties["stroke"] = style.Color
	f.Properties["stroke-width"] = style.Weight
	f.Properties["stroke-opacity"] = style.Opacity

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fc.Append(f)
	return nil
}

// RenderMarker adds a Point feature carrying the icon and popup.
func (r *Renderer) RenderMarker(point core.Point, icon render.Icon, popup string) error {
	f := geojson.NewFeature(orb.Point{point.Lng, point.Lat})
	f.Properties["kind"] = "marker"
	f.Properties["icon"] = icon.Name
	f.Properties["marker-color"] = icon.Color
	f.Properties["popup"] = popup
	if icon.Text != "" {
		f.Properties["label"] = icon.Text
	}
	if !point.Time.IsZero() {
		f.Properties["time"] = point.Time.UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fc.Append(f)
	return nil
}

// SetViewport records the fitted viewport as a collection member.
func (r *Renderer) SetViewport(v render.Viewport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extra()["viewport"] = map[string]any{
		"center": []float64{v.Center.Lng, v.Center.Lat},
		"zoom":   v.Zoom,
	}
	return nil
}

// Reset drops everything rendered so far.
func (r *Renderer) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fc = geojson.NewFeatureCollection()
	r.resets++
	return nil
}

func (r *Renderer) extra() geojson.Properties {
	if r.fc.ExtraMembers == nil {
		r.fc.ExtraMembers = geojson.Properties{}
	}
	return r.fc.ExtraMembers
}

// Collection returns the encoded collection.
func (r *Renderer) Collection() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Marshal(r.fc)
}

// Export writes the collection to <outputDir>/<name>.geojson, gzipped when
// configured, and returns the path.
func (r *Renderer) Export() (string, error) {
	data, err := r.Collection()
	if err != nil {
		return "", fmt.Errorf("encode feature collection: %w", err)
	}

	r.mu.Lock()
	empty := len(r.fc.Features) == 0 && len(r.fc.ExtraMembers) == 0
	r.mu.Unlock()
	if empty {
		return "", ErrNothingRendered
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := sanitize(r.name) + ".geojson"
	if r.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(r.cfg.OutputDir, filename)

	if r.cfg.CompressOutput {
		err = writeGzip(outputPath, data)
	} else {
		err = os.WriteFile(outputPath, data, 0644)
	}
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.lastPath = outputPath
	r.mu.Unlock()
	return outputPath, nil
}

// LastExportPath returns the path of the last successful export.
func (r *Renderer) LastExportPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPath
}

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if _, err := gw.Write(data); err != nil {
		return fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

func sanitize(name string) string {
	if name == "" {
		return "track"
	}
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")
	return r.Replace(name)
}
