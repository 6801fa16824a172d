package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fleetpulse/trackmap/internal/config"
	"github.com/fleetpulse/trackmap/internal/render"
	"github.com/fleetpulse/trackmap/internal/render/export"
	"github.com/fleetpulse/trackmap/internal/render/websocket"
)

// mapRenderer is an opened renderer. finish flushes or disconnects it.
type mapRenderer struct {
	render.Renderer
	widget *websocket.Renderer
	finish func() error
}

func openRenderer(cfg config.RendererConfig, device string, logger *slog.Logger) (mapRenderer, error) {
	switch cfg.Type {
	case config.RendererWebSocket:
		wsCfg := cfg.WebSocket
		wsCfg.URL = httpToWS(wsCfg.URL)
		r := websocket.New(wsCfg, logger)
		if err := r.Dial(); err != nil {
			return mapRenderer{}, fmt.Errorf("failed to connect to map widget: %w", err)
		}
		logger.Info("WebSocket renderer initialized", "url", wsCfg.URL)
		return mapRenderer{Renderer: r, widget: r, finish: r.Close}, nil

	default:
		r := export.New(cfg.Export, device)
		logger.Info("GeoJSON export renderer initialized", "outputDir", cfg.Export.OutputDir)
		return mapRenderer{Renderer: r, finish: func() error {
			path, err := r.Export()
			if err != nil {
				return err
			}
			logger.Info("Map exported", "path", path)
			fmt.Println(path)
			return nil
		}}, nil
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
