// Command trackmap renders the GPS track of one device. The track is loaded
// from the configured source, reduced and drawn through the configured
// renderer: a GeoJSON export or a live map widget over WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/fleetpulse/trackmap/internal/config"
	"github.com/fleetpulse/trackmap/internal/dispatcher"
	"github.com/fleetpulse/trackmap/internal/influx"
	"github.com/fleetpulse/trackmap/internal/loader"
	"github.com/fleetpulse/trackmap/internal/logging"
	"github.com/fleetpulse/trackmap/internal/orchestrator"
	intOtel "github.com/fleetpulse/trackmap/internal/otel"
	"github.com/fleetpulse/trackmap/internal/perf"
	"github.com/fleetpulse/trackmap/internal/tiles"
	"github.com/fleetpulse/trackmap/internal/timeutil"
	"github.com/fleetpulse/trackmap/pkg/core"
	"github.com/fleetpulse/trackmap/pkg/streaming"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "trackmap"
)

// eventBufferSize is the per-type queue of inbound widget events.
const eventBufferSize = 64

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run() error {
	sessionStart := time.Now()

	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	configDir, _ := fs.GetString("config")

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	}
	if err := config.BindFlags(fs); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	device := viper.GetString("device")
	if device == "" {
		return errors.New("no device given, use --device")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logging to file, optionally mirrored to OTel
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logFilePath := logging.LogFilePath(logsDir, AppName, sessionStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file: %w", err)
	}
	defer logFile.Close()

	var otelProvider *intOtel.Provider
	otelCfg := config.GetOTelConfig()
	otelCfg.LogWriter = logFile
	if otelCfg.Enabled {
		otelProvider, err = intOtel.New(ctx, otelCfg)
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := otelProvider.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shut down OTel provider", "error", err)
				}
			}()
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}
	slogManager.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.String("device", device)}
	})
	slogManager.Setup(logFile, viper.GetString("logLevel"), otelLogProvider)
	logger = slogManager.Logger()
	logger.Info("Starting up", "version", CurrentVersion, "buildDate", BuildDate, "log", logFilePath)

	// typed config
	opts, err := config.GetMapOptions()
	if err != nil {
		return err
	}
	loaderCfg, err := config.GetLoaderConfig()
	if err != nil {
		return err
	}
	providers, err := config.GetTileProviders()
	if err != nil {
		return err
	}
	perfCfg, err := config.GetPerfConfig()
	if err != nil {
		return err
	}
	sourceCfg, err := config.GetSourceConfig()
	if err != nil {
		return err
	}
	rendererCfg, err := config.GetRendererConfig()
	if err != nil {
		return err
	}

	monitor, err := perf.New(perfCfg, timeutil.RealClock{}, logger)
	if err != nil {
		return err
	}
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		influxManager := influx.NewManager(influxCfg, logger)
		if err := influxManager.Connect(ctx); err != nil {
			logger.Warn("InfluxDB unavailable, perf samples stay local", "error", err)
		} else {
			monitor.AddSink(influxManager)
		}
		defer func() {
			if err := influxManager.Close(); err != nil {
				logger.Warn("Failed to close InfluxDB client", "error", err)
			}
		}()
	}

	// source and renderer
	src, err := openSource(ctx, sourceCfg, device, logger)
	defer src.close()
	if err != nil {
		return err
	}

	trackLoader, err := loader.New(src.fetcher, loaderCfg, logger)
	if err != nil {
		return err
	}
	chain, err := tiles.New(providers, logger)
	if err != nil {
		return err
	}

	mr, err := openRenderer(rendererCfg, device, logger)
	if err != nil {
		return err
	}

	bar := progressbar.Default(100, "loading "+device)
	states := make(chan core.LoadingState, 32)

	view, err := orchestrator.NewView(opts, orchestrator.Dependencies{
		Renderer: mr.Renderer,
		Tiles:    chain,
		Loader:   trackLoader,
		Monitor:  monitor,
		Logger:   logger,
		OnPathUpdate: func(markers []core.ClusterMarker) {
			logger.Debug("Path updated", "markers", len(markers), "absorbed", core.TotalAbsorbed(markers))
		},
		OnProgress: func(p core.LoadProgress) {
			_ = bar.Set(int(p.Percentage))
		},
		OnStateChange: func(s core.LoadingState) {
			select {
			case states <- s:
			default:
			}
		},
		OnError: func(err error) {
			logger.Warn("Map error", "error", err)
		},
	})
	if err != nil {
		return err
	}
	defer view.Close()

	if mr.widget != nil {
		d, err := dispatcher.New(logging.NewDispatcherLogger(logger))
		if err != nil {
			return err
		}
		defer d.Close()

		registry := orchestrator.NewRegistry()
		registry.Add(view)
		orchestrator.RegisterHandlers(d, registry, eventBufferSize)

		mr.widget.SetViewID(view.ID())
		mr.widget.OnEvent(func(env streaming.Envelope) {
			if _, err := d.Dispatch(orchestrator.EventFromEnvelope(env)); err != nil {
				logger.Warn("Widget event rejected", "event", env.Type, "error", err)
			}
		})
	}

	track, err := view.Load(ctx, device)
	_ = bar.Finish()
	if err != nil {
		if len(track) == 0 {
			return fmt.Errorf("failed to load track of %s: %w", device, err)
		}
		// partial tracks are still rendered
		logger.Error("Track load incomplete", "points", len(track), "error", err)
	}

	final, err := waitSettled(ctx, states, opts.SettleDelay)
	if err != nil {
		return err
	}
	logger.Info("Map settled",
		"state", final.String(),
		"implementation", view.Implementation().String(),
		"points", len(view.Track()),
		"markers", len(view.Markers()))

	if mr.widget != nil {
		// the widget keeps driving the view until interrupted
		<-ctx.Done()
	}

	monitor.LogSummary()
	return finish(mr, slogManager)
}

// waitSettled waits until the view has been Ready or Error for quiet with
// no further state change. A Ready can be followed by an automatic upgrade.
func waitSettled(ctx context.Context, states <-chan core.LoadingState, quiet time.Duration) (core.LoadingState, error) {
	var (
		last  core.LoadingState
		timer *time.Timer
		fire  <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stopTimer()

	for {
		select {
		case s := <-states:
			last = s
			stopTimer()
			fire = nil
			if s == core.Ready || s == core.Error {
				timer = time.NewTimer(quiet)
				fire = timer.C
			}
		case <-fire:
			return last, nil
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
}

func finish(mr mapRenderer, slogManager *logging.SlogManager) error {
	err := mr.finish()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := slogManager.Flush(flushCtx); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
