package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fleetpulse/trackmap/internal/database"
	"github.com/fleetpulse/trackmap/internal/influx"
	"github.com/fleetpulse/trackmap/internal/loader"
	"github.com/fleetpulse/trackmap/internal/orchestrator"
	"github.com/fleetpulse/trackmap/internal/otel"
	"github.com/fleetpulse/trackmap/internal/perf"
	"github.com/fleetpulse/trackmap/internal/render/export"
	"github.com/fleetpulse/trackmap/internal/render/websocket"
	"github.com/fleetpulse/trackmap/internal/source/httpsource"
	"github.com/fleetpulse/trackmap/internal/tiles"
	"github.com/fleetpulse/trackmap/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "trackmap.cfg.json"

// Source kinds.
const (
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
	SourceFile     = "file"
)

// Renderer kinds.
const (
	RendererExport    = "export"
	RendererWebSocket = "websocket"
)

// SQLiteConfig holds the sqlite source settings. An empty path opens a
// private in-memory database.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// FileConfig points at a "[[lng,lat(,unix)],...]" track file.
type FileConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// SourceConfig selects where tracks are read from.
type SourceConfig struct {
	Type     string                  `json:"type" mapstructure:"type" validate:"oneof=sqlite postgres http file"`
	SQLite   SQLiteConfig            `json:"sqlite" mapstructure:"sqlite"`
	Postgres database.PostgresConfig `json:"postgres" mapstructure:"postgres"`
	HTTP     httpsource.Config       `json:"http" mapstructure:"http"`
	File     FileConfig              `json:"file" mapstructure:"file"`
}

// RendererConfig selects the map renderer.
type RendererConfig struct {
	Type      string           `json:"type" mapstructure:"type" validate:"oneof=export websocket"`
	Export    export.Config    `json:"export" mapstructure:"export"`
	WebSocket websocket.Config `json:"websocket" mapstructure:"websocket"`
}

var validate = validator.New()

// SetDefaults registers the default of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./trackmaplogs")

	viper.SetDefault("map.maxMarkers", 20)
	viper.SetDefault("map.simplifyPath", true)
	viper.SetDefault("map.clusterMarkers", true)
	viper.SetDefault("map.tolerance", 0.00008)
	viper.SetDefault("map.simplifyMinPoints", 100)
	viper.SetDefault("map.userRequestedInteractive", false)
	viper.SetDefault("map.autoUpgradeForSmallTracks", false)
	viper.SetDefault("map.interactiveThreshold", orchestrator.DefaultInteractiveThreshold)
	viper.SetDefault("map.debounce", "300ms")
	viper.SetDefault("map.settleDelay", "500ms")
	viper.SetDefault("map.tickInterval", "100ms")
	viper.SetDefault("map.tickStep", 10)
	viper.SetDefault("map.tickCap", 90)
	viper.SetDefault("map.maxRetries", 3)
	viper.SetDefault("map.viewport.width", 1024)
	viper.SetDefault("map.viewport.height", 768)

	viper.SetDefault("loader.chunkSize", 100)
	viper.SetDefault("loader.samplingThreshold", 500)
	viper.SetDefault("loader.maxPoints", 1000)

	viper.SetDefault("perf.initialRender", "2s")
	viper.SetDefault("perf.dataFetch", "1s")
	viper.SetDefault("perf.simplification", "500ms")
	viper.SetDefault("perf.historySize", 256)

	viper.SetDefault("source.type", SourceSQLite)
	viper.SetDefault("source.sqlite.path", "./trackmap.db")
	viper.SetDefault("source.postgres.host", "localhost")
	viper.SetDefault("source.postgres.port", "5432")
	viper.SetDefault("source.postgres.username", "postgres")
	viper.SetDefault("source.postgres.password", "postgres")
	viper.SetDefault("source.postgres.database", "fleet")
	viper.SetDefault("source.http.serverUrl", "http://localhost:5000")
	viper.SetDefault("source.http.apiKey", "")
	viper.SetDefault("source.file.path", "")

	viper.SetDefault("renderer.type", RendererExport)
	viper.SetDefault("renderer.export.outputDir", "./maps")
	viper.SetDefault("renderer.export.compressOutput", false)
	viper.SetDefault("renderer.websocket.url", "ws://localhost:5000/widget")
	viper.SetDefault("renderer.websocket.secret", "")
	viper.SetDefault("renderer.websocket.ackTimeout", "10s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "fleetpulse")
	viper.SetDefault("influx.bucket", "trackmap_perf")
	viper.SetDefault("influx.backupPath", "./trackmaplogs/influx_backup.lp.gz")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "trackmap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Flags returns the command line flags that override config keys.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("trackmap", pflag.ContinueOnError)
	fs.String("config", ".", "directory containing "+FileName)
	fs.String("device", "", "device whose track is rendered")
	fs.String("logLevel", "info", "log level (debug, info, warn, error)")
	fs.String("source.type", SourceSQLite, "track source: sqlite, postgres, http or file")
	fs.String("source.file.path", "", "track file used by the file source")
	fs.String("renderer.type", RendererExport, "renderer: export or websocket")
	fs.String("renderer.export.outputDir", "./maps", "directory GeoJSON exports are written to")
	fs.Bool("map.userRequestedInteractive", false, "start with the interactive map")
	return fs
}

// BindFlags makes the flags in fs override the matching config keys. Only
// flags changed on the command line take precedence over the file.
func BindFlags(fs *pflag.FlagSet) error {
	return viper.BindPFlags(fs)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// settings mirrors the key tree. It is decoded from viper.AllSettings so
// file values, bound flags and defaults are merged per leaf key.
type settings struct {
	Map      orchestrator.Options `mapstructure:"map"`
	Loader   loader.Config        `mapstructure:"loader"`
	Perf     perf.Config          `mapstructure:"perf"`
	Source   SourceConfig         `mapstructure:"source"`
	Renderer RendererConfig       `mapstructure:"renderer"`
	Tiles    struct {
		Providers []core.TileProvider `mapstructure:"providers"`
	} `mapstructure:"tiles"`
}

func decode() (settings, error) {
	s := settings{
		Map:    orchestrator.DefaultOptions(),
		Loader: loader.DefaultConfig(),
		Perf:   perf.DefaultConfig(),
	}
	if err := viper.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode config: %w", err)
	}
	return s, nil
}

// GetMapOptions returns the validated view options.
func GetMapOptions() (orchestrator.Options, error) {
	s, err := decode()
	if err != nil {
		return s.Map, err
	}
	if err := s.Map.Validate(); err != nil {
		return s.Map, fmt.Errorf("invalid map options: %w", err)
	}
	return s.Map, nil
}

// GetLoaderConfig returns the validated loader config.
func GetLoaderConfig() (loader.Config, error) {
	s, err := decode()
	if err != nil {
		return s.Loader, err
	}
	if err := s.Loader.Validate(); err != nil {
		return s.Loader, fmt.Errorf("invalid loader config: %w", err)
	}
	return s.Loader, nil
}

// GetTileProviders returns the configured tile chain, or the default chain
// when none is configured.
func GetTileProviders() ([]core.TileProvider, error) {
	s, err := decode()
	if err != nil {
		return nil, err
	}
	if len(s.Tiles.Providers) == 0 {
		return tiles.DefaultProviders, nil
	}
	for i, p := range s.Tiles.Providers {
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("invalid tile provider %d: %w", i, err)
		}
	}
	return s.Tiles.Providers, nil
}

// GetPerfConfig returns the phase thresholds.
func GetPerfConfig() (perf.Config, error) {
	s, err := decode()
	if err != nil {
		return s.Perf, err
	}
	if err := validate.Struct(s.Perf); err != nil {
		return s.Perf, fmt.Errorf("invalid perf config: %w", err)
	}
	return s.Perf, nil
}

// GetOTelConfig returns the OpenTelemetry settings. The log writer is set
// by the caller.
func GetOTelConfig() otel.Config {
	return otel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetSourceConfig returns the track source settings.
func GetSourceConfig() (SourceConfig, error) {
	s, err := decode()
	if err != nil {
		return s.Source, err
	}
	cfg := s.Source
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid source config: %w", err)
	}
	if cfg.Type == SourceFile && cfg.File.Path == "" {
		return cfg, errors.New("invalid source config: file source needs source.file.path")
	}
	return cfg, nil
}

// GetRendererConfig returns the renderer settings.
func GetRendererConfig() (RendererConfig, error) {
	s, err := decode()
	if err != nil {
		return s.Renderer, err
	}
	if err := validate.Struct(s.Renderer); err != nil {
		return s.Renderer, fmt.Errorf("invalid renderer config: %w", err)
	}
	return s.Renderer, nil
}

// GetInfluxConfig returns the InfluxDB sink settings.
func GetInfluxConfig() influx.Config {
	return influx.Config{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}
