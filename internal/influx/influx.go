// Package influx persists pipeline performance samples to InfluxDB, falling
// back to a gzip line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/fleetpulse/trackmap/internal/perf"
)

// Measurement is the measurement name used for phase samples.
const Measurement = "phase_duration"

// ErrDisabled is returned by Connect when the sink is turned off.
var ErrDisabled = errors.New("influx sink is disabled")

// Config holds connection settings.
type Config struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// URL returns the server address.
func (c Config) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu           sync.Mutex
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer
	valid        bool
}

var _ perf.Sink = (*Manager)(nil)

// NewManager creates a new, unconnected manager.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Connect pings the server. When it is unreachable samples go to the
// gzip backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		if m.backupWriter == nil {
			m.logger.Info("Failed to reach InfluxDB, writing to backup file",
				"backupPath", m.cfg.BackupPath, "error", err)

			file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.backupWriter = gzip.NewWriter(file)
		}
		return nil
	}

	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error("Error sending data to InfluxDB", "bucket", m.cfg.Bucket, "error", writeErr)
		}
	}(m.writer.Errors())

	m.valid = true
	m.logger.Info("InfluxDB client initialized", "url", m.cfg.URL(), "bucket", m.cfg.Bucket)
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info("Organization not found, creating", "org", m.cfg.Org)
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %q: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}

	m.logger.Info("Bucket not found, creating", "bucket", m.cfg.Bucket)
	rule := domain.RetentionRuleTypeExpire
	_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30, // 30 days
	})
	if err != nil {
		return fmt.Errorf("creating bucket %q: %w", m.cfg.Bucket, err)
	}
	return nil
}

// Valid reports whether samples go to the server rather than the backup.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// WriteSample implements perf.Sink.
func (m *Manager) WriteSample(ctx context.Context, s perf.Sample) error {
	return m.WritePoint(ctx, SamplePoint(s))
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(_ context.Context, point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}

	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}

	var errs []error
	if m.backupWriter != nil {
		errs = append(errs, m.backupWriter.Close())
		m.backupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// SamplePoint converts a perf sample into a line-protocol point. Labels
// become tags.
func SamplePoint(s perf.Sample) *influxdb2_write.Point {
	tags := map[string]string{"phase": string(s.Phase)}
	for k, v := range s.Labels {
		tags[k] = v
	}
	fields := map[string]any{
		"duration_ms":  float64(s.Duration) / float64(time.Millisecond),
		"threshold_ms": float64(s.Threshold) / float64(time.Millisecond),
		"exceeded":     s.Exceeded,
	}
	return influxdb2_write.NewPoint(Measurement, tags, fields, s.Start.Add(s.Duration))
}
