// Package perf records phase durations of the map pipeline and warns when a
// phase runs over its budget.
package perf

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fleetpulse/trackmap/internal/queue"
	"github.com/fleetpulse/trackmap/internal/timeutil"
)

// Phase is an instrumented stage of the pipeline.
type Phase string

const (
	PhaseInitialRender  Phase = "initial_render"
	PhaseDataFetch      Phase = "data_fetch"
	PhaseSimplification Phase = "simplification"
)

// Phases lists every instrumented phase.
var Phases = []Phase{PhaseInitialRender, PhaseDataFetch, PhaseSimplification}

// Config holds the per-phase thresholds and the history size.
type Config struct {
	InitialRender  time.Duration `json:"initialRender" mapstructure:"initialRender" validate:"gt=0"`
	DataFetch      time.Duration `json:"dataFetch" mapstructure:"dataFetch" validate:"gt=0"`
	Simplification time.Duration `json:"simplification" mapstructure:"simplification" validate:"gt=0"`
	HistorySize    int           `json:"historySize" mapstructure:"historySize" validate:"gte=1"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		InitialRender:  2000 * time.Millisecond,
		DataFetch:      1000 * time.Millisecond,
		Simplification: 500 * time.Millisecond,
		HistorySize:    256,
	}
}

// Threshold returns the budget for phase.
func (c Config) Threshold(phase Phase) time.Duration {
	switch phase {
	case PhaseInitialRender:
		return c.InitialRender
	case PhaseDataFetch:
		return c.DataFetch
	case PhaseSimplification:
		return c.Simplification
	}
	return 0
}

// Sample is one measured phase.
type Sample struct {
	Phase     Phase
	Start     time.Time
	Duration  time.Duration
	Threshold time.Duration
	Exceeded  bool
	Labels    map[string]string
}

// Sink receives every sample, for example to persist it in a time series
// store.
type Sink interface {
	WriteSample(ctx context.Context, s Sample) error
}

// Monitor measures phases. It never influences the pipeline.
type Monitor struct {
	cfg    Config
	clock  timeutil.Clock
	logger *slog.Logger

	mu      sync.Mutex
	history *queue.Queue[Sample]
	sinks   []Sink

	durations  metric.Float64Histogram
	violations metric.Int64Counter
}

// New creates a monitor. A nil clock uses the real clock.
func New(cfg Config, clock timeutil.Clock, logger *slog.Logger) (*Monitor, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistorySize < 1 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}

	m := meter()
	durations, err := m.Float64Histogram(
		"trackmap.phase.duration",
		metric.WithDescription("Duration of map pipeline phases"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	violations, err := m.Int64Counter(
		"trackmap.phase.violations",
		metric.WithDescription("Phases that exceeded their threshold"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating violation counter: %w", err)
	}

	return &Monitor{
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
		history:    queue.NewBounded[Sample](cfg.HistorySize),
		durations:  durations,
		violations: violations,
	}, nil
}

// AddSink registers a sink for later samples.
func (m *Monitor) AddSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Begin starts timing phase and returns the function that ends it.
func (m *Monitor) Begin(phase Phase, labels map[string]string) func() Sample {
	start := m.clock.Now()
	return func() Sample {
		return m.record(phase, start, m.clock.Since(start), labels)
	}
}

// Record stores an externally measured duration.
func (m *Monitor) Record(phase Phase, d time.Duration, labels map[string]string) Sample {
	return m.record(phase, m.clock.Now().Add(-d), d, labels)
}

func (m *Monitor) record(phase Phase, start time.Time, d time.Duration, labels map[string]string) Sample {
	threshold := m.cfg.Threshold(phase)
	s := Sample{
		Phase:     phase,
		Start:     start,
		Duration:  d,
		Threshold: threshold,
		Exceeded:  threshold > 0 && d > threshold,
		Labels:    maps.Clone(labels),
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("phase", string(phase)))
	m.durations.Record(ctx, float64(d)/float64(time.Millisecond), attrs)

	if s.Exceeded {
		m.violations.Add(ctx, 1, attrs)
		m.logger.Warn("Phase exceeded threshold",
			"phase", phase, "duration", d, "threshold", threshold, "labels", s.Labels)
	} else {
		m.logger.Debug("Phase completed", "phase", phase, "duration", d)
	}

	m.mu.Lock()
	m.history.Push(s)
	sinks := m.sinks
	m.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.WriteSample(ctx, s); err != nil {
			m.logger.Error("Failed to write perf sample", "phase", phase, "error", err)
		}
	}
	return s
}

// History returns the retained samples, oldest first.
func (m *Monitor) History() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Snapshot()
}

// Reset drops the retained history.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Clear()
}
