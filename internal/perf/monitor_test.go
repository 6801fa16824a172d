package perf

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/trackmap/internal/timeutil"
)

type recordingSink struct {
	samples []Sample
	err     error
}

func (s *recordingSink) WriteSample(_ context.Context, sample Sample) error {
	s.samples = append(s.samples, sample)
	return s.err
}

func newTestMonitor(t *testing.T, cfg Config) (*Monitor, *timeutil.MockClock, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m, err := New(cfg, clock, logger)
	require.NoError(t, err)
	return m, clock, &buf
}

func TestDefaultConfig_Thresholds(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2000*time.Millisecond, cfg.Threshold(PhaseInitialRender))
	assert.Equal(t, 1000*time.Millisecond, cfg.Threshold(PhaseDataFetch))
	assert.Equal(t, 500*time.Millisecond, cfg.Threshold(PhaseSimplification))
	assert.Equal(t, time.Duration(0), cfg.Threshold("unknown"))
}

func TestMonitor_BeginWithinThreshold(t *testing.T) {
	m, clock, logs := newTestMonitor(t, DefaultConfig())

	done := m.Begin(PhaseDataFetch, map[string]string{"device": "truck-7"})
	clock.Advance(400 * time.Millisecond)
	s := done()

	assert.Equal(t, PhaseDataFetch, s.Phase)
	assert.Equal(t, 400*time.Millisecond, s.Duration)
	assert.False(t, s.Exceeded)
	assert.Equal(t, "truck-7", s.Labels["device"])
	assert.NotContains(t, logs.String(), "exceeded")
}

func TestMonitor_WarnsOnViolation(t *testing.T) {
	m, clock, logs := newTestMonitor(t, DefaultConfig())

	done := m.Begin(PhaseSimplification, nil)
	clock.Advance(750 * time.Millisecond)
	s := done()

	assert.True(t, s.Exceeded)
	assert.Equal(t, 500*time.Millisecond, s.Threshold)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "Phase exceeded threshold")
	assert.Contains(t, logs.String(), "phase=simplification")
}

func TestMonitor_LabelsAreCopied(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultConfig())

	labels := map[string]string{"view": "a"}
	s := m.Record(PhaseInitialRender, time.Second, labels)
	labels["view"] = "b"

	assert.Equal(t, "a", s.Labels["view"])
	assert.Equal(t, "a", m.History()[0].Labels["view"])
}

func TestMonitor_HistoryIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistorySize = 3
	m, _, _ := newTestMonitor(t, cfg)

	for i := 1; i <= 5; i++ {
		m.Record(PhaseDataFetch, time.Duration(i)*time.Millisecond, nil)
	}

	history := m.History()
	require.Len(t, history, 3)
	assert.Equal(t, 3*time.Millisecond, history[0].Duration)
	assert.Equal(t, 5*time.Millisecond, history[2].Duration)

	m.Reset()
	assert.Empty(t, m.History())
}

func TestMonitor_Summary(t *testing.T) {
	m, _, logs := newTestMonitor(t, DefaultConfig())

	for i := 1; i <= 20; i++ {
		m.Record(PhaseDataFetch, time.Duration(i)*time.Millisecond, nil)
	}
	m.Record(PhaseInitialRender, 2500*time.Millisecond, nil)

	summary := m.Summary()
	require.Len(t, summary, 2)

	render := summary[0]
	assert.Equal(t, PhaseInitialRender, render.Phase)
	assert.Equal(t, 1, render.Count)
	assert.Equal(t, 1, render.Violations)

	fetch := summary[1]
	assert.Equal(t, PhaseDataFetch, fetch.Phase)
	assert.Equal(t, 20, fetch.Count)
	assert.Equal(t, 20*time.Millisecond, fetch.Last)
	assert.InDelta(t, float64(10500*time.Microsecond), float64(fetch.Mean), float64(time.Microsecond))
	assert.GreaterOrEqual(t, fetch.P95, 18*time.Millisecond)
	assert.LessOrEqual(t, fetch.P95, 20*time.Millisecond)
	assert.Equal(t, 0, fetch.Violations)

	logs.Reset()
	m.LogSummary()
	assert.Contains(t, logs.String(), "Performance summary")
	assert.Contains(t, logs.String(), "phase=data_fetch")
}

func TestMonitor_Sinks(t *testing.T) {
	m, _, logs := newTestMonitor(t, DefaultConfig())

	ok := &recordingSink{}
	broken := &recordingSink{err: errors.New("bucket missing")}
	m.AddSink(ok)
	m.AddSink(broken)

	m.Record(PhaseDataFetch, time.Millisecond, nil)

	assert.Len(t, ok.samples, 1)
	assert.Len(t, broken.samples, 1)
	assert.Contains(t, logs.String(), "Failed to write perf sample")
}
