package perf

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// PhaseSummary aggregates the retained samples of one phase.
type PhaseSummary struct {
	Phase      Phase
	Count      int
	Last       time.Duration
	Mean       time.Duration
	P95        time.Duration
	Violations int
	Threshold  time.Duration
}

// Summary aggregates the retained history per phase, in Phases order.
// Phases without samples are omitted.
func (m *Monitor) Summary() []PhaseSummary {
	byPhase := make(map[Phase][]Sample)
	for _, s := range m.History() {
		byPhase[s.Phase] = append(byPhase[s.Phase], s)
	}

	var out []PhaseSummary
	for _, phase := range Phases {
		samples := byPhase[phase]
		if len(samples) == 0 {
			continue
		}
		out = append(out, summarize(phase, samples, m.cfg.Threshold(phase)))
	}
	return out
}

func summarize(phase Phase, samples []Sample, threshold time.Duration) PhaseSummary {
	ms := make([]float64, len(samples))
	violations := 0
	for i, s := range samples {
		ms[i] = float64(s.Duration) / float64(time.Millisecond)
		if s.Exceeded {
			violations++
		}
	}
	sorted := slices.Clone(ms)
	slices.Sort(sorted)

	return PhaseSummary{
		Phase:      phase,
		Count:      len(samples),
		Last:       samples[len(samples)-1].Duration,
		Mean:       fromMillis(stat.Mean(ms, nil)),
		P95:        fromMillis(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
		Violations: violations,
		Threshold:  threshold,
	}
}

func fromMillis(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

// LogSummary writes one structured line per phase.
func (m *Monitor) LogSummary() {
	for _, s := range m.Summary() {
		level := slog.LevelInfo
		if s.Violations > 0 {
			level = slog.LevelWarn
		}
		m.logger.Log(context.Background(), level, "Performance summary",
			"phase", s.Phase,
			"count", s.Count,
			"last", s.Last,
			"mean", s.Mean,
			"p95", s.P95,
			"threshold", s.Threshold,
			"violations", s.Violations,
		)
	}
}
