package loader

import "github.com/fleetpulse/trackmap/pkg/core"

// tracker keeps reported progress monotonic. Without a known total it uses
// a growing estimate: one more chunk while the last chunk came back full.
type tracker struct {
	total     int
	chunkSize int
	onUpdate  func(core.LoadProgress)
	last      core.LoadProgress
}

func newTracker(total, chunkSize int, onUpdate func(core.LoadProgress)) *tracker {
	return &tracker{total: total, chunkSize: chunkSize, onUpdate: onUpdate}
}

// report is called after every chunk. more tells whether another chunk is
// expected.
func (t *tracker) report(current int, more bool) {
	total := t.total
	if total == 0 && more {
		total = current + t.chunkSize
	}
	if total < current {
		total = current
	}
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	t.emit(core.LoadProgress{Current: current, Total: total, Percentage: pct})
}

func (t *tracker) finish(current int) {
	t.emit(core.LoadProgress{Current: current, Total: current, Percentage: 100})
}

func (t *tracker) emit(p core.LoadProgress) {
	if p.Current < t.last.Current {
		p.Current = t.last.Current
	}
	if p.Total < t.last.Total {
		p.Total = t.last.Total
	}
	if p.Percentage < t.last.Percentage {
		p.Percentage = t.last.Percentage
	}
	if p.Percentage > 100 {
		p.Percentage = 100
	}
	t.last = p
	if t.onUpdate != nil {
		t.onUpdate(p)
	}
}
