// Package schedule provides the cancellable timer tasks used by a map view:
// a fixed-interval ticker and a last-write-wins debouncer.
package schedule

import (
	"sync"
	"time"

	"github.com/fleetpulse/trackmap/internal/timeutil"
)

// Ticker calls a function on a fixed interval until stopped. A stopped
// ticker never calls its function again, even if a tick was already due.
type Ticker struct {
	clock    timeutil.Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   timeutil.Timer
	running bool
	gen     uint64
}

// NewTicker creates a stopped ticker.
func NewTicker(clock timeutil.Clock, interval time.Duration, fn func()) *Ticker {
	return &Ticker{clock: clock, interval: interval, fn: fn}
}

// Start begins ticking. Starting a running ticker restarts its interval.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.running = true
	t.gen++
	t.scheduleLocked(t.gen)
}

// Stop cancels the pending tick.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Running reports whether the ticker is started.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Ticker) scheduleLocked(gen uint64) {
	t.timer = t.clock.AfterFunc(t.interval, func() { t.tick(gen) })
}

func (t *Ticker) tick(gen uint64) {
	t.mu.Lock()
	if !t.running || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.scheduleLocked(gen)
	t.mu.Unlock()

	t.fn()
}
