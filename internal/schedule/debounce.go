package schedule

import (
	"sync"
	"time"

	"github.com/fleetpulse/trackmap/internal/timeutil"
)

// Debouncer coalesces rapid Trigger calls into one call of the latest
// value once the delay has passed without a newer trigger.
type Debouncer[T any] struct {
	clock timeutil.Clock
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   timeutil.Timer
	value   T
	gen     uint64
	stopped bool
}

// NewDebouncer creates a debouncer calling fn with the last triggered value.
func NewDebouncer[T any](clock timeutil.Clock, delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{clock: clock, delay: delay, fn: fn}
}

// Trigger schedules fn(v), replacing any pending value.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.value = v
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen, v) })
}

// Flush runs the pending call now, if any, and reports whether it did.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	v := d.value
	var zero T
	d.value = zero
	d.mu.Unlock()

	d.fn(v)
	return true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops any pending value; later triggers are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.value = zero
}

func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	var zero T
	d.value = zero
	d.mu.Unlock()

	d.fn(v)
}
