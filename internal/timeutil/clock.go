// Package timeutil provides a testable abstraction over the timers used by
// debouncing, settle delays and progress tickers.
package timeutil

import (
	"sort"
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// AfterFunc waits for the duration to elapse and then calls f.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer represents a single scheduled callback.
type Timer interface {
	// Stop prevents the Timer from firing. It reports whether the call
	// stopped the timer.
	Stop() bool
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// AfterFunc calls f in its own goroutine after d.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// MockClock is a manually controlled clock for testing. Callbacks run
// synchronously on the goroutine calling Advance.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*MockTimer
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// AfterFunc schedules f to run once the clock has been advanced by d.
func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &MockTimer{deadline: c.now.Add(d), fn: f, seq: c.seq}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer whose deadline
// falls inside the window in deadline order. Timers scheduled by a callback
// fire within the same call when they are due.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	return len(c.timers)
}

// nextDue pops the earliest live timer due at or before target and moves
// the clock to its deadline.
func (c *MockClock) nextDue(target time.Time) *MockTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune()
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})

	for _, t := range c.timers {
		if t.deadline.After(target) {
			return nil
		}
		if t.fire() {
			if t.deadline.After(c.now) {
				c.now = t.deadline
			}
			return t
		}
	}
	return nil
}

func (c *MockClock) prune() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if t.active() {
			live = append(live, t)
		}
	}
	c.timers = live
}

// MockTimer is a callback scheduled on a MockClock.
type MockTimer struct {
	mu       sync.Mutex
	deadline time.Time
	fn       func()
	seq      int
	stopped  bool
	fired    bool
}

// Stop prevents the timer from firing.
func (t *MockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (t *MockTimer) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

func (t *MockTimer) fire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.fired = true
	return true
}
