package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fleetpulse/trackmap/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTicker_TicksUntilStopped(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	ticks := 0
	tk := NewTicker(clock, 100*time.Millisecond, func() { ticks++ })

	tk.Start()
	assert.True(t, tk.Running())
	clock.Advance(350 * time.Millisecond)
	assert.Equal(t, 3, ticks)

	tk.Stop()
	assert.False(t, tk.Running())
	clock.Advance(time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 0, clock.Pending(), "stopped ticker leaves no timer behind")
}

func TestTicker_StopFromCallback(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	ticks := 0
	var tk *Ticker
	tk = NewTicker(clock, 10*time.Millisecond, func() {
		ticks++
		if ticks == 2 {
			tk.Stop()
		}
	})

	tk.Start()
	clock.Advance(time.Second)
	assert.Equal(t, 2, ticks)
}

func TestTicker_RestartResetsInterval(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	ticks := 0
	tk := NewTicker(clock, 100*time.Millisecond, func() { ticks++ })

	tk.Start()
	clock.Advance(90 * time.Millisecond)
	tk.Start()
	clock.Advance(90 * time.Millisecond)
	assert.Equal(t, 0, ticks)
	clock.Advance(10 * time.Millisecond)
	assert.Equal(t, 1, ticks)
}

func TestDebouncer_LastWriteWins(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	var got []int
	d := NewDebouncer(clock, 300*time.Millisecond, func(v int) { got = append(got, v) })

	d.Trigger(1)
	clock.Advance(100 * time.Millisecond)
	d.Trigger(2)
	clock.Advance(100 * time.Millisecond)
	d.Trigger(3)
	assert.True(t, d.Pending())

	clock.Advance(299 * time.Millisecond)
	assert.Empty(t, got)

	clock.Advance(time.Millisecond)
	assert.Equal(t, []int{3}, got)
	assert.False(t, d.Pending())
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	called := false
	d := NewDebouncer(clock, 300*time.Millisecond, func(string) { called = true })

	d.Trigger("a")
	d.Stop()
	d.Trigger("b")
	clock.Advance(time.Second)
	assert.False(t, called)
}

func TestDebouncer_FlushRunsPendingNow(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	var got []int
	d := NewDebouncer(clock, 300*time.Millisecond, func(v int) { got = append(got, v) })

	assert.False(t, d.Flush())

	d.Trigger(1)
	d.Trigger(2)
	assert.True(t, d.Flush())
	assert.Equal(t, []int{2}, got)
	assert.False(t, d.Pending())

	// the cancelled timer must not fire a second time
	clock.Advance(time.Second)
	assert.Equal(t, []int{2}, got)
}

func TestSerializer_QueuesReentrantCalls(t *testing.T) {
	var s Serializer
	var order []string

	s.Do(func() {
		order = append(order, "outer-start")
		s.Do(func() { order = append(order, "inner") })
		assert.True(t, s.Busy())
		order = append(order, "outer-end")
	})

	assert.Equal(t, []string{"outer-start", "outer-end", "inner"}, order)
	assert.False(t, s.Busy())
}

func TestSerializer_RecoversAfterPanic(t *testing.T) {
	var s Serializer

	assert.Panics(t, func() {
		s.Do(func() { panic("boom") })
	})
	assert.False(t, s.Busy())

	ran := false
	s.Do(func() { ran = true })
	assert.True(t, ran)
}

func TestSerializer_ConcurrentCallersRunOneAtATime(t *testing.T) {
	var s Serializer
	var mu sync.Mutex
	inFlight, maxInFlight, total := 0, 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Do(func() {
				mu.Lock()
				inFlight++
				maxInFlight = max(maxInFlight, inFlight)
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFlight--
				total++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return total == 50
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, maxInFlight)
}
