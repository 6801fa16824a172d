package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMockClock_AfterFuncFiresWhenDue(t *testing.T) {
	c := NewMockClock(epoch)
	fired := 0
	c.AfterFunc(100*time.Millisecond, func() { fired++ })

	c.Advance(99 * time.Millisecond)
	assert.Equal(t, 0, fired)

	c.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)

	c.Advance(time.Second)
	assert.Equal(t, 1, fired, "timers fire once")
}

func TestMockClock_StopPreventsFire(t *testing.T) {
	c := NewMockClock(epoch)
	fired := false
	tm := c.AfterFunc(10*time.Millisecond, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(time.Second)
	assert.False(t, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestMockClock_RescheduledTimersFireInSameAdvance(t *testing.T) {
	c := NewMockClock(epoch)
	var at []time.Duration

	var tick func()
	tick = func() {
		at = append(at, c.Since(epoch))
		if len(at) < 5 {
			c.AfterFunc(100*time.Millisecond, tick)
		}
	}
	c.AfterFunc(100*time.Millisecond, tick)

	c.Advance(350 * time.Millisecond)
	require.Len(t, at, 3)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, at)
	assert.Equal(t, epoch.Add(350*time.Millisecond), c.Now())

	c.Advance(time.Second)
	assert.Len(t, at, 5)
}

func TestMockClock_OrderByDeadline(t *testing.T) {
	c := NewMockClock(epoch)
	var order []string
	c.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRealClock_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	RealClock{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
