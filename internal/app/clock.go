package app

import (
	"sync"
	"time"
)

// Clock is the single per-session countdown. It ticks once per second and
// calls onExpire exactly once when the remaining time reaches zero.
type Clock struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	stop      func()
	onTick    func(remaining int)
	onExpire  func()
}

// StartClock begins counting down from seconds on sched. Callbacks run
// outside the clock's lock and may call Stop. A non-positive duration yields
// a clock that never expires.
func StartClock(sched Scheduler, seconds int, onTick func(remaining int), onExpire func()) *Clock {
	c := &Clock{
		remaining: seconds,
		onTick:    onTick,
		onExpire:  onExpire,
	}
	if seconds <= 0 {
		c.stopped = true
		return c
	}
	stop := sched.Every(time.Second, c.tick)
	c.mu.Lock()
	c.stop = stop
	if c.stopped {
		// stopped from a callback before Every returned
		c.mu.Unlock()
		stop()
		return c
	}
	c.mu.Unlock()
	return c
}

func (c *Clock) tick() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.remaining--
	remaining := c.remaining
	expired := remaining <= 0
	if expired {
		c.stopped = true
		c.remaining = 0
		remaining = 0
	}
	stop := c.stop
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(remaining)
	}
	if expired {
		if stop != nil {
			stop()
		}
		if c.onExpire != nil {
			c.onExpire()
		}
	}
}

// Remaining returns the seconds left.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop halts the countdown without firing onExpire. Safe to call repeatedly.
func (c *Clock) Stop() {
	c.mu.Lock()
	if c.stopped && c.stop == nil {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}
