package app

import (
	"testing"
	"time"

	"exam-session-engine/internal/infra/memory"
)

func TestClockCountsDownAndExpiresOnce(t *testing.T) {
	sched := memory.NewManualScheduler()
	var ticks []int
	expired := 0
	c := StartClock(sched, 3, func(r int) { ticks = append(ticks, r) }, func() { expired++ })

	sched.Advance(2 * time.Second)
	if c.Remaining() != 1 || expired != 0 {
		t.Fatalf("expected 1s left and no expiry, got %d expired=%d", c.Remaining(), expired)
	}
	sched.Advance(5 * time.Second)
	if expired != 1 {
		t.Fatalf("expected exactly one expiry, got %d", expired)
	}
	if len(ticks) != 3 || ticks[2] != 0 {
		t.Fatalf("unexpected ticks %v", ticks)
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected ticker stopped after expiry")
	}
}

func TestClockStopPreventsExpiry(t *testing.T) {
	sched := memory.NewManualScheduler()
	expired := false
	c := StartClock(sched, 2, nil, func() { expired = true })

	sched.Advance(time.Second)
	c.Stop()
	c.Stop()
	sched.Advance(10 * time.Second)
	if expired {
		t.Fatalf("stopped clock must not expire")
	}
	if c.Remaining() != 1 {
		t.Fatalf("expected remaining frozen at 1, got %d", c.Remaining())
	}
}

func TestClockStopFromExpiryCallback(t *testing.T) {
	sched := memory.NewManualScheduler()
	var c *Clock
	c = StartClock(sched, 1, nil, func() { c.Stop() })
	sched.Advance(time.Second)
	if c.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", c.Remaining())
	}
}

func TestClockWithoutDurationNeverExpires(t *testing.T) {
	sched := memory.NewManualScheduler()
	expired := false
	c := StartClock(sched, 0, nil, func() { expired = true })
	sched.Advance(time.Hour)
	if expired || sched.Pending() != 0 {
		t.Fatalf("untimed clock must not schedule or expire")
	}
	c.Stop()
}
