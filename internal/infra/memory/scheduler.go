package memory

import (
	"sync"
	"time"
)

// ManualScheduler is an app.Scheduler driven by Advance instead of wall time,
// so clock and proctoring behaviour can be tested deterministically.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	seq     int
	at      time.Duration
	every   time.Duration
	f       func()
	stopped bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	t := s.add(d, 0, f)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		wasPending := !t.stopped
		t.stopped = true
		return wasPending
	}
}

func (s *ManualScheduler) Every(d time.Duration, f func()) func() {
	t := s.add(d, d, f)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.stopped = true
	}
}

func (s *ManualScheduler) add(d, every time.Duration, f func()) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{seq: s.seq, at: s.now + d, every: every, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves time forward by d, running due callbacks in time order.
// Callbacks run without the scheduler's lock held.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *manualTimer
		for _, t := range s.timers {
			if t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.compactLocked()
			s.mu.Unlock()
			return
		}
		s.now = next.at
		if next.every > 0 {
			next.at += next.every
		} else {
			next.stopped = true
		}
		f := next.f
		s.mu.Unlock()
		f()
	}
}

// Pending returns the number of live timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (s *ManualScheduler) compactLocked() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	s.timers = live
}
