package app

import (
	"testing"
	"time"

	"exam-session-engine/internal/domain"
	"exam-session-engine/internal/infra/memory"
)

type monitorProbe struct {
	warnings  []int
	threshold int
}

func newProbeMonitor(t *testing.T, opts MonitorOptions) (*Monitor, *FocusFeed, *memory.ManualScheduler, *monitorProbe) {
	t.Helper()
	feed := NewFocusFeed()
	sched := memory.NewManualScheduler()
	probe := &monitorProbe{}
	m := NewMonitor(feed, sched, opts, MonitorHandlers{
		OnWarning:   func(n int) { probe.warnings = append(probe.warnings, n) },
		OnThreshold: func(int) { probe.threshold++ },
	})
	t.Cleanup(m.Close)
	return m, feed, sched, probe
}

func leave(feed *FocusFeed, sched *memory.ManualScheduler, away time.Duration) {
	feed.Emit(domain.FocusEvent{Kind: domain.FocusVisibility, Away: true})
	sched.Advance(away)
	feed.Emit(domain.FocusEvent{Kind: domain.FocusVisibility, Away: false})
}

func TestMonitorThreeDeparturesReachThreshold(t *testing.T) {
	m, feed, sched, probe := newProbeMonitor(t, MonitorOptions{})
	for i := 0; i < 3; i++ {
		leave(feed, sched, time.Second)
	}
	if m.Count() != 3 || probe.threshold != 1 {
		t.Fatalf("expected 3 violations and one threshold call, got %d/%d", m.Count(), probe.threshold)
	}
	if len(probe.warnings) != 3 || probe.warnings[2] != 3 {
		t.Fatalf("unexpected warnings %v", probe.warnings)
	}

	leave(feed, sched, time.Second)
	if probe.threshold != 1 {
		t.Fatalf("threshold must fire once, got %d", probe.threshold)
	}
}

func TestMonitorTwoDeparturesStayBelowThreshold(t *testing.T) {
	m, feed, sched, probe := newProbeMonitor(t, MonitorOptions{})
	leave(feed, sched, time.Second)
	leave(feed, sched, time.Second)
	if m.Count() != 2 || probe.threshold != 0 {
		t.Fatalf("expected 2 violations without threshold, got %d/%d", m.Count(), probe.threshold)
	}
}

func TestMonitorGraceWindowSwallowsBriefBlur(t *testing.T) {
	m, feed, sched, _ := newProbeMonitor(t, MonitorOptions{})
	feed.Emit(domain.FocusEvent{Kind: domain.FocusWindow, Away: true})
	sched.Advance(100 * time.Millisecond)
	feed.Emit(domain.FocusEvent{Kind: domain.FocusWindow, Away: false})
	sched.Advance(time.Second)
	if m.Count() != 0 {
		t.Fatalf("brief blur must not count, got %d", m.Count())
	}
}

func TestMonitorCountsOneViolationPerDeparture(t *testing.T) {
	m, feed, sched, _ := newProbeMonitor(t, MonitorOptions{})
	// hidden and blurred together are one departure
	feed.Emit(domain.FocusEvent{Kind: domain.FocusVisibility, Away: true})
	feed.Emit(domain.FocusEvent{Kind: domain.FocusWindow, Away: true})
	sched.Advance(time.Second)
	if m.Count() != 1 {
		t.Fatalf("expected 1 violation, got %d", m.Count())
	}
}

func TestMonitorFullscreenChangeIsNotAViolation(t *testing.T) {
	m, feed, sched, _ := newProbeMonitor(t, MonitorOptions{})
	feed.Emit(domain.FocusEvent{Kind: domain.FocusWindow, Away: true})
	feed.Emit(domain.FocusEvent{Kind: domain.FocusFullscreen})
	sched.Advance(200 * time.Millisecond)
	feed.Emit(domain.FocusEvent{Kind: domain.FocusWindow, Away: true})
	sched.Advance(500 * time.Millisecond)
	feed.Emit(domain.FocusEvent{Kind: domain.FocusWindow, Away: false})
	if m.Count() != 0 {
		t.Fatalf("fullscreen transition must not count, got %d", m.Count())
	}

	// after the quiet window a real departure counts again
	sched.Advance(time.Second)
	leave(feed, sched, time.Second)
	if m.Count() != 1 {
		t.Fatalf("expected departure after quiet window to count, got %d", m.Count())
	}
}

func TestMonitorCloseUnsubscribesAndCancelsTimers(t *testing.T) {
	m, feed, sched, probe := newProbeMonitor(t, MonitorOptions{})
	feed.Emit(domain.FocusEvent{Kind: domain.FocusVisibility, Away: true})
	m.Close()
	sched.Advance(time.Second)
	if m.Count() != 0 || len(probe.warnings) != 0 {
		t.Fatalf("closed monitor must not count pending departure")
	}
	if feed.Subscribers() != 0 {
		t.Fatalf("expected focus subscription removed")
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no live timers, got %d", sched.Pending())
	}
}

func TestMonitorCustomThreshold(t *testing.T) {
	_, feed, _, probe := newProbeMonitor(t, MonitorOptions{Grace: -1, Threshold: 1})
	feed.Emit(domain.FocusEvent{Kind: domain.FocusVisibility, Away: true})
	if probe.threshold != 1 {
		t.Fatalf("expected immediate threshold with negative grace")
	}
}
