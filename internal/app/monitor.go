package app

import (
	"sync"
	"time"

	"exam-session-engine/internal/domain"
)

const (
	DefaultGraceWindow      = 300 * time.Millisecond
	DefaultFullscreenWindow = time.Second
	DefaultViolationLimit   = 3
)

// MonitorOptions tunes violation detection. Zero values take the defaults,
// except a negative Grace which counts departures immediately.
type MonitorOptions struct {
	Grace            time.Duration
	FullscreenWindow time.Duration
	Threshold        int
}

func (o MonitorOptions) withDefaults() MonitorOptions {
	if o.Grace == 0 {
		o.Grace = DefaultGraceWindow
	}
	if o.FullscreenWindow <= 0 {
		o.FullscreenWindow = DefaultFullscreenWindow
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultViolationLimit
	}
	return o
}

// MonitorHandlers receive violation notifications. Both run outside the
// monitor's lock.
type MonitorHandlers struct {
	OnWarning   func(count int)
	OnThreshold func(count int)
}

// Monitor turns browser focus signals into proctoring violations.
//
// A hidden or blurred signal opens a grace window; returning before it closes
// cancels the departure. Fullscreen changes cancel any pending departure and
// swallow departures for FullscreenWindow, since entering or leaving
// fullscreen briefly blurs the page. Once a departure is counted, the student
// has to come back before another one can be.
type Monitor struct {
	mu          sync.Mutex
	sched       Scheduler
	opts        MonitorOptions
	handlers    MonitorHandlers
	unsubscribe func()

	count         int
	away          bool
	pendingGen    int
	pendingStop   func() bool
	quietGen      int
	quiet         bool
	quietStop     func() bool
	thresholdSent bool
	closed        bool
}

// NewMonitor subscribes to src until Close is called.
func NewMonitor(src FocusSource, sched Scheduler, opts MonitorOptions, handlers MonitorHandlers) *Monitor {
	m := &Monitor{
		sched:    sched,
		opts:     opts.withDefaults(),
		handlers: handlers,
	}
	if src != nil {
		unsubscribe := src.Subscribe(m.handle)
		m.mu.Lock()
		m.unsubscribe = unsubscribe
		m.mu.Unlock()
	}
	return m
}

// Count returns the number of violations seen so far.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *Monitor) handle(ev domain.FocusEvent) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	if ev.Kind == domain.FocusFullscreen {
		m.cancelPendingLocked()
		m.away = false
		m.quiet = true
		if m.quietStop != nil {
			m.quietStop()
		}
		m.quietGen++
		gen := m.quietGen
		m.quietStop = m.sched.AfterFunc(m.opts.FullscreenWindow, func() { m.endQuiet(gen) })
		m.mu.Unlock()
		return
	}

	if !ev.Away {
		m.cancelPendingLocked()
		m.away = false
		m.mu.Unlock()
		return
	}

	if m.quiet || m.away {
		m.mu.Unlock()
		return
	}
	m.away = true
	if m.opts.Grace < 0 {
		m.recordLocked()
		return
	}
	m.pendingGen++
	gen := m.pendingGen
	m.pendingStop = m.sched.AfterFunc(m.opts.Grace, func() { m.confirm(gen) })
	m.mu.Unlock()
}

func (m *Monitor) confirm(gen int) {
	m.mu.Lock()
	if m.closed || m.pendingStop == nil || m.pendingGen != gen {
		m.mu.Unlock()
		return
	}
	m.pendingStop = nil
	m.recordLocked()
}

func (m *Monitor) endQuiet(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quietGen == gen {
		m.quiet = false
		m.quietStop = nil
	}
}

// recordLocked counts a violation and releases the lock before notifying.
func (m *Monitor) recordLocked() {
	m.count++
	count := m.count
	reached := count >= m.opts.Threshold && !m.thresholdSent
	if reached {
		m.thresholdSent = true
	}
	handlers := m.handlers
	m.mu.Unlock()

	if handlers.OnWarning != nil {
		handlers.OnWarning(count)
	}
	if reached && handlers.OnThreshold != nil {
		handlers.OnThreshold(count)
	}
}

func (m *Monitor) cancelPendingLocked() {
	if m.pendingStop != nil {
		m.pendingStop()
		m.pendingStop = nil
	}
}

// Close removes the focus subscription and any pending timers. It is safe
// to call more than once.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelPendingLocked()
	if m.quietStop != nil {
		m.quietStop()
		m.quietStop = nil
	}
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
