package app

import (
	"sync"

	"exam-session-engine/internal/domain"
)

// FocusFeed is a FocusSource fed by whoever observes the browser, e.g. a
// websocket connection relaying visibilitychange/blur/fullscreenchange.
type FocusFeed struct {
	mu   sync.Mutex
	next int
	subs map[int]func(domain.FocusEvent)
}

func NewFocusFeed() *FocusFeed {
	return &FocusFeed{subs: make(map[int]func(domain.FocusEvent))}
}

func (f *FocusFeed) Subscribe(cb func(domain.FocusEvent)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = cb
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Emit delivers ev to every current subscriber.
func (f *FocusFeed) Emit(ev domain.FocusEvent) {
	f.mu.Lock()
	subs := make([]func(domain.FocusEvent), 0, len(f.subs))
	for _, cb := range f.subs {
		subs = append(subs, cb)
	}
	f.mu.Unlock()

	for _, cb := range subs {
		cb(ev)
	}
}

// Subscribers returns the number of live subscriptions.
func (f *FocusFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
