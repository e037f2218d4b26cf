package client

import (
	"sync"
	"time"
)

type fakeTimer struct {
	f       func()
	d       time.Duration
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeTimers replaces time.AfterFunc so tests decide when quiet periods end.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) after(d time.Duration, f func()) stopper {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	t := &fakeTimer{f: f, d: d}
	ft.timers = append(ft.timers, t)
	return t
}

// fire runs every timer that has not been stopped.
func (ft *fakeTimers) fire() {
	ft.mu.Lock()
	var live []*fakeTimer
	for _, t := range ft.timers {
		if !t.stopped {
			t.stopped = true
			live = append(live, t)
		}
	}
	ft.mu.Unlock()

	for _, t := range live {
		t.f()
	}
}

func (ft *fakeTimers) count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.timers)
}

func (ft *fakeTimers) get(i int) *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.timers[i]
}
