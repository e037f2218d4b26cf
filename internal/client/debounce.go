package client

import (
	"sync"
	"time"
)

type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// Debouncer calls fn with the latest triggered value once no trigger has
// arrived for delay.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(string)
	after   afterFunc
	timer   stopper
	gen     uint64
	pending bool
	value   string
}

func NewDebouncer(delay time.Duration, fn func(string)) *Debouncer {
	return &Debouncer{
		delay: delay,
		fn:    fn,
		after: realAfterFunc,
	}
}

// Trigger records v and restarts the quiet period.
func (d *Debouncer) Trigger(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.value = v
	d.pending = true
	d.timer = d.after(d.delay, func() { d.fire(gen) })
}

// Flush fires the pending value now. It reports whether anything was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	d.stopLocked()
	d.gen++
	d.pending = false
	v := d.value
	d.mu.Unlock()

	d.fn(v)
	return true
}

// Cancel drops the pending value without firing.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	d.pending = false
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	v := d.value
	d.mu.Unlock()

	d.fn(v)
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
