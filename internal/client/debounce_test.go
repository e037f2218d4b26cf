package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, v)
}

func (r *recorder) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newFakeDebouncer(rec *recorder) (*Debouncer, *fakeTimers) {
	timers := &fakeTimers{}
	d := NewDebouncer(500*time.Millisecond, rec.record)
	d.after = timers.after
	return d, timers
}

func TestDebouncer_FiresLatestValueOnce(t *testing.T) {
	rec := &recorder{}
	d, timers := newFakeDebouncer(rec)

	d.Trigger("p")
	d.Trigger("po")
	d.Trigger("pod")
	assert.True(t, d.Pending())

	timers.fire()

	assert.Equal(t, []string{"pod"}, rec.values())
	assert.False(t, d.Pending())
	assert.Equal(t, 500*time.Millisecond, timers.get(0).d)
}

func TestDebouncer_StaleTimerIgnored(t *testing.T) {
	rec := &recorder{}
	d, timers := newFakeDebouncer(rec)

	d.Trigger("p")
	d.Trigger("po")

	// A timer that fired concurrently with its own Stop.
	timers.get(0).f()
	assert.Empty(t, rec.values())

	timers.fire()
	assert.Equal(t, []string{"po"}, rec.values())
}

func TestDebouncer_Flush(t *testing.T) {
	rec := &recorder{}
	d, timers := newFakeDebouncer(rec)

	assert.False(t, d.Flush())

	d.Trigger("pod")
	require.True(t, d.Flush())
	assert.Equal(t, []string{"pod"}, rec.values())

	timers.get(0).f()
	assert.Equal(t, []string{"pod"}, rec.values())
}

func TestDebouncer_Cancel(t *testing.T) {
	rec := &recorder{}
	d, timers := newFakeDebouncer(rec)

	d.Trigger("pod")
	d.Cancel()
	timers.get(0).f()

	assert.Empty(t, rec.values())
	assert.False(t, d.Pending())
	assert.False(t, d.Flush())
}

func TestDebouncer_RealTimer(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(20*time.Millisecond, rec.record)

	d.Trigger("a")
	d.Trigger("ab")

	assert.Eventually(t, func() bool {
		return len(rec.values()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"ab"}, rec.values())
}
