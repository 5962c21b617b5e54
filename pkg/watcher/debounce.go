package watcher

import "time"

// DefaultDebounce is the coalescing window for mutation batches.
const DefaultDebounce = 250 * time.Millisecond

// Debouncer coalesces bursts of notifications. It is not safe for concurrent
// use; drive it from the loop that selects on C.
type Debouncer struct {
	window    time.Duration
	maxBuffer int
	pending   int
	timer     *time.Timer
	timerCh   <-chan time.Time
}

// NewDebouncer returns a debouncer that fires window after the last Add, or
// immediately once maxBuffer notifications are pending. Zero values pick
// 250ms and 1000.
func NewDebouncer(window time.Duration, maxBuffer int) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	if maxBuffer <= 0 {
		maxBuffer = 1000
	}
	return &Debouncer{window: window, maxBuffer: maxBuffer}
}

// Add records one notification and restarts the window. It returns true when
// the buffer is full and the caller should flush now.
func (d *Debouncer) Add() bool {
	d.pending++
	if d.pending >= d.maxBuffer {
		return true
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.window)
	d.timerCh = d.timer.C
	return false
}

// C fires when the window expires. It is nil while nothing is pending, so a
// select on it blocks.
func (d *Debouncer) C() <-chan time.Time { return d.timerCh }

// Flush returns how many notifications were coalesced and resets.
func (d *Debouncer) Flush() int {
	n := d.pending
	d.pending = 0
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
	return n
}

// Pending reports the number of unflushed notifications.
func (d *Debouncer) Pending() int { return d.pending }
