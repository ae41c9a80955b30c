package engine

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last input edit before a
// recompute fires.
const DefaultDebounce = 50 * time.Millisecond

// Debouncer coalesces rapid successive inputs into a single trailing-edge
// recompute. Schedule supersedes any pending call; the function runs at
// most once per quiet period and never concurrently with itself.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending *time.Timer
	running sync.Mutex // held while the scheduled func executes
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay}
}

// Schedule arranges for fn to run after the quiet period. A pending
// schedule is cancelled and replaced.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = time.AfterFunc(d.delay, func() {
		d.running.Lock()
		defer d.running.Unlock()
		fn()
	})
}

// Flush runs fn immediately, cancelling any pending schedule first.
func (d *Debouncer) Flush(fn func()) {
	d.Cancel()
	d.running.Lock()
	defer d.running.Unlock()
	fn()
}

// Cancel drops any pending schedule without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
