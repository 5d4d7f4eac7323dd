// Package autosave schedules debounced saves: every new edit of a document
// restarts its timer, and at most one save per document is pending.
package autosave

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDelay matches the editor's save debounce.
const DefaultDelay = time.Second

// Debouncer runs one pending function per key after a quiet period.
type Debouncer struct {
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*entry
	stopped bool
	running sync.WaitGroup
}

type entry struct {
	timer *time.Timer
	fn    func()
}

// New returns a debouncer. delay <= 0 uses DefaultDelay.
func New(delay time.Duration, logger *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{delay: delay, logger: logger, pending: make(map[string]*entry)}
}

// Schedule (re)starts the timer for key. A function already pending for key
// is replaced by fn and never runs.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if e, ok := d.pending[key]; ok {
		e.timer.Stop()
	}
	e := &entry{fn: fn}
	e.timer = time.AfterFunc(d.delay, func() { d.fire(key, e) })
	d.pending[key] = e
	d.logger.Debug("autosave: scheduled", slog.String("key", key), slog.Duration("delay", d.delay))
}

func (d *Debouncer) fire(key string, e *entry) {
	d.mu.Lock()
	if d.pending[key] != e || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	e.fn()
}

// Cancel drops the pending function for key. It reports whether one was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.pending, key)
	return true
}

// Pending reports whether a function is waiting for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Flush runs every pending function now and waits for running ones. Later
// Schedule calls are ignored.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	d.stopped = true
	fns := make([]func(), 0, len(d.pending))
	for key, e := range d.pending {
		e.timer.Stop()
		fns = append(fns, e.fn)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	d.running.Wait()
}

// Stop drops every pending function and waits for running ones.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()
	d.running.Wait()
}
