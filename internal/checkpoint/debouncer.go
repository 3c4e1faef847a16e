// Package checkpoint provides the debounced-batching primitive shared by the
// Coordinator's checkpoint commit algorithm and the Daemon's filesystem
// burst coalescing (spec.md §4.1, §4.2), adapted from the teacher's
// sequence-numbered timer in cmd/bd/daemon_debouncer.go.
package checkpoint

import (
	"sync"
	"time"
)

// Debouncer batches rapid triggers into a single action call after a quiet
// period. Thread-safe for concurrent triggers.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	action   func()
	seq      uint64
	wg       sync.WaitGroup
}

// NewDebouncer creates a debouncer that calls action once, duration after
// the most recent Trigger call.
func NewDebouncer(duration time.Duration, action func()) *Debouncer {
	return &Debouncer{duration: duration, action: action}
}

// Trigger (re)schedules the action. Calling it repeatedly within duration
// resets the timer, so the action fires only once after the last call.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		if d.timer.Stop() {
			d.wg.Done()
		}
	}

	d.seq++
	current := d.seq

	d.wg.Add(1)
	d.timer = time.AfterFunc(d.duration, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.seq != current {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.action()
	})
}

// Cancel stops any pending action without waiting for an in-flight one.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		if d.timer.Stop() {
			d.wg.Done()
		}
		d.timer = nil
	}
}

// CancelAndWait stops any pending action and blocks until an in-flight
// action, if any, completes. Use during graceful shutdown.
func (d *Debouncer) CancelAndWait() {
	d.Cancel()
	d.wg.Wait()
}

// KeyedDebouncer manages one Debouncer per key, creating it lazily on first
// Trigger and letting callers reap idle entries. Used where a single
// process debounces many independent streams at once: the Coordinator
// batches per (session, rift); the Daemon coalesces per filesystem path.
type KeyedDebouncer[K comparable] struct {
	mu       sync.Mutex
	duration time.Duration
	action   func(key K)
	entries  map[K]*Debouncer
}

// NewKeyedDebouncer creates a KeyedDebouncer whose per-key action receives
// the key that fired.
func NewKeyedDebouncer[K comparable](duration time.Duration, action func(key K)) *KeyedDebouncer[K] {
	return &KeyedDebouncer[K]{
		duration: duration,
		action:   action,
		entries:  make(map[K]*Debouncer),
	}
}

// Trigger (re)schedules the action for key.
func (kd *KeyedDebouncer[K]) Trigger(key K) {
	kd.mu.Lock()
	d, ok := kd.entries[key]
	if !ok {
		d = NewDebouncer(kd.duration, func() { kd.action(key) })
		kd.entries[key] = d
	}
	kd.mu.Unlock()

	d.Trigger()
}

// CancelAndWaitAll stops and drains every per-key debouncer. Use during
// shutdown.
func (kd *KeyedDebouncer[K]) CancelAndWaitAll() {
	kd.mu.Lock()
	entries := make([]*Debouncer, 0, len(kd.entries))
	for _, d := range kd.entries {
		entries = append(entries, d)
	}
	kd.entries = make(map[K]*Debouncer)
	kd.mu.Unlock()

	for _, d := range entries {
		d.CancelAndWait()
	}
}
