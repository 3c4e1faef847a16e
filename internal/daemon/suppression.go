package daemon

import (
	"sync"
	"time"
)

// suppressionMap tracks paths this daemon just wrote because of an inbound
// FileUpdate, so the filesystem watcher doesn't echo them back to the
// Coordinator as a local edit (spec.md §3 TrackedProject.suppression_map).
// Entries expire after window so a genuine follow-up local edit to the
// same path is never suppressed forever.
type suppressionMap struct {
	window time.Duration

	mu      sync.Mutex
	expires map[string]time.Time
}

func newSuppressionMap(window time.Duration) *suppressionMap {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	return &suppressionMap{window: window, expires: make(map[string]time.Time)}
}

// Mark suppresses path until the window elapses.
func (s *suppressionMap) Mark(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[path] = time.Now().Add(s.window)
}

// Check reports whether path is currently suppressed. A true result is
// consuming: once the apply that triggered it has been observed, the entry
// is cleared so suppression doesn't outlive its one expected echo.
func (s *suppressionMap) Check(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expires[path]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(s.expires, path)
		return false
	}
	delete(s.expires, path)
	return true
}
