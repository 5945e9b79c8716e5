// Package pull decides when a wiki working copy is refreshed from its
// upstream.
package pull

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/maruel/smeagol/internal/wiki"
)

// Strategy decides whether a refresh should happen before an operation.
type Strategy interface {
	// ShouldPull returns true if the working copy of id should be refreshed
	// now. A true result consumes the current window.
	ShouldPull(id wiki.ID) bool
}

// New returns a TimeBased strategy, or Always when interval is not positive.
func New(interval time.Duration) Strategy {
	if interval <= 0 {
		return Always{}
	}
	return NewTimeBased(interval)
}

// Always pulls before every operation.
type Always struct{}

// ShouldPull always returns true.
func (Always) ShouldPull(wiki.ID) bool {
	return true
}

// TimeBased allows at most one pull per wiki per interval.
//
// It is a fixed window: skipped pulls do not accumulate credit. Entries are
// kept for the lifetime of the process.
type TimeBased struct {
	interval time.Duration

	mu      sync.Mutex
	windows map[wiki.ID]*rate.Sometimes
}

// NewTimeBased returns a strategy allowing one pull per wiki every interval.
func NewTimeBased(interval time.Duration) *TimeBased {
	return &TimeBased{
		interval: interval,
		windows:  map[wiki.ID]*rate.Sometimes{},
	}
}

// Interval returns the minimum time between two pulls of the same wiki.
func (t *TimeBased) Interval() time.Duration {
	return t.interval
}

// ShouldPull returns true on the first call for id and then once the interval
// has elapsed since the last true result.
func (t *TimeBased) ShouldPull(id wiki.ID) bool {
	if t.interval <= 0 {
		return true
	}
	t.mu.Lock()
	s, ok := t.windows[id]
	if !ok {
		s = &rate.Sometimes{Interval: t.interval}
		t.windows[id] = s
	}
	t.mu.Unlock()

	// Do holds the per key lock while deciding and recording.
	pull := false
	s.Do(func() { pull = true })
	return pull
}
