package ratelimit

import (
	"sync"
	"time"
)

// Window is an in-process sliding-window limiter: per identifier it keeps a
// bounded sequence of hit timestamps and admits a new hit only while fewer
// than limit hits fall inside the window. Admitted hits are recorded.
type Window struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

// NewWindow creates a sliding window allowing limit hits per window.
func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// Allow reports whether a hit for id at now is within the limit, recording
// it if so.
func (w *Window) Allow(id string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	live := pruneBefore(w.hits[id], now.Add(-w.window))
	if len(live) >= w.limit {
		w.hits[id] = live
		return false
	}
	w.hits[id] = append(live, now)
	return true
}

// Count returns the number of hits for id still inside the window at now.
func (w *Window) Count(id string, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(pruneBefore(w.hits[id], now.Add(-w.window)))
}

// Prune drops expired hits for every identifier, releasing idle entries.
// Called from the maintenance tick.
func (w *Window) Prune(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-w.window)
	for id, ts := range w.hits {
		live := pruneBefore(ts, cutoff)
		if len(live) == 0 {
			delete(w.hits, id)
		} else {
			w.hits[id] = live
		}
	}
}

// pruneBefore drops timestamps at or before cutoff. Slices are
// chronological, so the first survivor ends the scan.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	for i, t := range ts {
		if t.After(cutoff) {
			return append(ts[:0:0], ts[i:]...)
		}
	}
	return nil
}
