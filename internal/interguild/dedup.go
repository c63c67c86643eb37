package interguild

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// HashMessage produces a stable digest over (subtype, username, text),
// case-insensitive, used for cross-guild duplicate suppression. Two relays
// of the same line through different source guilds hash identically.
func HashMessage(subtype, username, text string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(subtype)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(username)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(text)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// DuplicateTracker counts occurrences of a message hash inside a sliding
// window and flags the hash once the count exceeds the allowance.
type DuplicateTracker struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	seen   map[string][]time.Time
}

// NewDuplicateTracker allows max occurrences of a hash per window.
func NewDuplicateTracker(max int, window time.Duration) *DuplicateTracker {
	return &DuplicateTracker{
		window: window,
		max:    max,
		seen:   make(map[string][]time.Time),
	}
}

// Saturated reports whether hash has used up its allowance inside the
// window. It never records an occurrence; only messages that clear every
// gate are counted, via Record.
func (d *DuplicateTracker) Saturated(hash string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	live := pruneTimes(d.seen[hash], now.Add(-d.window))
	if len(live) == 0 {
		delete(d.seen, hash)
		return false
	}
	d.seen[hash] = live
	return len(live) >= d.max
}

// Record counts one relayed occurrence of hash at now.
func (d *DuplicateTracker) Record(hash string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[hash] = append(pruneTimes(d.seen[hash], now.Add(-d.window)), now)
}

// Prune drops expired occurrences for every hash. Called from the
// maintenance tick.
func (d *DuplicateTracker) Prune(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := now.Add(-d.window)
	for hash, ts := range d.seen {
		live := pruneTimes(ts, cutoff)
		if len(live) == 0 {
			delete(d.seen, hash)
		} else {
			d.seen[hash] = live
		}
	}
}

func pruneTimes(ts []time.Time, cutoff time.Time) []time.Time {
	for i, t := range ts {
		if t.After(cutoff) {
			return append(ts[:0:0], ts[i:]...)
		}
	}
	return nil
}
