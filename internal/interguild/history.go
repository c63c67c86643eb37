package interguild

import (
	"strings"
	"sync"
	"time"
)

// HistorySize is the number of recent messages retained per (guild, subtype)
// channel for intra-guild duplicate detection.
const HistorySize = 10

type historyEntry struct {
	username string
	message  string
	at       time.Time
}

// ringBuffer is a fixed-size circular buffer of history entries.
type ringBuffer struct {
	items [HistorySize]historyEntry
	pos   int
	count int
}

func (rb *ringBuffer) add(e historyEntry) {
	rb.items[rb.pos] = e
	rb.pos = (rb.pos + 1) % HistorySize
	if rb.count < HistorySize {
		rb.count++
	}
}

// History stores the last few messages per (guild, subtype) channel in
// memory. It is goroutine-safe and uses fixed-size ring buffers internally.
type History struct {
	mu    sync.Mutex
	rings map[string]*ringBuffer
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{rings: make(map[string]*ringBuffer)}
}

func historyKey(guildID, subtype string) string {
	return guildID + "|" + subtype
}

// Add records a message for a channel. The oldest entry is overwritten when
// the ring is full.
func (h *History) Add(guildID, subtype, username, message string, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := historyKey(guildID, subtype)
	rb, ok := h.rings[key]
	if !ok {
		rb = &ringBuffer{}
		h.rings[key] = rb
	}
	rb.add(historyEntry{username: username, message: message, at: now})
}

// SeenRecently reports whether the same (username, message) was recorded for
// the channel within window before now. Comparison is case-insensitive.
func (h *History) SeenRecently(guildID, subtype, username, message string, window time.Duration, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	rb, ok := h.rings[historyKey(guildID, subtype)]
	if !ok {
		return false
	}
	cutoff := now.Add(-window)
	for i := 0; i < rb.count; i++ {
		e := rb.items[i]
		if e.at.Before(cutoff) {
			continue
		}
		if strings.EqualFold(e.username, username) && strings.EqualFold(e.message, message) {
			return true
		}
	}
	return false
}

// Shrink drops channels whose newest entry is older than window. Entries
// inside live rings age out naturally by overwrite.
func (h *History) Shrink(window time.Duration, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := now.Add(-window)
	for key, rb := range h.rings {
		newest := time.Time{}
		for i := 0; i < rb.count; i++ {
			if rb.items[i].at.After(newest) {
				newest = rb.items[i].at
			}
		}
		if newest.Before(cutoff) {
			delete(h.rings, key)
		}
	}
}
