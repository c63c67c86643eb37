package interguild

import (
	"fmt"
	"testing"
	"time"
)

func TestHistory_SeenRecently(t *testing.T) {
	h := NewHistory()
	now := time.Now()
	window := 30 * time.Second

	if h.SeenRecently("alpha", "guild", "Steve", "hello", window, now) {
		t.Error("empty history reported a hit")
	}

	h.Add("alpha", "guild", "Steve", "hello", now)

	tests := []struct {
		name     string
		guild    string
		subtype  string
		username string
		message  string
		at       time.Time
		want     bool
	}{
		{"same message", "alpha", "guild", "Steve", "hello", now.Add(time.Second), true},
		{"case insensitive", "alpha", "guild", "STEVE", "HELLO", now.Add(time.Second), true},
		{"different message", "alpha", "guild", "Steve", "hi", now.Add(time.Second), false},
		{"different user", "alpha", "guild", "Alex", "hello", now.Add(time.Second), false},
		{"different subtype", "alpha", "officer", "Steve", "hello", now.Add(time.Second), false},
		{"different guild", "beta", "guild", "Steve", "hello", now.Add(time.Second), false},
		{"outside window", "alpha", "guild", "Steve", "hello", now.Add(window + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.SeenRecently(tt.guild, tt.subtype, tt.username, tt.message, window, tt.at)
			if got != tt.want {
				t.Errorf("SeenRecently = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHistory_RingOverwrites(t *testing.T) {
	h := NewHistory()
	now := time.Now()
	window := time.Hour

	h.Add("alpha", "guild", "Steve", "first", now)
	for i := 0; i < HistorySize; i++ {
		h.Add("alpha", "guild", "Steve", fmt.Sprintf("filler %d", i), now)
	}

	// "first" was pushed out of the ring by the fillers.
	if h.SeenRecently("alpha", "guild", "Steve", "first", window, now) {
		t.Error("overwritten entry still reported")
	}
	if !h.SeenRecently("alpha", "guild", "Steve", "filler 9", window, now) {
		t.Error("latest entry not reported")
	}
}

func TestHistory_Shrink(t *testing.T) {
	h := NewHistory()
	now := time.Now()
	window := 30 * time.Second

	h.Add("alpha", "guild", "Steve", "old", now.Add(-time.Minute))
	h.Add("beta", "guild", "Alex", "fresh", now)

	h.Shrink(window, now)

	h.mu.Lock()
	_, staleKept := h.rings[historyKey("alpha", "guild")]
	_, freshKept := h.rings[historyKey("beta", "guild")]
	h.mu.Unlock()

	if staleKept {
		t.Error("stale ring survived Shrink")
	}
	if !freshKept {
		t.Error("fresh ring dropped by Shrink")
	}
}
