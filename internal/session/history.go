package session

import "github.com/menta2k/image-assistant/pkg/types"

// DefaultHistoryCapacity bounds the per-session history when none is configured
const DefaultHistoryCapacity = 50

// History is a fixed-capacity ring of analysis results. Once full, the
// oldest entry is dropped on each append.
type History struct {
	entries []types.HistoryEntry
	start   int
	size    int
}

// NewHistory creates an empty history holding at most capacity entries
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{entries: make([]types.HistoryEntry, capacity)}
}

// Append adds e as the newest entry
func (h *History) Append(e types.HistoryEntry) {
	c := len(h.entries)
	if h.size < c {
		h.entries[(h.start+h.size)%c] = e
		h.size++
		return
	}
	h.entries[h.start] = e
	h.start = (h.start + 1) % c
}

// Len returns the number of stored entries
func (h *History) Len() int {
	return h.size
}

// At returns the i-th entry, oldest first
func (h *History) At(i int) (types.HistoryEntry, bool) {
	if i < 0 || i >= h.size {
		return types.HistoryEntry{}, false
	}
	return h.entries[(h.start+i)%len(h.entries)], true
}

// Entries returns a copy of all entries, oldest first
func (h *History) Entries() []types.HistoryEntry {
	out := make([]types.HistoryEntry, 0, h.size)
	for i := 0; i < h.size; i++ {
		e, _ := h.At(i)
		out = append(out, e)
	}
	return out
}

// Clear drops every entry
func (h *History) Clear() {
	for i := range h.entries {
		h.entries[i] = types.HistoryEntry{}
	}
	h.start, h.size = 0, 0
}
