package logging

import (
	"fmt"
	"sync"
	"time"
)

// Entry is one operator-visible progress line.
type Entry struct {
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
	Line string    `json:"line"`
}

// Feed is a bounded, ordered, append-only progress stream. Once capacity is
// reached the oldest entries are silently dropped. Entries are returned in
// insertion order; consumers reverse for most-recent-first display.
type Feed struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	nextSeq  uint64
}

// NewFeed constructs a feed retaining at most capacity entries.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = 50
	}
	return &Feed{capacity: capacity}
}

// Append adds a line to the feed, evicting the oldest entry when full.
func (f *Feed) Append(line string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	if len(f.entries) == f.capacity {
		copy(f.entries, f.entries[1:])
		f.entries = f.entries[:f.capacity-1]
	}
	f.entries = append(f.entries, Entry{Seq: f.nextSeq, At: time.Now().UTC(), Line: line})
}

// Appendf formats a line and appends it.
func (f *Feed) Appendf(format string, args ...any) {
	f.Append(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the buffered entries in insertion order.
func (f *Feed) Entries() []Entry {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Lines returns just the line text of the buffered entries in insertion order.
func (f *Feed) Lines() []string {
	entries := f.Entries()
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = entry.Line
	}
	return lines
}

// Len reports the number of buffered entries.
func (f *Feed) Len() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
