package logs

import (
	"fmt"
	"sync"
)

// DefaultMaxBytes is the ceiling on buffered message text for a single run.
// Verbose builds beyond this keep their most recent output.
const DefaultMaxBytes = 8 << 20

// Buffer accumulates entries up to a byte ceiling. When the ceiling is
// exceeded the oldest entries are evicted. Safe for concurrent use.
type Buffer struct {
	mu           sync.Mutex
	entries      []Entry
	head         int
	size         int
	maxBytes     int
	droppedCount int
	droppedBytes int
}

// NewBuffer creates a buffer bounded at maxBytes. Non-positive values use DefaultMaxBytes.
func NewBuffer(maxBytes int) *Buffer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Buffer{maxBytes: maxBytes}
}

// Append adds entries in order.
func (b *Buffer) Append(entries ...Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range entries {
		b.entries = append(b.entries, e)
		b.size += len(e.Message)
	}

	for b.size > b.maxBytes && b.head < len(b.entries)-1 {
		evicted := b.entries[b.head]
		b.entries[b.head] = Entry{}
		b.head++
		b.size -= len(evicted.Message)
		b.droppedCount++
		b.droppedBytes += len(evicted.Message)
	}

	// Compact once the evicted prefix dominates the backing array.
	if b.head > 0 && b.head >= len(b.entries)/2 {
		b.entries = append([]Entry(nil), b.entries[b.head:]...)
		b.head = 0
	}
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries) - b.head
}

// Dropped returns how many entries and bytes were evicted.
func (b *Buffer) Dropped() (count, bytes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.droppedCount, b.droppedBytes
}

// Entries returns a snapshot of the retained entries. If anything was
// evicted, a stderr notice describing the loss comes first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	retained := b.entries[b.head:]
	out := make([]Entry, 0, len(retained)+1)
	if b.droppedCount > 0 {
		notice := Stderr(fmt.Sprintf("[log truncated: %d earlier entries (%d bytes) dropped, limit %d bytes]",
			b.droppedCount, b.droppedBytes, b.maxBytes))
		if len(retained) > 0 {
			notice.Timestamp = retained[0].Timestamp
		}
		out = append(out, notice)
	}
	return append(out, retained...)
}
