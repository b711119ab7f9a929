// Package store implements the bounded, ordered, in-memory candlestick store
// that backs a feed. All mutation goes through Merge, which routes incoming
// candlesticks through the processor pipeline, so the store's invariants
// (ascending timestamps, no duplicates, bounded size) hold at all times.
package store

import (
	"sync"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/feed/processor"
)

// DefaultMaxRecords is the default store capacity.
const DefaultMaxRecords = 150

// Bounded is a bounded ordered candlestick store keyed by timestamp. Safe for
// concurrent use.
type Bounded struct {
	mu         sync.RWMutex
	css        []common.Candlestick
	maxRecords int
}

// NewBounded constructs a store with the given capacity; non-positive values
// fall back to DefaultMaxRecords.
func NewBounded(maxRecords int) *Bounded {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Bounded{maxRecords: maxRecords}
}

// Merge sanitizes and merges the incoming candlesticks into the store
// (incoming wins on timestamp collisions), then evicts the oldest entries
// beyond capacity. Returns how many candlesticks the store now holds.
func (b *Bounded) Merge(incoming []common.Candlestick) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.css = processor.Merge(b.css, processor.Sanitize(incoming))
	if len(b.css) > b.maxRecords {
		b.css = b.css[len(b.css)-b.maxRecords:]
	}
	return len(b.css)
}

// Snapshot returns a copy of the store, safe against concurrent mutation.
func (b *Bounded) Snapshot() []common.Candlestick {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]common.Candlestick, len(b.css))
	copy(out, b.css)
	return out
}

// Len returns the number of stored candlesticks.
func (b *Bounded) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.css)
}

// MaxRecords returns the store's capacity.
func (b *Bounded) MaxRecords() int { return b.maxRecords }

// Ready reports whether the store is full.
func (b *Bounded) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.css) >= b.maxRecords
}

// FirstTimestamp returns the oldest stored timestamp; ok is false when empty.
func (b *Bounded) FirstTimestamp() (ts int, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.css) == 0 {
		return 0, false
	}
	return b.css[0].Timestamp, true
}

// LastTimestamp returns the newest stored timestamp; ok is false when empty.
func (b *Bounded) LastTimestamp() (ts int, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.css) == 0 {
		return 0, false
	}
	return b.css[len(b.css)-1].Timestamp, true
}

// Gaps returns the timestamp pairs between which the store is missing
// candlesticks for the given interval width.
func (b *Bounded) Gaps(intervalSecs int) []processor.Gap {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return processor.DetectGaps(b.css, intervalSecs)
}
