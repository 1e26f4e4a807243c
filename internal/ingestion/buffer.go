package ingestion

import (
	"sync"

	marketdata "marketpipe/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

// DefaultBufferSize is the bounded buffer capacity when none is configured.
const DefaultBufferSize = 10000

// UpdateBuffer is a fixed-capacity ring of raw market updates, insertion
// ordered, oldest evicted first. Purely diagnostic: the ledger never reads
// from it.
type UpdateBuffer struct {
	mu       sync.Mutex
	items    []marketdata.MarketUpdate
	head     int
	count    int
	capacity int
}

func NewUpdateBuffer(capacity int, logger *logrus.Logger) *UpdateBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	if logger != nil {
		logger.WithField("capacity", capacity).Info("initialized update buffer")
	}
	return &UpdateBuffer{
		items:    make([]marketdata.MarketUpdate, capacity),
		capacity: capacity,
	}
}

// Add appends an update, evicting the oldest when full.
func (b *UpdateBuffer) Add(update marketdata.MarketUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tail := (b.head + b.count) % b.capacity
	b.items[tail] = update
	if b.count < b.capacity {
		b.count++
	} else {
		b.head = (b.head + 1) % b.capacity
	}
}

// Latest returns the n most recent updates in chronological order, or fewer
// when the buffer holds less.
func (b *UpdateBuffer) Latest(n int) []marketdata.MarketUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]marketdata.MarketUpdate, n)
	start := b.head + b.count - n
	for i := 0; i < n; i++ {
		out[i] = b.items[(start+i)%b.capacity]
	}
	return out
}

// Len reports how many updates are currently retained.
func (b *UpdateBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity reports the fixed buffer capacity.
func (b *UpdateBuffer) Capacity() int {
	return b.capacity
}

// Clear empties the buffer.
func (b *UpdateBuffer) Clear() {
	b.mu.Lock()
	b.head = 0
	b.count = 0
	b.mu.Unlock()
}
