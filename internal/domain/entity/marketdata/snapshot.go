package marketdata

import "github.com/google/uuid"

// OrderBookSnapshot is an immutable point-in-time projection of one book:
// best-first, depth-limited levels for both sides. Never mutated after
// creation. The ID is assigned only when the snapshot is persisted.
type OrderBookSnapshot struct {
	ID             uuid.UUID    `json:"id,omitempty"`
	Symbol         string       `json:"symbol"`
	Timestamp      int64        `json:"timestamp"`
	Bids           []PriceLevel `json:"bids"`
	Asks           []PriceLevel `json:"asks"`
	SequenceNumber uint64       `json:"sequence_number"`
}

// BestBid returns the top bid level, or nil when the bid side is empty.
func (s *OrderBookSnapshot) BestBid() *PriceLevel {
	if len(s.Bids) == 0 {
		return nil
	}
	return &s.Bids[0]
}

// BestAsk returns the top ask level, or nil when the ask side is empty.
func (s *OrderBookSnapshot) BestAsk() *PriceLevel {
	if len(s.Asks) == 0 {
		return nil
	}
	return &s.Asks[0]
}
