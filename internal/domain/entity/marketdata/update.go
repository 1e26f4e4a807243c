package marketdata

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side represents the book side an update applies to.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

func (s Side) String() string {
	return string(s)
}

func (s Side) IsValid() bool {
	switch s {
	case SideBid, SideAsk:
		return true
	default:
		return false
	}
}

func NewSide(s string) (Side, error) {
	side := Side(s)
	if !side.IsValid() {
		return "", fmt.Errorf("invalid side: %s", s)
	}
	return side, nil
}

// UpdateKind represents the mutation carried by a market update.
type UpdateKind string

const (
	UpdateAdd    UpdateKind = "add"
	UpdateModify UpdateKind = "modify"
	UpdateDelete UpdateKind = "delete"
)

func (k UpdateKind) String() string {
	return string(k)
}

func (k UpdateKind) IsValid() bool {
	switch k {
	case UpdateAdd, UpdateModify, UpdateDelete:
		return true
	default:
		return false
	}
}

func NewUpdateKind(s string) (UpdateKind, error) {
	kind := UpdateKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid update kind: %s", s)
	}
	return kind, nil
}

// MarketUpdate is a single per-symbol price/size event produced by a feed
// source. Sequence numbers are intended strictly increasing per symbol.
// Price and size use exact decimal arithmetic so that equal prices always
// land on the same book level.
type MarketUpdate struct {
	SequenceNumber uint64          `json:"sequence_number"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Kind           UpdateKind      `json:"kind"`
	Price          decimal.Decimal `json:"price"`
	Size           decimal.Decimal `json:"size"`
	OrderID        string          `json:"order_id,omitempty"`
	Timestamp      int64           `json:"timestamp"`
	SourceID       string          `json:"source_id"`
}

// ContributionID identifies the resting order this update contributes to a
// price level. Falls back to the sequence number for feeds that do not carry
// order identifiers.
func (u MarketUpdate) ContributionID() string {
	if u.OrderID != "" {
		return u.OrderID
	}
	return fmt.Sprintf("seq-%d", u.SequenceNumber)
}
