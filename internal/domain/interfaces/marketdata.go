package interfaces

import (
	"context"
	"time"

	marketdata "marketpipe/internal/domain/entity/marketdata"
)

// MarketDataRepository persists order book snapshot history. It is a
// write/query sink only: book state is never restored from storage.
type MarketDataRepository interface {
	AddOrderBookSnapshot(ctx context.Context, snapshot *marketdata.OrderBookSnapshot) error
	AddOrderBookSnapshots(ctx context.Context, snapshots []marketdata.OrderBookSnapshot) error
	GetOrderBookSnapshotsBetween(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.OrderBookSnapshot, error)
	GetLastOrderBookSnapshots(ctx context.Context, symbol string, limit int) ([]marketdata.OrderBookSnapshot, error)

	Close()
}

// UpdatePublisher forwards raw market updates to an external transport.
type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, update *marketdata.MarketUpdate) error
	Close() error
}
