package orderbook

import (
	"sync"

	marketdata "marketpipe/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultSnapshotDepth bounds each side of a snapshot.
const DefaultSnapshotDepth = 10

// bookLevel is one ledger entry: all resting liquidity at a single price on
// a single side. Contributions are keyed by contribution id (order id or a
// sequence-derived fallback); an entry with zero contributions is removed
// from its tree.
type bookLevel struct {
	price         decimal.Decimal
	contributions map[string]decimal.Decimal
}

func newBookLevel(price decimal.Decimal) *bookLevel {
	return &bookLevel{price: price, contributions: make(map[string]decimal.Decimal)}
}

func (l *bookLevel) totalSize() decimal.Decimal {
	total := decimal.Zero
	for _, size := range l.contributions {
		total = total.Add(size)
	}
	return total
}

func (l *bookLevel) orderCount() int {
	return len(l.contributions)
}

// apply sets the update's contribution on this level. Updates without an
// order id cannot be tied to a resting order, so they replace the level
// wholesale: a single logical quantity at the price, last writer wins.
func (l *bookLevel) apply(update *marketdata.MarketUpdate) {
	if update.OrderID == "" && len(l.contributions) > 0 {
		clear(l.contributions)
	}
	l.contributions[update.ContributionID()] = update.Size
}

func (l *bookLevel) project() marketdata.PriceLevel {
	return marketdata.PriceLevel{
		Price:      l.price,
		Size:       l.totalSize(),
		OrderCount: l.orderCount(),
	}
}

// OrderBook is the live limit order ledger for a single symbol: two
// independently price-ordered sides, sequence-gated mutation, and
// depth-limited snapshot queries. A single writer mutates the book; the
// internal lock lets readers query concurrently with writes.
type OrderBook struct {
	symbol string
	mu     sync.RWMutex
	bids   *levelTree
	asks   *levelTree

	lastSequence   uint64
	lastUpdateTime int64

	logger *logrus.Entry
}

func NewOrderBook(symbol string, logger *logrus.Logger) *OrderBook {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	book := &OrderBook{
		symbol: symbol,
		bids:   newLevelTree(),
		asks:   newLevelTree(),
		logger: logger.WithField("symbol", symbol),
	}
	book.logger.Info("initialized order book")
	return book
}

func (b *OrderBook) Symbol() string {
	return b.symbol
}

// LastSequence returns the sequence number of the last accepted update.
func (b *OrderBook) LastSequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSequence
}

// ProcessUpdate applies one market update to the ledger. Updates for a
// different symbol and stale or duplicate sequence numbers are dropped with
// a warning; both are expected conditions, not errors. Returns true when
// the book was mutated (or the update was accepted as a structural no-op,
// e.g. Modify at an absent price).
func (b *OrderBook) ProcessUpdate(update *marketdata.MarketUpdate) bool {
	if update.Symbol != b.symbol {
		b.logger.WithField("update_symbol", update.Symbol).Warn("update for wrong symbol")
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if update.SequenceNumber <= b.lastSequence {
		b.logger.WithFields(logrus.Fields{
			"sequence":      update.SequenceNumber,
			"last_sequence": b.lastSequence,
		}).Warn("stale or duplicate update dropped")
		return false
	}

	side := b.asks
	if update.Side == marketdata.SideBid {
		side = b.bids
	}

	switch update.Kind {
	case marketdata.UpdateDelete:
		b.applyDelete(side, update)
	case marketdata.UpdateModify:
		// Only an existing level is modified; a Modify at an absent price
		// is accepted but leaves the side untouched.
		if lvl := side.Find(update.Price); lvl != nil {
			lvl.apply(update)
		}
	default: // add
		side.Upsert(update.Price).apply(update)
	}

	b.lastUpdateTime = update.Timestamp
	b.lastSequence = update.SequenceNumber
	return true
}

func (b *OrderBook) applyDelete(side *levelTree, update *marketdata.MarketUpdate) {
	if update.OrderID == "" {
		// No order id: the whole level goes.
		side.Delete(update.Price)
		return
	}
	lvl := side.Find(update.Price)
	if lvl == nil {
		return
	}
	delete(lvl.contributions, update.OrderID)
	if len(lvl.contributions) == 0 {
		side.Delete(update.Price)
	}
}

// PriceLevels returns up to depth levels for one side, best-first: highest
// price first for bids, lowest first for asks.
func (b *OrderBook) PriceLevels(side marketdata.Side, depth int) []marketdata.PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.priceLevelsLocked(side, depth)
}

func (b *OrderBook) priceLevelsLocked(side marketdata.Side, depth int) []marketdata.PriceLevel {
	if depth <= 0 {
		depth = DefaultSnapshotDepth
	}
	levels := make([]marketdata.PriceLevel, 0, depth)
	collect := func(lvl *bookLevel) bool {
		levels = append(levels, lvl.project())
		return len(levels) < depth
	}
	if side == marketdata.SideBid {
		b.bids.Descend(collect)
	} else {
		b.asks.Ascend(collect)
	}
	return levels
}

// TopOfBook returns the best bid and best ask levels; either may be nil
// when the side is empty. A crossed top is returned as-is; flagging it is
// the feed handler's job.
func (b *OrderBook) TopOfBook() (*marketdata.PriceLevel, *marketdata.PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.topOfBookLocked()
}

func (b *OrderBook) topOfBookLocked() (*marketdata.PriceLevel, *marketdata.PriceLevel) {
	var bestBid, bestAsk *marketdata.PriceLevel
	if lvl := b.bids.Max(); lvl != nil {
		projected := lvl.project()
		bestBid = &projected
	}
	if lvl := b.asks.Min(); lvl != nil {
		projected := lvl.project()
		bestAsk = &projected
	}
	return bestBid, bestAsk
}

// Snapshot captures an immutable depth-limited projection of both sides.
func (b *OrderBook) Snapshot() *marketdata.OrderBookSnapshot {
	return b.SnapshotAt(DefaultSnapshotDepth)
}

// SnapshotAt is Snapshot limited to depth levels per side. A non-positive
// depth falls back to the default.
func (b *OrderBook) SnapshotAt(depth int) *marketdata.OrderBookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &marketdata.OrderBookSnapshot{
		Symbol:         b.symbol,
		Timestamp:      b.lastUpdateTime,
		Bids:           b.priceLevelsLocked(marketdata.SideBid, depth),
		Asks:           b.priceLevelsLocked(marketdata.SideAsk, depth),
		SequenceNumber: b.lastSequence,
	}
}

// Depths returns the number of populated levels on each side.
func (b *OrderBook) Depths() (bids int, asks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.Size(), b.asks.Size()
}

// Clear empties both sides. The last accepted sequence is retained so the
// update that triggered a large-gap reset is not itself rejected as stale.
func (b *OrderBook) Clear() {
	b.mu.Lock()
	b.bids.Clear()
	b.asks.Clear()
	b.mu.Unlock()
	b.logger.Info("cleared order book")
}
