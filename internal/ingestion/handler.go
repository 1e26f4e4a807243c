package ingestion

import (
	"sync"

	marketdata "marketpipe/internal/domain/entity/marketdata"
	"marketpipe/internal/orderbook"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultGapThreshold is the largest sequence gap still treated as a
	// small, survivable loss. Anything larger resets the book.
	DefaultGapThreshold = 10

	// DefaultSnapshotLogInterval controls how often (in accepted updates
	// per symbol) a book state summary is logged.
	DefaultSnapshotLogInterval = 1000

	// DefaultAuditInterval controls how often (in total accepted updates)
	// CheckAllBooks runs.
	DefaultAuditInterval = 100

	// DefaultSpreadAlertPct is the percentage spread above which the
	// periodic audit warns.
	DefaultSpreadAlertPct = 5.0
)

// HandlerConfig tunes the sequencing and audit behavior of a FeedHandler.
type HandlerConfig struct {
	BufferSize          int
	GapThreshold        uint64
	SnapshotLogInterval uint64
	AuditInterval       uint64
	SpreadAlertPct      float64
}

// FeedStats counts sequencing anomalies observed by a handler; all values
// are cumulative.
type FeedStats struct {
	Accepted      uint64 `json:"accepted"`
	UnknownSymbol uint64 `json:"unknown_symbol"`
	SmallGaps     uint64 `json:"small_gaps"`
	LargeGaps     uint64 `json:"large_gaps"`
	CrossedBooks  uint64 `json:"crossed_books"`
}

// FeedHandler applies the sequencing and validation discipline in front of
// the order book ledger: unknown-symbol filtering, gap classification and
// large-gap book resets, diagnostic buffering, and post-mutation audits.
// One logical writer drives ProcessUpdate; query methods are safe to call
// concurrently.
type FeedHandler struct {
	symbols      map[string]struct{}
	buffer       *UpdateBuffer
	manager      *orderbook.Manager
	gapThreshold uint64

	mu            sync.Mutex
	lastSequences map[string]uint64
	updateCounts  map[string]uint64
	stats         FeedStats

	snapshotLogInterval uint64
	auditInterval       uint64
	spreadAlertPct      decimal.Decimal
	logger              *logrus.Entry
}

func NewFeedHandler(symbols []string, manager *orderbook.Manager, cfg HandlerConfig, logger *logrus.Logger) *FeedHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.GapThreshold == 0 {
		cfg.GapThreshold = DefaultGapThreshold
	}
	if cfg.SnapshotLogInterval == 0 {
		cfg.SnapshotLogInterval = DefaultSnapshotLogInterval
	}
	if cfg.AuditInterval == 0 {
		cfg.AuditInterval = DefaultAuditInterval
	}
	if cfg.SpreadAlertPct <= 0 {
		cfg.SpreadAlertPct = DefaultSpreadAlertPct
	}

	tracked := make(map[string]struct{}, len(symbols))
	counts := make(map[string]uint64, len(symbols))
	for _, symbol := range symbols {
		tracked[symbol] = struct{}{}
		counts[symbol] = 0
	}

	handler := &FeedHandler{
		symbols:             tracked,
		buffer:              NewUpdateBuffer(cfg.BufferSize, logger),
		manager:             manager,
		gapThreshold:        cfg.GapThreshold,
		lastSequences:       make(map[string]uint64, len(symbols)),
		updateCounts:        counts,
		snapshotLogInterval: cfg.SnapshotLogInterval,
		auditInterval:       cfg.AuditInterval,
		spreadAlertPct:      decimal.NewFromFloat(cfg.SpreadAlertPct),
		logger:              logger.WithField("component", "feed_handler"),
	}
	handler.logger.WithField("symbols", symbols).Info("initialized feed handler")
	return handler
}

// ProcessUpdate runs one update through sequencing checks, the bounded
// buffer, the ledger, and the post-mutation audit. Returns true when the
// ledger accepted the update. Anomalous-but-well-formed input never yields
// an error: rejections and gaps show up in logs and in Stats.
func (h *FeedHandler) ProcessUpdate(update *marketdata.MarketUpdate) bool {
	if _, ok := h.symbols[update.Symbol]; !ok {
		h.mu.Lock()
		h.stats.UnknownSymbol++
		h.mu.Unlock()
		h.logger.WithField("symbol", update.Symbol).Warn("update for unknown symbol dropped")
		return false
	}

	h.mu.Lock()
	lastSeq := h.lastSequences[update.Symbol]
	gap := int64(update.SequenceNumber) - int64(lastSeq) - 1
	if gap > 0 {
		if uint64(gap) > h.gapThreshold {
			h.stats.LargeGaps++
		} else {
			h.stats.SmallGaps++
		}
	}
	// Forward progress is recorded even when updates were lost.
	h.lastSequences[update.Symbol] = update.SequenceNumber
	h.mu.Unlock()

	if gap > 0 {
		if uint64(gap) > h.gapThreshold {
			h.logger.WithFields(logrus.Fields{
				"symbol":   update.Symbol,
				"expected": lastSeq + 1,
				"got":      update.SequenceNumber,
			}).Error("large sequence gap detected")
			h.resetBook(update.Symbol)
		} else {
			h.logger.WithFields(logrus.Fields{
				"symbol": update.Symbol,
				"missed": gap,
			}).Warn("small sequence gap detected")
		}
	}

	h.buffer.Add(*update)

	if !h.manager.ProcessUpdate(update) {
		return false
	}

	h.mu.Lock()
	h.stats.Accepted++
	accepted := h.stats.Accepted
	h.updateCounts[update.Symbol]++
	count := h.updateCounts[update.Symbol]
	h.mu.Unlock()

	h.checkBookState(update.Symbol, count)
	if accepted%h.auditInterval == 0 {
		h.CheckAllBooks()
	}
	return true
}

// resetBook discards all resting liquidity for symbol. A gap beyond the
// threshold makes current book state unreliable; there is no retransmission
// path, so the book starts fresh from subsequent updates.
func (h *FeedHandler) resetBook(symbol string) {
	book := h.manager.GetBook(symbol)
	if book == nil {
		return
	}
	h.logger.WithField("symbol", symbol).Warn("resetting order book after large sequence gap")
	book.Clear()
}

// checkBookState runs the cheap per-update audit: crossed-book detection
// and, every snapshotLogInterval accepted updates, a state summary.
func (h *FeedHandler) checkBookState(symbol string, count uint64) {
	book := h.manager.GetBook(symbol)
	if book == nil {
		return
	}

	bestBid, bestAsk := book.TopOfBook()
	if bestBid != nil && bestAsk != nil && bestBid.Price.Cmp(bestAsk.Price) >= 0 {
		h.mu.Lock()
		h.stats.CrossedBooks++
		h.mu.Unlock()
		h.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"bid":    bestBid.Price,
			"ask":    bestAsk.Price,
		}).Error("crossed book detected")
	}

	if count%h.snapshotLogInterval == 0 {
		bidDepth, askDepth := book.Depths()
		fields := logrus.Fields{
			"symbol":     symbol,
			"updates":    count,
			"bid_levels": bidDepth,
			"ask_levels": askDepth,
		}
		if bestBid != nil {
			fields["top_bid"] = bestBid.Price
			fields["top_bid_size"] = bestBid.Size
		}
		if bestAsk != nil {
			fields["top_ask"] = bestAsk.Price
			fields["top_ask_size"] = bestAsk.Size
		}
		h.logger.WithFields(fields).Info("order book state")
	}
}

// CheckAllBooks is the global periodic audit: it warns on dead books (both
// sides empty) and on spreads above the alert threshold.
func (h *FeedHandler) CheckAllBooks() {
	for symbol := range h.symbols {
		book := h.manager.GetBook(symbol)
		if book == nil {
			continue
		}

		snapshot := book.Snapshot()
		if len(snapshot.Bids) == 0 && len(snapshot.Asks) == 0 {
			h.logger.WithField("symbol", symbol).Warn("empty order book detected")
			continue
		}

		bestBid, bestAsk := book.TopOfBook()
		if bestBid == nil || bestAsk == nil || !bestBid.Price.IsPositive() {
			continue
		}
		spreadPct := bestAsk.Price.Sub(bestBid.Price).Div(bestBid.Price).Mul(decimal.NewFromInt(100))
		if spreadPct.Cmp(h.spreadAlertPct) > 0 {
			h.logger.WithFields(logrus.Fields{
				"symbol":     symbol,
				"spread_pct": spreadPct,
				"bid":        bestBid.Price,
				"ask":        bestAsk.Price,
			}).Warn("large spread detected")
		}
	}
}

// Manager exposes the book manager owned by the ingestion layer.
func (h *FeedHandler) Manager() *orderbook.Manager {
	return h.manager
}

// BookSnapshot returns the current snapshot for symbol, or nil when no book
// exists.
func (h *FeedHandler) BookSnapshot(symbol string) *marketdata.OrderBookSnapshot {
	book := h.manager.GetBook(symbol)
	if book == nil {
		return nil
	}
	return book.Snapshot()
}

// TopOfBook returns the best bid and ask for symbol; both nil when no book
// exists.
func (h *FeedHandler) TopOfBook(symbol string) (*marketdata.PriceLevel, *marketdata.PriceLevel) {
	book := h.manager.GetBook(symbol)
	if book == nil {
		return nil, nil
	}
	return book.TopOfBook()
}

// LatestUpdates returns up to n most recent raw updates from the bounded
// buffer, in chronological order.
func (h *FeedHandler) LatestUpdates(n int) []marketdata.MarketUpdate {
	return h.buffer.Latest(n)
}

// Stats returns a copy of the cumulative sequencing statistics.
func (h *FeedHandler) Stats() FeedStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
