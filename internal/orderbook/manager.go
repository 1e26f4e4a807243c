package orderbook

import (
	"sync"

	marketdata "marketpipe/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

// Manager owns one OrderBook per symbol. Books are created lazily on the
// first update for a symbol. The registry lock only guards the symbol map;
// each book synchronizes its own state.
type Manager struct {
	mu     sync.RWMutex
	books  map[string]*OrderBook
	logger *logrus.Logger
}

func NewManager(logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.Info("initialized order book manager")
	return &Manager{
		books:  make(map[string]*OrderBook),
		logger: logger,
	}
}

// GetOrCreateBook returns the book for symbol, registering a new empty one
// if none exists yet.
func (m *Manager) GetOrCreateBook(symbol string) *OrderBook {
	m.mu.RLock()
	book, ok := m.books[symbol]
	m.mu.RUnlock()
	if ok {
		return book
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if book, ok = m.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol, m.logger)
	m.books[symbol] = book
	m.logger.WithField("symbol", symbol).Info("created new order book")
	return book
}

// ProcessUpdate routes the update to its symbol's book.
func (m *Manager) ProcessUpdate(update *marketdata.MarketUpdate) bool {
	return m.GetOrCreateBook(update.Symbol).ProcessUpdate(update)
}

// GetBook returns the book for symbol without creating one.
func (m *Manager) GetBook(symbol string) *OrderBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.books[symbol]
}

// RemoveBook deregisters and discards the book for symbol; no-op when
// absent.
func (m *Manager) RemoveBook(symbol string) {
	m.mu.Lock()
	_, ok := m.books[symbol]
	delete(m.books, symbol)
	m.mu.Unlock()
	if ok {
		m.logger.WithField("symbol", symbol).Info("removed order book")
	}
}

// Symbols lists the symbols with a registered book.
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	symbols := make([]string, 0, len(m.books))
	for symbol := range m.books {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Books returns a point-in-time copy of the registry for iteration.
func (m *Manager) Books() map[string]*OrderBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	books := make(map[string]*OrderBook, len(m.books))
	for symbol, book := range m.books {
		books[symbol] = book
	}
	return books
}
