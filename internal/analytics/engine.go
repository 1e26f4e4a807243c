package analytics

import (
	"context"
	"sync"
	"time"

	marketdata "marketpipe/internal/domain/entity/marketdata"
	"marketpipe/internal/orderbook"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultMetricsInterval paces the periodic metric computation.
	DefaultMetricsInterval = time.Second

	// metricsHistoryLimit bounds the retained metrics per symbol.
	metricsHistoryLimit = 1000
)

// Engine periodically computes metrics for every live book and keeps a
// bounded per-symbol metrics history. It owns no book state: everything is
// read through snapshots.
type Engine struct {
	manager   *orderbook.Manager
	analytics *Analytics
	interval  time.Duration

	mu      sync.RWMutex
	history map[string][]marketdata.MarketMetrics

	logger *logrus.Entry
}

func NewEngine(manager *orderbook.Manager, analytics *Analytics, interval time.Duration, logger *logrus.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultMetricsInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	engine := &Engine{
		manager:   manager,
		analytics: analytics,
		interval:  interval,
		history:   make(map[string][]marketdata.MarketMetrics),
		logger:    logger.WithField("component", "analytics_engine"),
	}
	engine.logger.Info("initialized analytics engine")
	return engine
}

// Run computes metrics on a fixed interval until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("starting analytics engine")
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("analytics engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.calculate()
		}
	}
}

// RecordUpdate forwards an accepted update into the rolling windows.
func (e *Engine) RecordUpdate(update *marketdata.MarketUpdate) {
	e.analytics.RecordUpdate(update)
}

func (e *Engine) calculate() {
	for symbol, book := range e.manager.Books() {
		metrics := e.analytics.BookMetrics(book.Snapshot())
		if metrics == nil {
			continue
		}

		e.mu.Lock()
		history := append(e.history[symbol], *metrics)
		if len(history) > metricsHistoryLimit {
			history = history[1:]
		}
		e.history[symbol] = history
		e.mu.Unlock()

		signals := e.analytics.Signals(metrics)
		if anyActive(signals) {
			e.logger.WithFields(logrus.Fields{
				"symbol":  symbol,
				"signals": signals,
			}).Info("signals generated")
		}
	}
}

func anyActive(signals map[string]bool) bool {
	for _, active := range signals {
		if active {
			return true
		}
	}
	return false
}

// LatestMetrics returns the most recent metrics for symbol, or nil when
// none have been computed yet.
func (e *Engine) LatestMetrics(symbol string) *marketdata.MarketMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	history := e.history[symbol]
	if len(history) == 0 {
		return nil
	}
	metrics := history[len(history)-1]
	return &metrics
}

// Summary returns the rolling window summary for symbol.
func (e *Engine) Summary(symbol string) marketdata.AnalyticsSummary {
	return e.analytics.Summary(symbol)
}
