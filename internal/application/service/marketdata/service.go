package marketdata

import (
	"context"
	"errors"
	"time"

	"marketpipe/internal/analytics"
	marketdata "marketpipe/internal/domain/entity/marketdata"
	interfaces "marketpipe/internal/domain/interfaces"
	"marketpipe/internal/ingestion"
)

var (
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrInvalidDepth    = errors.New("depth must be positive")
	ErrInvalidLimit    = errors.New("limit must be positive")
	ErrInvalidSide     = errors.New("side must be bid or ask")
	ErrStorageDisabled = errors.New("snapshot storage is not configured")
)

// Service is the read surface over the live pipeline: book queries through
// the feed handler, analytics through the engine, and stored snapshot
// history through the repository (when one is configured).
type Service struct {
	handler *ingestion.FeedHandler
	engine  *analytics.Engine
	repo    interfaces.MarketDataRepository
}

func NewService(handler *ingestion.FeedHandler, engine *analytics.Engine, repo interfaces.MarketDataRepository) *Service {
	return &Service{handler: handler, engine: engine, repo: repo}
}

// Live book queries

// GetSnapshot returns the live book at up to depth levels per side; a
// non-positive depth uses the default.
func (s *Service) GetSnapshot(symbol string, depth int) (*marketdata.OrderBookSnapshot, error) {
	book := s.handler.Manager().GetBook(symbol)
	if book == nil {
		return nil, ErrUnknownSymbol
	}
	return book.SnapshotAt(depth), nil
}

func (s *Service) GetTopOfBook(symbol string) (*marketdata.PriceLevel, *marketdata.PriceLevel, error) {
	if s.handler.Manager().GetBook(symbol) == nil {
		return nil, nil, ErrUnknownSymbol
	}
	bid, ask := s.handler.TopOfBook(symbol)
	return bid, ask, nil
}

func (s *Service) GetPriceLevels(symbol string, side marketdata.Side, depth int) ([]marketdata.PriceLevel, error) {
	if !side.IsValid() {
		return nil, ErrInvalidSide
	}
	if depth <= 0 {
		return nil, ErrInvalidDepth
	}
	book := s.handler.Manager().GetBook(symbol)
	if book == nil {
		return nil, ErrUnknownSymbol
	}
	return book.PriceLevels(side, depth), nil
}

// Analytics

func (s *Service) GetMetrics(symbol string) (*marketdata.MarketMetrics, marketdata.AnalyticsSummary, error) {
	if s.handler.Manager().GetBook(symbol) == nil {
		return nil, marketdata.AnalyticsSummary{}, ErrUnknownSymbol
	}
	return s.engine.LatestMetrics(symbol), s.engine.Summary(symbol), nil
}

// Diagnostics

func (s *Service) GetLatestUpdates(n int) ([]marketdata.MarketUpdate, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	return s.handler.LatestUpdates(n), nil
}

func (s *Service) GetFeedStats() ingestion.FeedStats {
	return s.handler.Stats()
}

// Stored snapshot history

func (s *Service) GetSnapshotsBetween(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.OrderBookSnapshot, error) {
	if s.repo == nil {
		return nil, ErrStorageDisabled
	}
	if from.After(to) {
		from, to = to, from
	}
	return s.repo.GetOrderBookSnapshotsBetween(ctx, symbol, from, to)
}

func (s *Service) GetLastSnapshots(ctx context.Context, symbol string, limit int) ([]marketdata.OrderBookSnapshot, error) {
	if s.repo == nil {
		return nil, ErrStorageDisabled
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	return s.repo.GetLastOrderBookSnapshots(ctx, symbol, limit)
}
