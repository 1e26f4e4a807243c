package ingestion

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	marketdata "marketpipe/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const simulatorSourceID = "SIM"

// Simulator produces a synthetic stream of market updates: a geometric
// Brownian price walk per symbol, lognormal order sizes, random side and
// kind, and a single strictly increasing sequence.
type Simulator struct {
	symbols    []string
	prices     map[string]float64
	volatility float64
	interval   time.Duration
	sequence   uint64
	rng        *rand.Rand
	logger     *logrus.Entry
}

func NewSimulator(initialPrices map[string]decimal.Decimal, volatility float64, interval time.Duration, logger *logrus.Logger) *Simulator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	symbols := make([]string, 0, len(initialPrices))
	prices := make(map[string]float64, len(initialPrices))
	for symbol, price := range initialPrices {
		symbols = append(symbols, symbol)
		prices[symbol] = price.InexactFloat64()
	}
	return &Simulator{
		symbols:    symbols,
		prices:     prices,
		volatility: volatility,
		interval:   interval,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger.WithField("component", "feed_simulator"),
	}
}

// Run generates updates until the context is cancelled or emit returns an
// error. Each update is fully handed off before the next is produced.
func (s *Simulator) Run(ctx context.Context, emit func(*marketdata.MarketUpdate) error) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("simulator has no symbols")
	}
	s.logger.WithField("symbols", len(s.symbols)).Info("starting market data simulation")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market data simulation stopped")
			return ctx.Err()
		case <-ticker.C:
			symbol := s.symbols[s.rng.Intn(len(s.symbols))]
			update := s.generate(symbol)
			if err := emit(update); err != nil {
				return fmt.Errorf("emit update: %w", err)
			}
		}
	}
}

// Next produces a single update without pacing; used by tests and by
// callers that drive their own loop.
func (s *Simulator) Next() *marketdata.MarketUpdate {
	symbol := s.symbols[s.rng.Intn(len(s.symbols))]
	return s.generate(symbol)
}

func (s *Simulator) generate(symbol string) *marketdata.MarketUpdate {
	s.sequence++

	// Geometric Brownian step on the reference price.
	price := s.prices[symbol]
	price += s.rng.NormFloat64() * s.volatility * price
	if price <= 0 {
		price = s.prices[symbol]
	}
	s.prices[symbol] = price

	// Lognormal sizes give a realistic spread of order quantities.
	size := math.Exp(4 + 0.5*s.rng.NormFloat64())

	sides := []marketdata.Side{marketdata.SideBid, marketdata.SideAsk}
	kinds := []marketdata.UpdateKind{marketdata.UpdateAdd, marketdata.UpdateModify, marketdata.UpdateDelete}

	return &marketdata.MarketUpdate{
		SequenceNumber: s.sequence,
		Symbol:         symbol,
		Side:           sides[s.rng.Intn(len(sides))],
		Kind:           kinds[s.rng.Intn(len(kinds))],
		Price:          decimal.NewFromFloat(price).Round(2),
		Size:           decimal.NewFromFloat(size).Round(2),
		Timestamp:      time.Now().UnixNano(),
		SourceID:       simulatorSourceID,
	}
}
