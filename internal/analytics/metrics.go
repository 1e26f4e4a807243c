package analytics

import (
	"math"
	"sync"

	marketdata "marketpipe/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultWindowSize bounds the per-symbol rolling history.
const DefaultWindowSize = 100

// tradingDaysPerYear annualizes the log-return volatility.
const tradingDaysPerYear = 252

var (
	two         = decimal.NewFromInt(2)
	tenThousand = decimal.NewFromInt(10000)
)

// Analytics maintains per-symbol rolling windows of prices and sizes and
// derives statistics from them and from book snapshots. It reads books only
// through snapshots and never affects ledger state.
type Analytics struct {
	windowSize int

	mu             sync.Mutex
	priceHistory   map[string][]decimal.Decimal
	volumeHistory  map[string][]decimal.Decimal
	movingAverages map[string]decimal.Decimal
	volatilities   map[string]decimal.Decimal

	logger *logrus.Entry
}

func NewAnalytics(windowSize int, logger *logrus.Logger) *Analytics {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &Analytics{
		windowSize:     windowSize,
		priceHistory:   make(map[string][]decimal.Decimal),
		volumeHistory:  make(map[string][]decimal.Decimal),
		movingAverages: make(map[string]decimal.Decimal),
		volatilities:   make(map[string]decimal.Decimal),
		logger:         logger.WithField("component", "analytics"),
	}
	a.logger.WithField("window_size", windowSize).Info("initialized market analytics")
	return a
}

// BookMetrics derives spread, mid, VWAP, imbalance, and rolling volume from
// one snapshot. Returns nil when either side is empty.
func (a *Analytics) BookMetrics(snapshot *marketdata.OrderBookSnapshot) *marketdata.MarketMetrics {
	if snapshot == nil || len(snapshot.Bids) == 0 || len(snapshot.Asks) == 0 {
		return nil
	}

	bestBid := snapshot.Bids[0]
	bestAsk := snapshot.Asks[0]
	spread := bestAsk.Price.Sub(bestBid.Price)
	midPrice := bestAsk.Price.Add(bestBid.Price).Div(two)
	spreadBps := decimal.Zero
	if midPrice.IsPositive() {
		spreadBps = spread.Div(midPrice).Mul(tenThousand)
	}

	bidVolume := decimal.Zero
	vwapBids := decimal.Zero
	for _, lvl := range snapshot.Bids {
		bidVolume = bidVolume.Add(lvl.Size)
		vwapBids = vwapBids.Add(lvl.Price.Mul(lvl.Size))
	}
	askVolume := decimal.Zero
	vwapAsks := decimal.Zero
	for _, lvl := range snapshot.Asks {
		askVolume = askVolume.Add(lvl.Size)
		vwapAsks = vwapAsks.Add(lvl.Price.Mul(lvl.Size))
	}

	totalVolume := bidVolume.Add(askVolume)
	vwp := midPrice
	imbalance := decimal.Zero
	if totalVolume.IsPositive() {
		vwp = vwapBids.Add(vwapAsks).Div(totalVolume)
		imbalance = bidVolume.Sub(askVolume).Div(totalVolume)
	}

	a.mu.Lock()
	volatility := a.volatilities[snapshot.Symbol]
	a.mu.Unlock()

	return &marketdata.MarketMetrics{
		Symbol:              snapshot.Symbol,
		Timestamp:           snapshot.Timestamp,
		Spread:              spread,
		SpreadBps:           spreadBps,
		MidPrice:            midPrice,
		VolumeWeightedPrice: vwp,
		RollingVolume:       totalVolume,
		Volatility:          volatility,
		OrderImbalance:      imbalance,
	}
}

// RecordUpdate feeds one accepted update into the rolling windows and
// refreshes the derived moving average and volatility.
func (a *Analytics) RecordUpdate(update *marketdata.MarketUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()

	symbol := update.Symbol
	prices := append(a.priceHistory[symbol], update.Price)
	volumes := append(a.volumeHistory[symbol], update.Size)
	if len(prices) > a.windowSize {
		prices = prices[1:]
		volumes = volumes[1:]
	}
	a.priceHistory[symbol] = prices
	a.volumeHistory[symbol] = volumes

	a.movingAverages[symbol] = meanDecimal(prices)
	a.volatilities[symbol] = annualizedVolatility(prices)
}

// Signals derives boolean trading signals from current metrics.
func (a *Analytics) Signals(metrics *marketdata.MarketMetrics) map[string]bool {
	signals := map[string]bool{
		"volume_imbalance": metrics.OrderImbalance.Abs().Cmp(decimal.NewFromFloat(0.7)) > 0,
		"wide_spread":      metrics.SpreadBps.Cmp(decimal.NewFromInt(50)) > 0,
		"high_volatility":  metrics.Volatility.Cmp(decimal.NewFromFloat(0.02)) > 0,
	}
	a.mu.Lock()
	ma, ok := a.movingAverages[metrics.Symbol]
	a.mu.Unlock()
	if ok && ma.IsPositive() {
		signals["price_trend"] = metrics.MidPrice.Cmp(ma) > 0
	}
	return signals
}

// Summary reports the rolling window statistics for one symbol.
func (a *Analytics) Summary(symbol string) marketdata.AnalyticsSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return marketdata.AnalyticsSummary{
		MovingAverage: a.movingAverages[symbol],
		Volatility:    a.volatilities[symbol],
		VolumeMA:      meanDecimal(a.volumeHistory[symbol]),
	}
}

func meanDecimal(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// annualizedVolatility is the standard deviation of log returns scaled by
// sqrt(252). Computed in float64: volatility is statistical, not a ledger
// quantity, so decimal exactness is not needed here.
func annualizedVolatility(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) < 2 {
		return decimal.Zero
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1].InexactFloat64()
		cur := prices[i].InexactFloat64()
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) == 0 {
		return decimal.Zero
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return decimal.NewFromFloat(math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear))
}
