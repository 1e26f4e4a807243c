package marketdata

import "github.com/shopspring/decimal"

// MarketMetrics holds derived statistics computed from a book snapshot and
// the rolling update history for one symbol.
type MarketMetrics struct {
	Symbol              string          `json:"symbol"`
	Timestamp           int64           `json:"timestamp"`
	Spread              decimal.Decimal `json:"spread"`
	SpreadBps           decimal.Decimal `json:"spread_bps"`
	MidPrice            decimal.Decimal `json:"mid_price"`
	VolumeWeightedPrice decimal.Decimal `json:"volume_weighted_price"`
	RollingVolume       decimal.Decimal `json:"rolling_volume"`
	Volatility          decimal.Decimal `json:"volatility"`
	OrderImbalance      decimal.Decimal `json:"order_imbalance"`
}

// AnalyticsSummary aggregates the rolling window statistics for one symbol.
type AnalyticsSummary struct {
	MovingAverage decimal.Decimal `json:"moving_average"`
	Volatility    decimal.Decimal `json:"volatility"`
	VolumeMA      decimal.Decimal `json:"volume_ma"`
}
