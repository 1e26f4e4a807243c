package analytics

import (
	"testing"

	marketdata "marketpipe/internal/domain/entity/marketdata"
	"marketpipe/internal/orderbook"

	"github.com/shopspring/decimal"
)

func level(priceStr, sizeStr string) marketdata.PriceLevel {
	return marketdata.PriceLevel{
		Price:      decimal.RequireFromString(priceStr),
		Size:       decimal.RequireFromString(sizeStr),
		OrderCount: 1,
	}
}

func testSnapshot(symbol string, bids, asks []marketdata.PriceLevel) *marketdata.OrderBookSnapshot {
	return &marketdata.OrderBookSnapshot{
		Symbol:    symbol,
		Timestamp: 1700000000000000000,
		Bids:      bids,
		Asks:      asks,
	}
}

func recordPrices(a *Analytics, symbol string, prices ...string) {
	for i, p := range prices {
		a.RecordUpdate(&marketdata.MarketUpdate{
			SequenceNumber: uint64(i + 1),
			Symbol:         symbol,
			Side:           marketdata.SideBid,
			Kind:           marketdata.UpdateAdd,
			Price:          decimal.RequireFromString(p),
			Size:           decimal.NewFromInt(100),
		})
	}
}

func TestBookMetricsNilOnEmptySide(t *testing.T) {
	a := NewAnalytics(0, nil)

	cases := []struct {
		name     string
		snapshot *marketdata.OrderBookSnapshot
	}{
		{"nil snapshot", nil},
		{"no bids", testSnapshot("AAPL", nil, []marketdata.PriceLevel{level("101", "5")})},
		{"no asks", testSnapshot("AAPL", []marketdata.PriceLevel{level("100", "5")}, nil)},
	}
	for _, tc := range cases {
		if m := a.BookMetrics(tc.snapshot); m != nil {
			t.Errorf("%s: expected nil metrics, got %+v", tc.name, m)
		}
	}
}

func TestBookMetricsArithmetic(t *testing.T) {
	a := NewAnalytics(0, nil)
	snapshot := testSnapshot("AAPL",
		[]marketdata.PriceLevel{level("100", "10"), level("99", "20")},
		[]marketdata.PriceLevel{level("101", "5"), level("102", "15")},
	)

	m := a.BookMetrics(snapshot)
	if m == nil {
		t.Fatal("expected metrics for two-sided book")
	}
	if m.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", m.Symbol)
	}
	if m.Timestamp != snapshot.Timestamp {
		t.Errorf("timestamp = %d, want %d", m.Timestamp, snapshot.Timestamp)
	}
	if !m.Spread.Equal(decimal.NewFromInt(1)) {
		t.Errorf("spread = %s, want 1", m.Spread)
	}
	if !m.MidPrice.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("mid = %s, want 100.5", m.MidPrice)
	}
	// (100*10 + 99*20 + 101*5 + 102*15) / 50 = 100.3
	if !m.VolumeWeightedPrice.Equal(decimal.RequireFromString("100.3")) {
		t.Errorf("vwap = %s, want 100.3", m.VolumeWeightedPrice)
	}
	// (30 - 20) / 50 = 0.2
	if !m.OrderImbalance.Equal(decimal.RequireFromString("0.2")) {
		t.Errorf("imbalance = %s, want 0.2", m.OrderImbalance)
	}
	if !m.RollingVolume.Equal(decimal.NewFromInt(50)) {
		t.Errorf("rolling volume = %s, want 50", m.RollingVolume)
	}
	wantBps := m.Spread.Div(m.MidPrice).Mul(decimal.NewFromInt(10000))
	if !m.SpreadBps.Equal(wantBps) {
		t.Errorf("spread bps = %s, want %s", m.SpreadBps, wantBps)
	}
}

func TestRecordUpdateWindowTrims(t *testing.T) {
	a := NewAnalytics(3, nil)
	recordPrices(a, "AAPL", "1", "2", "3", "4", "5")

	summary := a.Summary("AAPL")
	// window keeps the last three prices: mean(3, 4, 5) = 4
	if !summary.MovingAverage.Equal(decimal.NewFromInt(4)) {
		t.Errorf("moving average = %s, want 4", summary.MovingAverage)
	}
	if !summary.VolumeMA.Equal(decimal.NewFromInt(100)) {
		t.Errorf("volume MA = %s, want 100", summary.VolumeMA)
	}
}

func TestVolatilityConstantPricesIsZero(t *testing.T) {
	a := NewAnalytics(0, nil)
	recordPrices(a, "AAPL", "150", "150", "150", "150")

	summary := a.Summary("AAPL")
	if !summary.Volatility.IsZero() {
		t.Errorf("volatility = %s, want 0 for constant prices", summary.Volatility)
	}
}

func TestVolatilityMovingPricesIsPositive(t *testing.T) {
	a := NewAnalytics(0, nil)
	recordPrices(a, "AAPL", "150", "153", "149", "155", "148")

	summary := a.Summary("AAPL")
	if !summary.Volatility.IsPositive() {
		t.Errorf("volatility = %s, want positive for moving prices", summary.Volatility)
	}
}

func TestVolatilityNeedsTwoPrices(t *testing.T) {
	a := NewAnalytics(0, nil)
	recordPrices(a, "AAPL", "150")

	if v := a.Summary("AAPL").Volatility; !v.IsZero() {
		t.Errorf("volatility = %s, want 0 for single price", v)
	}
}

func TestSummaryUnknownSymbolIsZero(t *testing.T) {
	a := NewAnalytics(0, nil)
	summary := a.Summary("UNKNOWN")
	if !summary.MovingAverage.IsZero() || !summary.Volatility.IsZero() || !summary.VolumeMA.IsZero() {
		t.Errorf("expected zero summary for unknown symbol, got %+v", summary)
	}
}

func TestSignalsThresholds(t *testing.T) {
	a := NewAnalytics(0, nil)

	cases := []struct {
		name      string
		imbalance string
		spreadBps string
		vol       string
		want      map[string]bool
	}{
		{
			name: "all quiet", imbalance: "0.5", spreadBps: "50", vol: "0.02",
			want: map[string]bool{"volume_imbalance": false, "wide_spread": false, "high_volatility": false},
		},
		{
			name: "bid heavy", imbalance: "0.8", spreadBps: "10", vol: "0.01",
			want: map[string]bool{"volume_imbalance": true, "wide_spread": false, "high_volatility": false},
		},
		{
			name: "ask heavy", imbalance: "-0.8", spreadBps: "10", vol: "0.01",
			want: map[string]bool{"volume_imbalance": true, "wide_spread": false, "high_volatility": false},
		},
		{
			name: "wide and volatile", imbalance: "0", spreadBps: "60", vol: "0.03",
			want: map[string]bool{"volume_imbalance": false, "wide_spread": true, "high_volatility": true},
		},
	}
	for _, tc := range cases {
		metrics := &marketdata.MarketMetrics{
			Symbol:         "AAPL",
			OrderImbalance: decimal.RequireFromString(tc.imbalance),
			SpreadBps:      decimal.RequireFromString(tc.spreadBps),
			Volatility:     decimal.RequireFromString(tc.vol),
		}
		signals := a.Signals(metrics)
		for name, want := range tc.want {
			if signals[name] != want {
				t.Errorf("%s: signal %q = %v, want %v", tc.name, name, signals[name], want)
			}
		}
		if _, ok := signals["price_trend"]; ok {
			t.Errorf("%s: price_trend present without recorded history", tc.name)
		}
	}
}

func TestSignalsPriceTrendNeedsHistory(t *testing.T) {
	a := NewAnalytics(0, nil)
	recordPrices(a, "AAPL", "100", "102")

	metrics := &marketdata.MarketMetrics{
		Symbol:   "AAPL",
		MidPrice: decimal.RequireFromString("105"),
	}
	signals := a.Signals(metrics)
	trend, ok := signals["price_trend"]
	if !ok {
		t.Fatal("price_trend missing after history recorded")
	}
	// mid 105 above the moving average of (100, 102)
	if !trend {
		t.Error("price_trend = false, want true for mid above moving average")
	}

	metrics.MidPrice = decimal.RequireFromString("95")
	if signals = a.Signals(metrics); signals["price_trend"] {
		t.Error("price_trend = true, want false for mid below moving average")
	}
}

func TestEngineLatestMetricsEmpty(t *testing.T) {
	engine := NewEngine(orderbook.NewManager(nil), NewAnalytics(0, nil), 0, nil)
	if m := engine.LatestMetrics("AAPL"); m != nil {
		t.Errorf("expected nil before any calculation, got %+v", m)
	}
}

func TestEngineRecordUpdateFeedsSummary(t *testing.T) {
	engine := NewEngine(orderbook.NewManager(nil), NewAnalytics(0, nil), 0, nil)
	engine.RecordUpdate(&marketdata.MarketUpdate{
		SequenceNumber: 1,
		Symbol:         "AAPL",
		Side:           marketdata.SideBid,
		Kind:           marketdata.UpdateAdd,
		Price:          decimal.RequireFromString("150"),
		Size:           decimal.NewFromInt(40),
	})

	summary := engine.Summary("AAPL")
	if !summary.MovingAverage.Equal(decimal.RequireFromString("150")) {
		t.Errorf("moving average = %s, want 150", summary.MovingAverage)
	}
	if !summary.VolumeMA.Equal(decimal.NewFromInt(40)) {
		t.Errorf("volume MA = %s, want 40", summary.VolumeMA)
	}
}
