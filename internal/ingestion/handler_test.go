package ingestion

import (
	"testing"

	marketdata "marketpipe/internal/domain/entity/marketdata"
	"marketpipe/internal/orderbook"

	"github.com/shopspring/decimal"
)

func newTestHandler(t *testing.T, symbols ...string) *FeedHandler {
	t.Helper()
	if len(symbols) == 0 {
		symbols = []string{"AAPL"}
	}
	manager := orderbook.NewManager(nil)
	return NewFeedHandler(symbols, manager, HandlerConfig{BufferSize: 100}, nil)
}

func feedUpdate(seq uint64, symbol string, side marketdata.Side, kind marketdata.UpdateKind, priceStr, sizeStr string) *marketdata.MarketUpdate {
	return &marketdata.MarketUpdate{
		SequenceNumber: seq,
		Symbol:         symbol,
		Side:           side,
		Kind:           kind,
		Price:          decimal.RequireFromString(priceStr),
		Size:           decimal.RequireFromString(sizeStr),
	}
}

func TestHandlerAcceptsTrackedSymbol(t *testing.T) {
	handler := newTestHandler(t)

	if !handler.ProcessUpdate(feedUpdate(1, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "150.00", "100")) {
		t.Fatal("update for tracked symbol rejected")
	}

	stats := handler.Stats()
	if stats.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", stats.Accepted)
	}
	snapshot := handler.BookSnapshot("AAPL")
	if snapshot == nil || len(snapshot.Bids) != 1 {
		t.Error("book should hold the accepted update")
	}
}

func TestHandlerDropsUnknownSymbol(t *testing.T) {
	handler := newTestHandler(t)

	if handler.ProcessUpdate(feedUpdate(1, "TSLA", marketdata.SideBid, marketdata.UpdateAdd, "200.00", "10")) {
		t.Fatal("update for unknown symbol accepted")
	}

	stats := handler.Stats()
	if stats.UnknownSymbol != 1 {
		t.Errorf("unknown symbol count = %d, want 1", stats.UnknownSymbol)
	}
	if stats.Accepted != 0 {
		t.Errorf("accepted = %d, want 0", stats.Accepted)
	}
	if got := handler.LatestUpdates(10); len(got) != 0 {
		t.Error("unknown-symbol updates must not enter the buffer")
	}
}

func TestHandlerSmallGapSurvives(t *testing.T) {
	handler := newTestHandler(t)

	handler.ProcessUpdate(feedUpdate(1, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "150.00", "100"))
	// Gap of exactly the threshold (10 missing updates) stays small.
	handler.ProcessUpdate(feedUpdate(12, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "150.25", "50"))

	stats := handler.Stats()
	if stats.SmallGaps != 1 {
		t.Errorf("small gaps = %d, want 1", stats.SmallGaps)
	}
	if stats.LargeGaps != 0 {
		t.Errorf("large gaps = %d, want 0", stats.LargeGaps)
	}
	snapshot := handler.BookSnapshot("AAPL")
	if len(snapshot.Bids) != 2 {
		t.Errorf("bid levels = %d, want 2 (book must not reset on a small gap)", len(snapshot.Bids))
	}
}

func TestHandlerLargeGapResetsBook(t *testing.T) {
	handler := newTestHandler(t)

	handler.ProcessUpdate(feedUpdate(1, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "150.00", "100"))
	handler.ProcessUpdate(feedUpdate(2, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "149.75", "200"))
	// Gap of 11 missing updates exceeds the threshold of 10.
	if !handler.ProcessUpdate(feedUpdate(14, "AAPL", marketdata.SideAsk, marketdata.UpdateAdd, "150.50", "80")) {
		t.Fatal("update after a large gap should be accepted into the fresh book")
	}

	stats := handler.Stats()
	if stats.LargeGaps != 1 {
		t.Errorf("large gaps = %d, want 1", stats.LargeGaps)
	}
	snapshot := handler.BookSnapshot("AAPL")
	if len(snapshot.Bids) != 0 {
		t.Errorf("bid levels = %d, want 0 after reset", len(snapshot.Bids))
	}
	if len(snapshot.Asks) != 1 {
		t.Errorf("ask levels = %d, want 1 (the triggering update)", len(snapshot.Asks))
	}
	if snapshot.SequenceNumber != 14 {
		t.Errorf("sequence = %d, want 14", snapshot.SequenceNumber)
	}
}

func TestHandlerGapTrackingIsPerSymbol(t *testing.T) {
	handler := newTestHandler(t, "AAPL", "MSFT")

	handler.ProcessUpdate(feedUpdate(1, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "150.00", "100"))
	handler.ProcessUpdate(feedUpdate(1, "MSFT", marketdata.SideBid, marketdata.UpdateAdd, "380.00", "10"))
	// Large gap on MSFT only.
	handler.ProcessUpdate(feedUpdate(50, "MSFT", marketdata.SideBid, marketdata.UpdateAdd, "380.50", "10"))

	aapl := handler.BookSnapshot("AAPL")
	if len(aapl.Bids) != 1 {
		t.Error("AAPL book must be untouched by a gap on MSFT")
	}
	msft := handler.BookSnapshot("MSFT")
	if len(msft.Bids) != 1 {
		t.Errorf("MSFT bid levels = %d, want 1 after reset", len(msft.Bids))
	}
}

func TestHandlerCountsCrossedBooks(t *testing.T) {
	handler := newTestHandler(t)

	handler.ProcessUpdate(feedUpdate(1, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "151.00", "100"))
	handler.ProcessUpdate(feedUpdate(2, "AAPL", marketdata.SideAsk, marketdata.UpdateAdd, "150.00", "100"))

	stats := handler.Stats()
	if stats.CrossedBooks == 0 {
		t.Error("crossed book should be counted")
	}
	// Detection must not unwind the ledger.
	bid, ask := handler.TopOfBook("AAPL")
	if bid == nil || ask == nil {
		t.Fatal("both sides should still be populated")
	}
	if bid.Price.Cmp(ask.Price) < 0 {
		t.Error("book should still be crossed")
	}
}

func TestHandlerBuffersRejectedUpdates(t *testing.T) {
	handler := newTestHandler(t)

	handler.ProcessUpdate(feedUpdate(5, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "150.00", "100"))
	// Stale for the book, but tracked and well-formed, so it is buffered.
	handler.ProcessUpdate(feedUpdate(5, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "150.50", "100"))

	latest := handler.LatestUpdates(10)
	if len(latest) != 2 {
		t.Errorf("buffered updates = %d, want 2", len(latest))
	}
	if handler.Stats().Accepted != 1 {
		t.Errorf("accepted = %d, want 1", handler.Stats().Accepted)
	}
}

func TestHandlerQueriesForUnknownSymbol(t *testing.T) {
	handler := newTestHandler(t)

	if handler.BookSnapshot("TSLA") != nil {
		t.Error("snapshot for unknown symbol should be nil")
	}
	bid, ask := handler.TopOfBook("TSLA")
	if bid != nil || ask != nil {
		t.Error("top of book for unknown symbol should be nil")
	}
}

func TestCheckAllBooksDoesNotMutate(t *testing.T) {
	handler := newTestHandler(t)

	handler.ProcessUpdate(feedUpdate(1, "AAPL", marketdata.SideBid, marketdata.UpdateAdd, "100.00", "100"))
	handler.ProcessUpdate(feedUpdate(2, "AAPL", marketdata.SideAsk, marketdata.UpdateAdd, "120.00", "100"))

	before := handler.BookSnapshot("AAPL")
	handler.CheckAllBooks()
	after := handler.BookSnapshot("AAPL")

	if len(before.Bids) != len(after.Bids) || len(before.Asks) != len(after.Asks) {
		t.Error("audit must not change book contents")
	}
	if before.SequenceNumber != after.SequenceNumber {
		t.Error("audit must not advance the sequence")
	}
}
