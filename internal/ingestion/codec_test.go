package ingestion

import (
	"errors"
	"strings"
	"testing"
	"time"

	marketdata "marketpipe/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
)

func sampleUpdate() *marketdata.MarketUpdate {
	return &marketdata.MarketUpdate{
		SequenceNumber: 42,
		Symbol:         "BTC-USD",
		Side:           marketdata.SideAsk,
		Kind:           marketdata.UpdateModify,
		Price:          decimal.RequireFromString("42000.55"),
		Size:           decimal.RequireFromString("0.125"),
		OrderID:        "ord-7",
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixNano(),
		SourceID:       "SIM",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := sampleUpdate()

	encoded, err := EncodeUpdate(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) != EncodedUpdateSize {
		t.Fatalf("encoded size = %d, want %d", len(encoded), EncodedUpdateSize)
	}

	decoded, err := DecodeUpdate(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.SequenceNumber != original.SequenceNumber {
		t.Errorf("sequence = %d, want %d", decoded.SequenceNumber, original.SequenceNumber)
	}
	if decoded.Symbol != original.Symbol {
		t.Errorf("symbol = %q, want %q", decoded.Symbol, original.Symbol)
	}
	if decoded.Side != original.Side || decoded.Kind != original.Kind {
		t.Errorf("side/kind = %s/%s, want %s/%s", decoded.Side, decoded.Kind, original.Side, original.Kind)
	}
	if decoded.OrderID != original.OrderID {
		t.Errorf("order id = %q, want %q", decoded.OrderID, original.OrderID)
	}
	if decoded.Timestamp != original.Timestamp {
		t.Errorf("timestamp = %d, want %d", decoded.Timestamp, original.Timestamp)
	}
	if decoded.SourceID != original.SourceID {
		t.Errorf("source id = %q, want %q", decoded.SourceID, original.SourceID)
	}
	// Price equality must be exact so decoded updates land on the same level.
	if !decoded.Price.Equal(original.Price) || !decoded.Size.Equal(original.Size) {
		t.Errorf("price/size = %s/%s, want %s/%s", decoded.Price, decoded.Size, original.Price, original.Size)
	}
}

func TestEncodeEmptyOrderID(t *testing.T) {
	update := sampleUpdate()
	update.OrderID = ""

	encoded, err := EncodeUpdate(update)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeUpdate(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.OrderID != "" {
		t.Errorf("order id = %q, want empty", decoded.OrderID)
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	missing := sampleUpdate()
	missing.Symbol = ""
	if _, err := EncodeUpdate(missing); !errors.Is(err, ErrMissingSymbol) {
		t.Errorf("empty symbol: err = %v, want ErrMissingSymbol", err)
	}

	long := sampleUpdate()
	long.Symbol = strings.Repeat("X", symbolFieldLen+1)
	if _, err := EncodeUpdate(long); !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("oversized symbol: err = %v, want ErrFieldTooLong", err)
	}

	badSide := sampleUpdate()
	badSide.Side = marketdata.Side("middle")
	if _, err := EncodeUpdate(badSide); err == nil {
		t.Error("invalid side should fail to encode")
	}

	badKind := sampleUpdate()
	badKind.Kind = marketdata.UpdateKind("upsert")
	if _, err := EncodeUpdate(badKind); err == nil {
		t.Error("invalid kind should fail to encode")
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	valid, err := EncodeUpdate(sampleUpdate())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := DecodeUpdate(valid[:10]); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short frame: err = %v, want ErrShortBuffer", err)
	}

	oversized := append(append([]byte(nil), valid...), 0)
	if _, err := DecodeUpdate(oversized); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("oversized frame: err = %v, want ErrTrailingBytes", err)
	}

	badVersion := append([]byte(nil), valid...)
	badVersion[0] = 9
	if _, err := DecodeUpdate(badVersion); !errors.Is(err, ErrBadVersion) {
		t.Errorf("bad version: err = %v, want ErrBadVersion", err)
	}

	badSide := append([]byte(nil), valid...)
	badSide[17] = 7
	if _, err := DecodeUpdate(badSide); err == nil {
		t.Error("invalid side byte should fail to decode")
	}

	badKind := append([]byte(nil), valid...)
	badKind[18] = 7
	if _, err := DecodeUpdate(badKind); err == nil {
		t.Error("invalid kind byte should fail to decode")
	}

	badPrice := append([]byte(nil), valid...)
	copy(badPrice[59:75], "not-a-price\x00\x00\x00\x00\x00")
	if _, err := DecodeUpdate(badPrice); err == nil {
		t.Error("garbage price should fail to decode")
	}

	negative := sampleUpdate()
	negative.Size = decimal.RequireFromString("-1")
	encoded, err := EncodeUpdate(negative)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeUpdate(encoded); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("negative size: err = %v, want ErrNegativeSize", err)
	}
}

func TestDecodePreservesLevelIdentity(t *testing.T) {
	// Two textual representations of the same price must decode to equal
	// decimals, not nearby floats.
	for _, raw := range []string{"100.1", "100.10"} {
		update := sampleUpdate()
		update.Price = decimal.RequireFromString(raw)
		encoded, err := EncodeUpdate(update)
		if err != nil {
			t.Fatalf("encode %s: %v", raw, err)
		}
		decoded, err := DecodeUpdate(encoded)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if !decoded.Price.Equal(decimal.RequireFromString("100.1")) {
			t.Errorf("decoded price %s not equal to 100.1", decoded.Price)
		}
	}
}
