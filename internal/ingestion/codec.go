package ingestion

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	marketdata "marketpipe/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
)

// Fixed-width binary layout for a market update, big-endian integers,
// NUL-padded ASCII text fields. Price and size travel as decimal strings so
// that a decoded update lands on exactly the same book level as the encoded
// one.
//
//	offset  size  field
//	0       1     format version (currently 1)
//	1       8     timestamp, int64 ns
//	9       8     sequence number, uint64
//	17      1     side (0 = bid, 1 = ask)
//	18      1     kind (0 = add, 1 = modify, 2 = delete)
//	19      12    symbol
//	31      12    source id
//	43      16    order id (may be empty)
//	59      16    price, decimal string
//	75      16    size, decimal string
const (
	codecVersion = 1

	symbolFieldLen  = 12
	sourceFieldLen  = 12
	orderIDFieldLen = 16
	decimalFieldLen = 16

	// EncodedUpdateSize is the wire size of one encoded update.
	EncodedUpdateSize = 1 + 8 + 8 + 1 + 1 + symbolFieldLen + sourceFieldLen + orderIDFieldLen + 2*decimalFieldLen
)

var (
	ErrShortBuffer   = errors.New("encoded update truncated")
	ErrTrailingBytes = errors.New("encoded update has trailing bytes")
	ErrBadVersion    = errors.New("unsupported encoding version")
	ErrFieldTooLong  = errors.New("field exceeds wire width")
	ErrMissingSymbol = errors.New("symbol is empty")
	ErrNegativeSize  = errors.New("size is negative")
	errInvalidSide   = errors.New("invalid side byte")
	errInvalidKind   = errors.New("invalid kind byte")
)

var (
	sideToByte = map[marketdata.Side]byte{
		marketdata.SideBid: 0,
		marketdata.SideAsk: 1,
	}
	byteToSide = map[byte]marketdata.Side{
		0: marketdata.SideBid,
		1: marketdata.SideAsk,
	}
	kindToByte = map[marketdata.UpdateKind]byte{
		marketdata.UpdateAdd:    0,
		marketdata.UpdateModify: 1,
		marketdata.UpdateDelete: 2,
	}
	byteToKind = map[byte]marketdata.UpdateKind{
		0: marketdata.UpdateAdd,
		1: marketdata.UpdateModify,
		2: marketdata.UpdateDelete,
	}
)

// EncodeUpdate serializes one update into the fixed-width wire format.
func EncodeUpdate(update *marketdata.MarketUpdate) ([]byte, error) {
	if update.Symbol == "" {
		return nil, ErrMissingSymbol
	}
	sideByte, ok := sideToByte[update.Side]
	if !ok {
		return nil, fmt.Errorf("encode side %q: %w", update.Side, errInvalidSide)
	}
	kindByte, ok := kindToByte[update.Kind]
	if !ok {
		return nil, fmt.Errorf("encode kind %q: %w", update.Kind, errInvalidKind)
	}

	buf := make([]byte, EncodedUpdateSize)
	buf[0] = codecVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(update.Timestamp))
	binary.BigEndian.PutUint64(buf[9:17], update.SequenceNumber)
	buf[17] = sideByte
	buf[18] = kindByte

	offset := 19
	for _, field := range []struct {
		value string
		width int
		name  string
	}{
		{update.Symbol, symbolFieldLen, "symbol"},
		{update.SourceID, sourceFieldLen, "source_id"},
		{update.OrderID, orderIDFieldLen, "order_id"},
		{update.Price.String(), decimalFieldLen, "price"},
		{update.Size.String(), decimalFieldLen, "size"},
	} {
		if len(field.value) > field.width {
			return nil, fmt.Errorf("%s %q: %w", field.name, field.value, ErrFieldTooLong)
		}
		copy(buf[offset:offset+field.width], field.value)
		offset += field.width
	}
	return buf, nil
}

// DecodeUpdate parses an encoded update. Malformed input is the one input
// class that surfaces as a hard error.
func DecodeUpdate(data []byte) (*marketdata.MarketUpdate, error) {
	if len(data) < EncodedUpdateSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrShortBuffer, len(data), EncodedUpdateSize)
	}
	// The transport preserves message boundaries, so trailing bytes mean a
	// corrupt frame, not a stream fragment.
	if len(data) > EncodedUpdateSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrTrailingBytes, len(data), EncodedUpdateSize)
	}
	if data[0] != codecVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, data[0])
	}

	side, ok := byteToSide[data[17]]
	if !ok {
		return nil, fmt.Errorf("decode side byte %d: %w", data[17], errInvalidSide)
	}
	kind, ok := byteToKind[data[18]]
	if !ok {
		return nil, fmt.Errorf("decode kind byte %d: %w", data[18], errInvalidKind)
	}

	offset := 19
	symbol := trimField(data[offset : offset+symbolFieldLen])
	offset += symbolFieldLen
	sourceID := trimField(data[offset : offset+sourceFieldLen])
	offset += sourceFieldLen
	orderID := trimField(data[offset : offset+orderIDFieldLen])
	offset += orderIDFieldLen
	priceRaw := trimField(data[offset : offset+decimalFieldLen])
	offset += decimalFieldLen
	sizeRaw := trimField(data[offset : offset+decimalFieldLen])

	if symbol == "" {
		return nil, ErrMissingSymbol
	}
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return nil, fmt.Errorf("decode price %q: %w", priceRaw, err)
	}
	size, err := decimal.NewFromString(sizeRaw)
	if err != nil {
		return nil, fmt.Errorf("decode size %q: %w", sizeRaw, err)
	}
	if size.IsNegative() {
		return nil, ErrNegativeSize
	}

	return &marketdata.MarketUpdate{
		SequenceNumber: binary.BigEndian.Uint64(data[9:17]),
		Symbol:         symbol,
		Side:           side,
		Kind:           kind,
		Price:          price,
		Size:           size,
		OrderID:        orderID,
		Timestamp:      int64(binary.BigEndian.Uint64(data[1:9])),
		SourceID:       sourceID,
	}, nil
}

func trimField(field []byte) string {
	return string(bytes.TrimRight(field, "\x00"))
}
