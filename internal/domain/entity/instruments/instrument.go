package instruments

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetClass classifies an instrument in the directory.
type AssetClass string

const (
	AssetClassEquity AssetClass = "equity"
	AssetClassFuture AssetClass = "future"
	AssetClassCrypto AssetClass = "crypto"
	AssetClassFX     AssetClass = "fx"
)

func (a AssetClass) String() string {
	return string(a)
}

func (a AssetClass) IsValid() bool {
	switch a {
	case AssetClassEquity, AssetClassFuture, AssetClassCrypto, AssetClassFX:
		return true
	default:
		return false
	}
}

func NewAssetClass(s string) (AssetClass, error) {
	ac := AssetClass(s)
	if !ac.IsValid() {
		return "", fmt.Errorf("invalid asset class: %s", s)
	}
	return ac, nil
}

// Instrument describes one tradable symbol known to the pipeline: its
// display name, asset class, tick size, and the reference price the feed
// simulator starts from.
type Instrument struct {
	UID            uuid.UUID       `json:"uid"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	AssetClass     AssetClass      `json:"asset_class"`
	TickSize       decimal.Decimal `json:"tick_size"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
