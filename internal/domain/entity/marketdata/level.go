package marketdata

import "github.com/shopspring/decimal"

// PriceLevel is a read-only projection of one book level: the price, the
// aggregate resting size, and the number of contributing orders.
type PriceLevel struct {
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	OrderCount int             `json:"order_count"`
}
