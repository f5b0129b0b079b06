package catalog

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places a price may carry.
const PriceScale = 2

// Exponent bounds checked before any arithmetic, so that inputs like
// "1e50000000" are rejected without being expanded.
const (
	maxPriceExp = 10
	minPriceExp = -64
)

// MaxPrice is the largest absolute price, as stored in NUMERIC(12,2).
var MaxPrice = decimal.RequireFromString("9999999999.99")

// ErrInvalidPrice is returned by CheckPrice.
var ErrInvalidPrice = errors.New("invalid price")

// CheckPrice reports whether p fits the catalog price column: at most
// PriceScale decimal places and an absolute value up to MaxPrice.
func CheckPrice(p decimal.Decimal) error {
	if exp := p.Exponent(); exp > maxPriceExp || exp < minPriceExp {
		return errors.Wrapf(ErrInvalidPrice, "exponent %d out of range", exp)
	}
	if !p.Equal(p.Truncate(PriceScale)) {
		return errors.Wrapf(ErrInvalidPrice, "more than %d decimal places", PriceScale)
	}
	if p.Abs().GreaterThan(MaxPrice) {
		return errors.Wrapf(ErrInvalidPrice, "exceeds %s", MaxPrice)
	}
	return nil
}
