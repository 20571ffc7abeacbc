// Package pricing computes the partner payout owed on an accepted click.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidPricing is returned when cpc is not strictly positive.
var ErrInvalidPricing = errors.New("invalid_pricing")

// PartnerPayout computes partner_payout(cpc, fee%) =
// quantize(cpc * (100 - clamp(fee%, 0, 100)) / 100, 0.01, HALF_UP).
// feePercent is clamped into [0, 100] before use; cpc must be positive.
func PartnerPayout(cpc, feePercent float64) (float64, error) {
	if cpc <= 0 {
		return 0, ErrInvalidPricing
	}
	fee := feePercent
	if fee < 0 {
		fee = 0
	}
	if fee > 100 {
		fee = 100
	}

	cpcDec := decimal.NewFromFloat(cpc)
	feeDec := decimal.NewFromFloat(fee)
	hundred := decimal.NewFromInt(100)

	payout := cpcDec.Mul(hundred.Sub(feeDec)).Div(hundred)
	rounded := payout.Round(2)

	result, _ := rounded.Float64()
	return result, nil
}
