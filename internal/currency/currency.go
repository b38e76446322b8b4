// Package currency provides the exchange-rate collaborator used by cart
// intake. The numeric contract is intentionally thin: a Converter yields one
// multiplier from the storefront currency to the checkout currency.
package currency

import (
	"context"

	"github.com/shopspring/decimal"
)

// Converter yields the current conversion rate.
type Converter interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// Fixed is a Converter that always returns the same rate, for deployments
// configured with a contractual fixed rate instead of a live feed.
type Fixed struct {
	rate decimal.Decimal
}

// NewFixed creates a Fixed converter.
func NewFixed(rate decimal.Decimal) Fixed {
	return Fixed{rate: rate}
}

// Rate returns the configured rate.
func (f Fixed) Rate(context.Context) (decimal.Decimal, error) {
	return f.rate, nil
}
