package cart

import (
	"fmt"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// Pricing holds the rates applied on top of the cart subtotal
type Pricing struct {
	TaxRate      decimal.Decimal
	FlatShipping decimal.Decimal
}

// DefaultPricing is 10% tax and a 10.00 flat shipping fee
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:      decimal.RequireFromString("0.10"),
		FlatShipping: decimal.RequireFromString("10.00"),
	}
}

// ParsePricing reads the rates from their configured string form
func ParsePricing(taxRate, flatShipping string) (Pricing, error) {
	tax, err := decimal.NewFromString(taxRate)
	if err != nil {
		return Pricing{}, fmt.Errorf("invalid tax rate %q: %w", taxRate, err)
	}
	shipping, err := decimal.NewFromString(flatShipping)
	if err != nil {
		return Pricing{}, fmt.Errorf("invalid shipping rate %q: %w", flatShipping, err)
	}
	if tax.IsNegative() || shipping.IsNegative() {
		return Pricing{}, fmt.Errorf("rates must not be negative")
	}
	return Pricing{TaxRate: tax, FlatShipping: shipping}, nil
}

// Compute derives the totals of lines. It has no side effects.
func (p Pricing) Compute(lines []models.CartLine) models.Totals {
	var count int
	subtotal := decimal.Zero
	for _, l := range lines {
		count += l.Quantity
		subtotal = subtotal.Add(l.LineTotal())
	}

	shipping := decimal.Zero
	if count > 0 {
		shipping = p.FlatShipping
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)

	return models.Totals{
		ItemCount: count,
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Total:     subtotal.Add(tax).Add(shipping),
	}
}
