// Package pricing computes VAT-inclusive prices with fixed rounding rules.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-engine/internal/core/domain"
)

var hundred = decimal.NewFromInt(100)

// Compute derives the VAT amount and final price for a base price and VAT
// percentage. The intermediate VAT is kept at 4 decimal places, the final
// price is rounded to 2, both half-up. The returned VAT amount is
// finalPrice - basePrice, so base + vat == final holds exactly.
//
// Compute is pure and safe for concurrent use.
func Compute(basePrice, vatPercentage decimal.Decimal) (vatAmount, finalPrice decimal.Decimal, err error) {
	if basePrice.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, &domain.InvalidPricingInputError{
			Reason: "base price must be greater than zero",
		}
	}
	if vatPercentage.IsNegative() || vatPercentage.GreaterThan(hundred) {
		return decimal.Zero, decimal.Zero, &domain.InvalidPricingInputError{
			Reason: "vat percentage must be between 0 and 100",
		}
	}

	intermediate := basePrice.Mul(vatPercentage).Div(hundred).Round(4)
	finalPrice = basePrice.Add(intermediate).Round(2)
	vatAmount = finalPrice.Sub(basePrice)
	return vatAmount, finalPrice, nil
}

// LineTotal is the final price of an order line: the VAT-inclusive unit
// price multiplied by the quantity. unitFinal is already rounded to 2
// decimals, so the product is exact.
func LineTotal(unitFinal decimal.Decimal, quantity int) decimal.Decimal {
	return unitFinal.Mul(decimal.NewFromInt(int64(quantity)))
}
