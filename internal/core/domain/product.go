package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	Name      string
	Region    string
	Currency  string
	Price     decimal.Decimal
	StockQty  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegionPricingConfig maps a region to its VAT percentage (0-100, 2 decimals).
type RegionPricingConfig struct {
	Region        string
	VATPercentage decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PriceQuote is the VAT-inclusive price breakdown for a single product.
type PriceQuote struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Region        string          `json:"region"`
	Currency      string          `json:"currency"`
	BasePrice     decimal.Decimal `json:"base_price"`
	VATPercentage decimal.Decimal `json:"vat_percentage"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
	FinalPrice    decimal.Decimal `json:"final_price"`
}
