package port

import (
	"context"

	"github.com/rl1809/order-engine/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists an order and its lines with status created
	CreateOrder(ctx context.Context, order *domain.Order) error

	// ConfirmOrder stores the confirmation number and flips status to confirmed
	ConfirmOrder(ctx context.Context, orderID, confirmationNumber string) error

	// DeleteOrder discards an order and its lines during rollback
	DeleteOrder(ctx context.Context, orderID string) error

	// GetOrder retrieves an order with its lines, nil when absent
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	ListOrdersByRegion(ctx context.Context, region string) ([]domain.Order, error)
}

type ProductRepository interface {
	// GetProduct retrieves a product by ID, nil when absent
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

// InventoryLedger owns the per-product stock counters. Reserve is the only
// authoritative mutation; CheckAvailable is an advisory read.
type InventoryLedger interface {
	// CheckAvailable reports whether quantity appears to be in stock.
	// Non-authoritative: used for fast-path bulk rejection only.
	CheckAvailable(ctx context.Context, productID string, quantity int) (bool, error)

	// Reserve decrements stock by quantity only if current stock >= quantity,
	// as one atomic operation. Returns *domain.InsufficientStockError or
	// *domain.ProductNotFoundError on rejection.
	Reserve(ctx context.Context, productID string, quantity int) error

	// Release restores previously reserved stock (rollback)
	Release(ctx context.Context, productID string, quantity int) error
}

type PricingConfigRepository interface {
	// GetRegionConfig resolves the VAT configuration for a region, nil when absent
	GetRegionConfig(ctx context.Context, region string) (*domain.RegionPricingConfig, error)
}
