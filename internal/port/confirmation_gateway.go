package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// ConfirmationGateway submits an order total to the external confirmation
// authority. Any non-success response, including a blank confirmation
// number, is a hard failure; the caller rolls the whole order back.
type ConfirmationGateway interface {
	Confirm(ctx context.Context, orderID string, totalPrice decimal.Decimal) (string, error)
}
