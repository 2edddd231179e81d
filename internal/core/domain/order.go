package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusConfirmed OrderStatus = "confirmed"
)

type Order struct {
	ID                 string
	CustomerID         string
	Region             string
	Status             OrderStatus
	TotalPrice         decimal.Decimal
	ConfirmationNumber string
	ContactName        string
	PhoneNumber        string
	DeliveryAddress    string
	Lines              []OrderLine
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderLine snapshots the pricing that applied when the order was placed.
// UnitPrice and VATPercentage are copies, not live product/config values.
type OrderLine struct {
	ID            string
	OrderID       string
	ProductID     string
	Quantity      int
	UnitPrice     decimal.Decimal
	Region        string
	VATPercentage decimal.Decimal
	VATAmount     decimal.Decimal
	FinalPrice    decimal.Decimal
	CreatedAt     time.Time
}

// LineRequest is a requested (product, quantity) pair before validation.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// OrderDraft is one submitted order before it has been priced or persisted.
type OrderDraft struct {
	ContactName     string
	PhoneNumber     string
	DeliveryAddress string
	Items           []LineRequest
}

// BulkOrderResult records the outcome of one sub-order within a bulk request.
// ErrorKind is empty on success and one of the Kind* constants on failure.
type BulkOrderResult struct {
	Index     int
	Success   bool
	Order     *Order
	ErrorKind string
	Message   string
}

type BulkOrderSummary struct {
	TotalOrders      int
	SuccessfulOrders int
	FailedOrders     int
	Results          []BulkOrderResult
}
