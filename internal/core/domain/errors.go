package domain

import (
	"errors"
	"fmt"
)

// Machine-readable error kinds, used in bulk results and response mapping.
const (
	KindProductNotFound      = "PRODUCT_NOT_FOUND"
	KindRegionMismatch       = "REGION_MISMATCH"
	KindInsufficientStock    = "INSUFFICIENT_STOCK"
	KindPricingConfigMissing = "PRICING_CONFIG_MISSING"
	KindInvalidPricingInput  = "INVALID_PRICING_INPUT"
	KindConfirmationFailed   = "CONFIRMATION_FAILED"
	KindInvalidOrderShape    = "INVALID_ORDER_SHAPE"
	KindInternal             = "INTERNAL"
)

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

type RegionMismatchError struct {
	ProductID     string
	ProductRegion string
	OrderRegion   string
}

func (e *RegionMismatchError) Error() string {
	return fmt.Sprintf("product %s belongs to region %s, order region is %s",
		e.ProductID, e.ProductRegion, e.OrderRegion)
}

type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

type PricingConfigMissingError struct {
	Region string
}

func (e *PricingConfigMissingError) Error() string {
	return fmt.Sprintf("pricing configuration not found for region: %s", e.Region)
}

type InvalidPricingInputError struct {
	Reason string
}

func (e *InvalidPricingInputError) Error() string {
	return fmt.Sprintf("invalid pricing input: %s", e.Reason)
}

type ConfirmationFailedError struct {
	OrderID string
	Err     error
}

func (e *ConfirmationFailedError) Error() string {
	return fmt.Sprintf("confirmation failed for order %s: %v", e.OrderID, e.Err)
}

func (e *ConfirmationFailedError) Unwrap() error { return e.Err }

type InvalidOrderShapeError struct {
	Reason string
}

func (e *InvalidOrderShapeError) Error() string {
	return fmt.Sprintf("invalid order shape: %s", e.Reason)
}

// ErrorKind classifies err into one of the Kind* constants. Unrecognized
// errors map to KindInternal.
func ErrorKind(err error) string {
	var (
		notFound      *ProductNotFoundError
		mismatch      *RegionMismatchError
		insufficient  *InsufficientStockError
		configMissing *PricingConfigMissingError
		badPricing    *InvalidPricingInputError
		confirmation  *ConfirmationFailedError
		badShape      *InvalidOrderShapeError
	)
	switch {
	case errors.As(err, &notFound):
		return KindProductNotFound
	case errors.As(err, &mismatch):
		return KindRegionMismatch
	case errors.As(err, &insufficient):
		return KindInsufficientStock
	case errors.As(err, &configMissing):
		return KindPricingConfigMissing
	case errors.As(err, &badPricing):
		return KindInvalidPricingInput
	case errors.As(err, &confirmation):
		return KindConfirmationFailed
	case errors.As(err, &badShape):
		return KindInvalidOrderShape
	default:
		return KindInternal
	}
}
