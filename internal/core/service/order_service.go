package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-engine/internal/core/domain"
	"github.com/rl1809/order-engine/internal/core/pricing"
	"github.com/rl1809/order-engine/internal/port"
	"github.com/rl1809/order-engine/pkg/metrics"
)

// OrderService runs the order-fulfillment pipeline: validate line items,
// price them for the order's region, persist the order, reserve stock,
// obtain an external confirmation and invalidate dependent caches. Each
// order is all-or-nothing; a failure at any step rolls back every durable
// effect of that order. Correctness under concurrent submissions rests on
// the ledger's atomic conditional decrement, not on any locking here.
type OrderService struct {
	orders     port.OrderRepository
	products   port.ProductRepository
	ledger     port.InventoryLedger
	configs    port.PricingConfigRepository
	gateway    port.ConfirmationGateway
	cache      port.CacheRepository
	currencies domain.CurrencyTable
	metrics    *metrics.OrderMetrics
	logger     *zap.Logger
}

func NewOrderService(
	orders port.OrderRepository,
	products port.ProductRepository,
	ledger port.InventoryLedger,
	configs port.PricingConfigRepository,
	gateway port.ConfirmationGateway,
	cache port.CacheRepository,
	currencies domain.CurrencyTable,
	m *metrics.OrderMetrics,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:     orders,
		products:   products,
		ledger:     ledger,
		configs:    configs,
		gateway:    gateway,
		cache:      cache,
		currencies: currencies,
		metrics:    m,
		logger:     logger,
	}
}

// CreateOrder runs one order through the full pipeline and returns it in
// confirmed state, or an error after rolling back every durable effect.
func (s *OrderService) CreateOrder(ctx context.Context, customerID, region string, draft domain.OrderDraft) (*domain.Order, error) {
	start := time.Now()
	order, err := s.createOrder(ctx, customerID, region, draft)
	s.metrics.OrderDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.metrics.OrdersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	s.metrics.OrdersTotal.WithLabelValues("confirmed").Inc()
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, customerID, region string, draft domain.OrderDraft) (*domain.Order, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	products := make([]*domain.Product, len(draft.Items))
	for i, item := range draft.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("resolve product %s: %w", item.ProductID, err)
		}
		if product == nil {
			return nil, &domain.ProductNotFoundError{ProductID: item.ProductID}
		}
		if !strings.EqualFold(product.Region, region) {
			return nil, &domain.RegionMismatchError{
				ProductID:     product.ID,
				ProductRegion: product.Region,
				OrderRegion:   region,
			}
		}
		products[i] = product
	}

	// VAT rate comes from the order's region; products were just checked
	// to belong to it.
	cfg, err := s.configs.GetRegionConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("resolve pricing config for %s: %w", region, err)
	}
	if cfg == nil {
		return nil, &domain.PricingConfigMissingError{Region: region}
	}

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		Region:          region,
		Status:          domain.OrderStatusCreated,
		ContactName:     draft.ContactName,
		PhoneNumber:     draft.PhoneNumber,
		DeliveryAddress: draft.DeliveryAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	total := decimal.Zero
	for i, item := range draft.Items {
		vatAmount, unitFinal, err := pricing.Compute(products[i].Price, cfg.VATPercentage)
		if err != nil {
			return nil, err
		}
		lineTotal := pricing.LineTotal(unitFinal, item.Quantity)
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     products[i].Price,
			Region:        region,
			VATPercentage: cfg.VATPercentage,
			VATAmount:     vatAmount,
			FinalPrice:    lineTotal,
			CreatedAt:     now,
		})
		total = total.Add(lineTotal)
	}
	order.TotalPrice = total

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	// Reservations are all-or-nothing across lines: the first rejection
	// releases everything granted so far and discards the order.
	reserved := make([]domain.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		if err := s.ledger.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			var insufficient *domain.InsufficientStockError
			if errors.As(err, &insufficient) {
				s.metrics.ReservationRejections.Inc()
			}
			s.rollback(ctx, order, reserved)
			return nil, err
		}
		reserved = append(reserved, line)
	}

	token, err := s.gateway.Confirm(ctx, order.ID, order.TotalPrice)
	if err == nil && strings.TrimSpace(token) == "" {
		err = errors.New("gateway returned a blank confirmation number")
	}
	if err != nil {
		s.rollback(ctx, order, reserved)
		return nil, &domain.ConfirmationFailedError{OrderID: order.ID, Err: err}
	}

	if err := s.orders.ConfirmOrder(ctx, order.ID, token); err != nil {
		s.rollback(ctx, order, reserved)
		return nil, fmt.Errorf("confirm order %s: %w", order.ID, err)
	}
	order.Status = domain.OrderStatusConfirmed
	order.ConfirmationNumber = token
	order.UpdatedAt = time.Now()

	s.invalidateProductCaches(ctx)

	s.logger.Info("order confirmed",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customerID),
		zap.String("region", region),
		zap.Int("lines", len(order.Lines)),
		zap.String("total_price", order.TotalPrice.StringFixed(2)),
		zap.String("confirmation_number", token),
	)
	return order, nil
}

// CreateBulkOrders processes independent sub-orders sequentially, each in
// its own transaction. A sub-order's failure is recorded in its result and
// never aborts its siblings; the caller can tell exactly which of N orders
// went through when stock runs out partway.
func (s *OrderService) CreateBulkOrders(ctx context.Context, customerID, region string, drafts []domain.OrderDraft) (*domain.BulkOrderSummary, error) {
	if len(drafts) == 0 {
		return nil, &domain.InvalidOrderShapeError{Reason: "bulk request contains no orders"}
	}

	rejections := s.bulkFastPath(ctx, drafts)

	summary := &domain.BulkOrderSummary{
		TotalOrders: len(drafts),
		Results:     make([]domain.BulkOrderResult, 0, len(drafts)),
	}
	for i, draft := range drafts {
		result := domain.BulkOrderResult{Index: i}
		if preErr, rejected := rejections[i]; rejected {
			result.ErrorKind = domain.ErrorKind(preErr)
			result.Message = preErr.Error()
		} else if order, err := s.CreateOrder(ctx, customerID, region, draft); err != nil {
			result.ErrorKind = domain.ErrorKind(err)
			result.Message = err.Error()
		} else {
			result.Success = true
			result.Order = order
			result.Message = "order processed successfully"
		}
		if result.Success {
			summary.SuccessfulOrders++
		} else {
			summary.FailedOrders++
		}
		summary.Results = append(summary.Results, result)
	}

	s.logger.Info("bulk orders processed",
		zap.String("customer_id", customerID),
		zap.String("region", region),
		zap.Int("total", summary.TotalOrders),
		zap.Int("successful", summary.SuccessfulOrders),
		zap.Int("failed", summary.FailedOrders),
	)
	return summary, nil
}

// bulkFastPath checks availability once per distinct product using the
// batch-wide aggregate and pre-rejects only sub-orders that cannot possibly
// succeed: a missing product, or a sub-order whose own quantity already
// exceeds the observed stock. An aggregate miss alone never rejects a
// sub-order that sequential processing could still satisfy. Advisory only;
// the reservation inside the pipeline remains the authoritative gate.
func (s *OrderService) bulkFastPath(ctx context.Context, drafts []domain.OrderDraft) map[int]error {
	aggregate := make(map[string]int)
	perDraft := make([]map[string]int, len(drafts))
	for i, draft := range drafts {
		perDraft[i] = make(map[string]int)
		for _, item := range draft.Items {
			if item.ProductID == "" || item.Quantity < 1 {
				continue // shape errors surface in the pipeline
			}
			aggregate[item.ProductID] += item.Quantity
			perDraft[i][item.ProductID] += item.Quantity
		}
	}

	suspect := make(map[string]bool)
	for productID, qty := range aggregate {
		ok, err := s.ledger.CheckAvailable(ctx, productID, qty)
		if err != nil || !ok {
			suspect[productID] = true
		}
	}
	if len(suspect) == 0 {
		return nil
	}

	type snapshot struct {
		product *domain.Product
		err     error
	}
	snapshots := make(map[string]snapshot, len(suspect))
	for productID := range suspect {
		product, err := s.products.GetProduct(ctx, productID)
		snapshots[productID] = snapshot{product: product, err: err}
	}

	rejections := make(map[int]error)
	for i := range drafts {
		for productID, qty := range perDraft[i] {
			snap, checked := snapshots[productID]
			if !checked || snap.err != nil {
				continue
			}
			if snap.product == nil {
				rejections[i] = &domain.ProductNotFoundError{ProductID: productID}
				break
			}
			if snap.product.StockQty < qty {
				rejections[i] = &domain.InsufficientStockError{
					ProductID: productID,
					Available: snap.product.StockQty,
					Requested: qty,
				}
				break
			}
		}
	}
	return rejections
}

// QuotePrice returns the VAT-inclusive price breakdown for one product,
// served through the productPrice cache region.
func (s *OrderService) QuotePrice(ctx context.Context, productID string) (*domain.PriceQuote, error) {
	var cached domain.PriceQuote
	hit, err := s.cache.Get(ctx, domain.CacheRegionProductPrice, productID, &cached)
	if err != nil {
		s.logger.Warn("price cache read failed", zap.String("product_id", productID), zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("resolve product %s: %w", productID, err)
	}
	if product == nil {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}
	if !s.currencies.Valid(product.Region, product.Currency) {
		return nil, &domain.InvalidPricingInputError{
			Reason: fmt.Sprintf("currency %s is not valid for region %s", product.Currency, product.Region),
		}
	}

	cfg, err := s.configs.GetRegionConfig(ctx, product.Region)
	if err != nil {
		return nil, fmt.Errorf("resolve pricing config for %s: %w", product.Region, err)
	}
	if cfg == nil {
		return nil, &domain.PricingConfigMissingError{Region: product.Region}
	}

	vatAmount, finalPrice, err := pricing.Compute(product.Price, cfg.VATPercentage)
	if err != nil {
		return nil, err
	}

	quote := &domain.PriceQuote{
		ProductID:     product.ID,
		ProductName:   product.Name,
		Region:        product.Region,
		Currency:      product.Currency,
		BasePrice:     product.Price,
		VATPercentage: cfg.VATPercentage,
		VATAmount:     vatAmount,
		FinalPrice:    finalPrice,
	}
	if err := s.cache.Put(ctx, domain.CacheRegionProductPrice, productID, quote); err != nil {
		s.logger.Warn("price cache write failed", zap.String("product_id", productID), zap.Error(err))
	}
	return quote, nil
}

// GetOrder returns an order with its lines, nil when absent.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.GetOrder(ctx, orderID)
}

func (s *OrderService) OrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.orders.ListOrdersByCustomer(ctx, customerID)
}

func (s *OrderService) OrdersByRegion(ctx context.Context, region string) ([]domain.Order, error) {
	return s.orders.ListOrdersByRegion(ctx, region)
}

// rollback releases committed reservations and discards the persisted order.
// Once any reservation went through, the durable stock changed and caches
// are stale regardless of how this order ends, so an invalidation is issued
// on that path too.
func (s *OrderService) rollback(ctx context.Context, order *domain.Order, reserved []domain.OrderLine) {
	for _, line := range reserved {
		if err := s.ledger.Release(ctx, line.ProductID, line.Quantity); err != nil {
			s.logger.Error("CRITICAL stock release failed during rollback",
				zap.String("order_id", order.ID),
				zap.String("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
	if err := s.orders.DeleteOrder(ctx, order.ID); err != nil {
		s.logger.Error("order discard failed during rollback",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
	if len(reserved) > 0 {
		s.invalidateProductCaches(ctx)
	}
}

func (s *OrderService) invalidateProductCaches(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, domain.ProductCacheRegions()...); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
		return
	}
	s.metrics.CacheInvalidations.Inc()
}

func validateDraft(draft domain.OrderDraft) error {
	if len(draft.Items) == 0 {
		return &domain.InvalidOrderShapeError{Reason: "order has no line items"}
	}
	for i, item := range draft.Items {
		if item.ProductID == "" {
			return &domain.InvalidOrderShapeError{Reason: fmt.Sprintf("line %d is missing a product", i)}
		}
		if item.Quantity < 1 {
			return &domain.InvalidOrderShapeError{Reason: fmt.Sprintf("line %d has quantity %d, minimum is 1", i, item.Quantity)}
		}
	}
	return nil
}
