package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/rl1809/order-engine/internal/core/domain"
	"github.com/rl1809/order-engine/pkg/metrics"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memStore backs every repository port with mutex-guarded maps. Reserve is
// a conditional decrement under the lock, mirroring the SQL adapter's
// conditional update.
type memStore struct {
	mu           sync.Mutex
	products     map[string]*domain.Product
	configs      map[string]decimal.Decimal
	orders       map[string]*domain.Order
	productReads int
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[string]*domain.Product),
		configs:  make(map[string]decimal.Decimal),
		orders:   make(map[string]*domain.Order),
	}
}

func (m *memStore) addProduct(id, region, currency, price string, stock int) {
	m.products[id] = &domain.Product{
		ID: id, Name: "product " + id, Region: region, Currency: currency,
		Price: dec(price), StockQty: stock,
	}
}

func (m *memStore) stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].StockQty
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productReads++
	product, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	snapshot := *product
	return &snapshot, nil
}

func (m *memStore) CheckAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[productID]
	if !ok {
		return false, &domain.ProductNotFoundError{ProductID: productID}
	}
	return product.StockQty >= quantity, nil
}

func (m *memStore) Reserve(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[productID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	if product.StockQty < quantity {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Available: product.StockQty,
			Requested: quantity,
		}
	}
	product.StockQty -= quantity
	return nil
}

func (m *memStore) Release(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[productID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	product.StockQty += quantity
	return nil
}

func (m *memStore) GetRegionConfig(ctx context.Context, region string) (*domain.RegionPricingConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vat, ok := m.configs[strings.ToUpper(region)]
	if !ok {
		return nil, nil
	}
	return &domain.RegionPricingConfig{Region: region, VATPercentage: vat}, nil
}

func (m *memStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *order
	stored.Lines = append([]domain.OrderLine(nil), order.Lines...)
	m.orders[order.ID] = &stored
	return nil
}

func (m *memStore) ConfirmOrder(ctx context.Context, orderID, confirmationNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	order.Status = domain.OrderStatusConfirmed
	order.ConfirmationNumber = confirmationNumber
	return nil
}

func (m *memStore) DeleteOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, orderID)
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	snapshot := *order
	return &snapshot, nil
}

func (m *memStore) ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []domain.Order
	for _, order := range m.orders {
		if order.CustomerID == customerID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (m *memStore) ListOrdersByRegion(ctx context.Context, region string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []domain.Order
	for _, order := range m.orders {
		if strings.EqualFold(order.Region, region) {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

type mockGateway struct {
	calls atomic.Int32
	fn    func(orderID string, totalPrice decimal.Decimal) (string, error)
}

func (g *mockGateway) Confirm(ctx context.Context, orderID string, totalPrice decimal.Decimal) (string, error) {
	n := g.calls.Add(1)
	if g.fn != nil {
		return g.fn(orderID, totalPrice)
	}
	return fmt.Sprintf("SAP%08d", n), nil
}

type mockCache struct {
	mu            sync.Mutex
	entries       map[string][]byte
	invalidations map[domain.CacheRegion]int
}

func newMockCache() *mockCache {
	return &mockCache{
		entries:       make(map[string][]byte),
		invalidations: make(map[domain.CacheRegion]int),
	}
}

func (c *mockCache) Invalidate(ctx context.Context, regions ...domain.CacheRegion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, region := range regions {
		c.invalidations[region]++
		for key := range c.entries {
			if strings.HasPrefix(key, string(region)+"|") {
				delete(c.entries, key)
			}
		}
	}
	return nil
}

func (c *mockCache) Get(ctx context.Context, region domain.CacheRegion, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[string(region)+"|"+key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *mockCache) Put(ctx context.Context, region domain.CacheRegion, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[string(region)+"|"+key] = data
	return nil
}

func (c *mockCache) invalidated(region domain.CacheRegion) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations[region]
}

type OrderServiceSuite struct {
	suite.Suite
	store   *memStore
	gateway *mockGateway
	cache   *mockCache
	svc     *OrderService
}

func (s *OrderServiceSuite) SetupTest() {
	s.store = newMemStore()
	s.gateway = &mockGateway{}
	s.cache = newMockCache()
	s.svc = NewOrderService(
		s.store, s.store, s.store, s.store,
		s.gateway, s.cache,
		domain.DefaultCurrencyTable(),
		metrics.New(prometheus.NewRegistry()),
		zap.NewNop(),
	)

	s.store.addProduct("prod-a", "US", "USD", "100.00", 10)
	s.store.configs["US"] = dec("8.25")
}

func (s *OrderServiceSuite) draft(items ...domain.LineRequest) domain.OrderDraft {
	return domain.OrderDraft{
		ContactName:     "Jordan Reyes",
		PhoneNumber:     "+1-555-0100",
		DeliveryAddress: "1 Warehouse Way",
		Items:           items,
	}
}

func (s *OrderServiceSuite) TestCreateOrder_Success() {
	order, err := s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 2}))
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusConfirmed, order.Status)
	s.NotEmpty(order.ConfirmationNumber)
	s.True(dec("216.50").Equal(order.TotalPrice), "total %s", order.TotalPrice)

	s.Require().Len(order.Lines, 1)
	line := order.Lines[0]
	s.True(dec("100.00").Equal(line.UnitPrice))
	s.True(dec("8.25").Equal(line.VATPercentage))
	s.True(dec("8.25").Equal(line.VATAmount))
	s.True(dec("216.50").Equal(line.FinalPrice))

	s.Equal(8, s.store.stock("prod-a"))

	stored, err := s.svc.GetOrder(context.Background(), order.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal(domain.OrderStatusConfirmed, stored.Status)

	s.Equal(1, s.cache.invalidated(domain.CacheRegionProducts))
	s.Equal(1, s.cache.invalidated(domain.CacheRegionProductPrice))
}

func (s *OrderServiceSuite) TestCreateOrder_RegionMatchIsCaseInsensitive() {
	s.store.addProduct("prod-lower", "us", "USD", "10.00", 5)

	order, err := s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "prod-lower", Quantity: 1}))
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusConfirmed, order.Status)
}

func (s *OrderServiceSuite) TestCreateOrder_ProductNotFound() {
	_, err := s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "missing", Quantity: 1}))

	var notFound *domain.ProductNotFoundError
	s.Require().ErrorAs(err, &notFound)
	s.Equal("missing", notFound.ProductID)
	s.Equal(0, s.store.orderCount())
}

func (s *OrderServiceSuite) TestCreateOrder_RegionMismatch() {
	s.store.addProduct("prod-eu", "EU", "EUR", "50.00", 5)

	_, err := s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "prod-eu", Quantity: 1}))

	var mismatch *domain.RegionMismatchError
	s.Require().ErrorAs(err, &mismatch)
	s.Equal("EU", mismatch.ProductRegion)
	s.Equal("US", mismatch.OrderRegion)
	s.Equal(5, s.store.stock("prod-eu"))
}

func (s *OrderServiceSuite) TestCreateOrder_PricingConfigMissing() {
	s.store.addProduct("prod-apac", "APAC", "SGD", "30.00", 5)

	_, err := s.svc.CreateOrder(context.Background(), "cust-1", "APAC",
		s.draft(domain.LineRequest{ProductID: "prod-apac", Quantity: 1}))

	var missing *domain.PricingConfigMissingError
	s.Require().ErrorAs(err, &missing)
	s.Equal("APAC", missing.Region)
}

func (s *OrderServiceSuite) TestCreateOrder_InvalidShape() {
	var badShape *domain.InvalidOrderShapeError

	_, err := s.svc.CreateOrder(context.Background(), "cust-1", "US", s.draft())
	s.Require().ErrorAs(err, &badShape)

	_, err = s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 0}))
	s.Require().ErrorAs(err, &badShape)

	_, err = s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "", Quantity: 1}))
	s.Require().ErrorAs(err, &badShape)
}

func (s *OrderServiceSuite) TestCreateOrder_TotalEqualsSumOfLines() {
	s.store.addProduct("prod-b", "US", "USD", "19.99", 50)
	s.store.addProduct("prod-c", "US", "USD", "0.57", 50)

	order, err := s.svc.CreateOrder(context.Background(), "cust-1", "US", s.draft(
		domain.LineRequest{ProductID: "prod-a", Quantity: 2},
		domain.LineRequest{ProductID: "prod-b", Quantity: 3},
		domain.LineRequest{ProductID: "prod-c", Quantity: 7},
	))
	s.Require().NoError(err)

	sum := decimal.Zero
	for _, line := range order.Lines {
		sum = sum.Add(line.FinalPrice)
	}
	s.True(sum.Equal(order.TotalPrice), "sum %s, total %s", sum, order.TotalPrice)
}

func (s *OrderServiceSuite) TestCreateOrder_PartialReservationRollsBack() {
	s.store.addProduct("prod-scarce", "US", "USD", "5.00", 1)

	_, err := s.svc.CreateOrder(context.Background(), "cust-1", "US", s.draft(
		domain.LineRequest{ProductID: "prod-a", Quantity: 3},
		domain.LineRequest{ProductID: "prod-scarce", Quantity: 2},
	))

	var insufficient *domain.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)
	s.Equal("prod-scarce", insufficient.ProductID)
	s.Equal(1, insufficient.Available)
	s.Equal(2, insufficient.Requested)

	// the first line's reservation was released and the order discarded
	s.Equal(10, s.store.stock("prod-a"))
	s.Equal(1, s.store.stock("prod-scarce"))
	s.Equal(0, s.store.orderCount())

	// stock was durably touched before the failure, so caches were invalidated
	s.Equal(1, s.cache.invalidated(domain.CacheRegionProducts))
}

func (s *OrderServiceSuite) TestCreateOrder_ConfirmationFailureRollsBack() {
	s.gateway.fn = func(string, decimal.Decimal) (string, error) {
		return "", errors.New("gateway unavailable")
	}

	_, err := s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 2}))

	var failed *domain.ConfirmationFailedError
	s.Require().ErrorAs(err, &failed)

	s.Equal(10, s.store.stock("prod-a"))
	s.Equal(0, s.store.orderCount())
	s.Equal(1, s.cache.invalidated(domain.CacheRegionProducts))
}

func (s *OrderServiceSuite) TestCreateOrder_BlankConfirmationNumberIsFailure() {
	s.gateway.fn = func(string, decimal.Decimal) (string, error) {
		return "   ", nil
	}

	_, err := s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 1}))

	var failed *domain.ConfirmationFailedError
	s.Require().ErrorAs(err, &failed)
	s.Equal(10, s.store.stock("prod-a"))
}

func (s *OrderServiceSuite) TestCreateOrder_ConcurrentOverlappingOrders() {
	// stock 10, two concurrent orders for 6: exactly one can be granted
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.CreateOrder(context.Background(), fmt.Sprintf("cust-%d", i), "US",
				s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 6}))
		}(i)
	}
	wg.Wait()

	var successes, failures int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		failures++
		var insufficient *domain.InsufficientStockError
		s.Require().ErrorAs(err, &insufficient)
		s.Equal(6, insufficient.Requested)
	}
	s.Equal(1, successes)
	s.Equal(1, failures)
	s.Equal(4, s.store.stock("prod-a"))
}

func (s *OrderServiceSuite) TestCreateOrder_ConcurrentNeverOversells() {
	s.store.addProduct("prod-hot", "US", "USD", "9.99", 20)

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.svc.CreateOrder(context.Background(), fmt.Sprintf("cust-%d", i), "US",
				s.draft(domain.LineRequest{ProductID: "prod-hot", Quantity: 1}))
			if err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(20), successCount.Load())
	s.Equal(0, s.store.stock("prod-hot"))
}

func (s *OrderServiceSuite) TestBulk_PartialFailure() {
	s.store.addProduct("prod-b", "US", "USD", "5.00", 5)

	summary, err := s.svc.CreateBulkOrders(context.Background(), "cust-1", "US", []domain.OrderDraft{
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 3}),
		s.draft(domain.LineRequest{ProductID: "prod-b", Quantity: 50}),
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 2}),
	})
	s.Require().NoError(err)

	s.Equal(3, summary.TotalOrders)
	s.Equal(2, summary.SuccessfulOrders)
	s.Equal(1, summary.FailedOrders)
	s.Require().Len(summary.Results, 3)

	s.True(summary.Results[0].Success)
	s.Equal(0, summary.Results[0].Index)
	s.False(summary.Results[1].Success)
	s.Equal(domain.KindInsufficientStock, summary.Results[1].ErrorKind)
	s.True(summary.Results[2].Success)
	s.Equal(2, summary.Results[2].Index)

	s.Equal(5, s.store.stock("prod-a"))
	s.Equal(5, s.store.stock("prod-b"))
}

func (s *OrderServiceSuite) TestBulk_SequentialConsumption() {
	// Two sub-orders for 6 against stock 10: the aggregate (12) exceeds
	// stock, but the first sub-order must still be granted.
	summary, err := s.svc.CreateBulkOrders(context.Background(), "cust-1", "US", []domain.OrderDraft{
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 6}),
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 6}),
	})
	s.Require().NoError(err)

	s.Equal(1, summary.SuccessfulOrders)
	s.Equal(1, summary.FailedOrders)
	s.True(summary.Results[0].Success)
	s.False(summary.Results[1].Success)
	s.Equal(domain.KindInsufficientStock, summary.Results[1].ErrorKind)
	s.Equal(4, s.store.stock("prod-a"))
}

func (s *OrderServiceSuite) TestBulk_UnknownProductRejectedEarly() {
	summary, err := s.svc.CreateBulkOrders(context.Background(), "cust-1", "US", []domain.OrderDraft{
		s.draft(domain.LineRequest{ProductID: "ghost", Quantity: 1}),
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 1}),
	})
	s.Require().NoError(err)

	s.False(summary.Results[0].Success)
	s.Equal(domain.KindProductNotFound, summary.Results[0].ErrorKind)
	s.True(summary.Results[1].Success)
}

func (s *OrderServiceSuite) TestBulk_SubOrderShapeError() {
	summary, err := s.svc.CreateBulkOrders(context.Background(), "cust-1", "US", []domain.OrderDraft{
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 0}),
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 1}),
	})
	s.Require().NoError(err)

	s.False(summary.Results[0].Success)
	s.Equal(domain.KindInvalidOrderShape, summary.Results[0].ErrorKind)
	s.True(summary.Results[1].Success)
}

func (s *OrderServiceSuite) TestBulk_EmptyRequest() {
	_, err := s.svc.CreateBulkOrders(context.Background(), "cust-1", "US", nil)
	var badShape *domain.InvalidOrderShapeError
	s.Require().ErrorAs(err, &badShape)
}

func (s *OrderServiceSuite) TestOrderReads_ByCustomerAndRegion() {
	_, err := s.svc.CreateOrder(context.Background(), "cust-reads", "US",
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 1}))
	s.Require().NoError(err)
	_, err = s.svc.CreateOrder(context.Background(), "cust-other", "US",
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 1}))
	s.Require().NoError(err)

	byCustomer, err := s.svc.OrdersByCustomer(context.Background(), "cust-reads")
	s.Require().NoError(err)
	s.Require().Len(byCustomer, 1)
	s.Equal("cust-reads", byCustomer[0].CustomerID)

	byRegion, err := s.svc.OrdersByRegion(context.Background(), "us")
	s.Require().NoError(err)
	s.Len(byRegion, 2)

	missing, err := s.svc.GetOrder(context.Background(), "no-such-order")
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *OrderServiceSuite) TestQuotePrice_ReadThrough() {
	quote, err := s.svc.QuotePrice(context.Background(), "prod-a")
	s.Require().NoError(err)
	s.True(dec("100.00").Equal(quote.BasePrice))
	s.True(dec("8.25").Equal(quote.VATAmount))
	s.True(dec("108.25").Equal(quote.FinalPrice))

	readsAfterMiss := s.store.productReads

	// second call is served from the cache
	cached, err := s.svc.QuotePrice(context.Background(), "prod-a")
	s.Require().NoError(err)
	s.True(quote.FinalPrice.Equal(cached.FinalPrice))
	s.Equal(readsAfterMiss, s.store.productReads)

	// a confirmed order invalidates the price view; the next quote recomputes
	_, err = s.svc.CreateOrder(context.Background(), "cust-1", "US",
		s.draft(domain.LineRequest{ProductID: "prod-a", Quantity: 1}))
	s.Require().NoError(err)

	_, err = s.svc.QuotePrice(context.Background(), "prod-a")
	s.Require().NoError(err)
	s.Greater(s.store.productReads, readsAfterMiss)
}

func (s *OrderServiceSuite) TestQuotePrice_CurrencyInvalidForRegion() {
	s.store.addProduct("prod-bad", "US", "EUR", "10.00", 5)

	_, err := s.svc.QuotePrice(context.Background(), "prod-bad")
	var invalid *domain.InvalidPricingInputError
	s.Require().ErrorAs(err, &invalid)
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}
