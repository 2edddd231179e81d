package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/order-engine/internal/core/domain"
)

// MySQLAdapter is the durable store: orders, order lines, products (the
// stock ledger) and region pricing configuration.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, region, status, total_price, confirmation_number,
			contact_name, phone_number, delivery_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
		order.ID, order.CustomerID, order.Region, order.Status, order.TotalPrice,
		order.ContactName, order.PhoneNumber, order.DeliveryAddress,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price,
				region, vat_percentage, vat_amount, final_price, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice,
			line.Region, line.VATPercentage, line.VATAmount, line.FinalPrice,
			line.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) ConfirmOrder(ctx context.Context, orderID, confirmationNumber string) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, confirmation_number = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`,
		domain.OrderStatusConfirmed, confirmationNumber, orderID, domain.OrderStatusCreated,
	)
	if err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("order %s not found or not in created state", orderID)
	}
	return nil
}

func (m *MySQLAdapter) DeleteOrder(ctx context.Context, orderID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		order        domain.Order
		confirmation sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, customer_id, region, status, total_price, confirmation_number,
			contact_name, phone_number, delivery_address, created_at, updated_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&order.ID, &order.CustomerID, &order.Region, &order.Status, &order.TotalPrice,
		&confirmation, &order.ContactName, &order.PhoneNumber, &order.DeliveryAddress,
		&order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	order.ConfirmationNumber = confirmation.String

	lines, err := m.orderLines(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return &order, nil
}

func (m *MySQLAdapter) ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return m.listOrders(ctx, `customer_id = ?`, customerID)
}

func (m *MySQLAdapter) ListOrdersByRegion(ctx context.Context, region string) ([]domain.Order, error) {
	return m.listOrders(ctx, `UPPER(region) = UPPER(?)`, region)
}

func (m *MySQLAdapter) listOrders(ctx context.Context, where string, arg any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, customer_id, region, status, total_price, confirmation_number,
			contact_name, phone_number, delivery_address, created_at, updated_at
		FROM orders WHERE `+where+` ORDER BY created_at`, arg)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			order        domain.Order
			confirmation sql.NullString
		)
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Region, &order.Status,
			&order.TotalPrice, &confirmation, &order.ContactName, &order.PhoneNumber,
			&order.DeliveryAddress, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		order.ConfirmationNumber = confirmation.String
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		lines, err := m.orderLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func (m *MySQLAdapter) orderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, region,
			vat_percentage, vat_amount, final_price, created_at
		FROM order_items WHERE order_id = ? ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity,
			&line.UnitPrice, &line.Region, &line.VATPercentage, &line.VATAmount,
			&line.FinalPrice, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, region, currency, price, stock_qty, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&product.ID, &product.Name, &product.Region, &product.Currency,
		&product.Price, &product.StockQty, &product.CreatedAt, &product.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &product, nil
}

func (m *MySQLAdapter) CheckAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	var stock int
	err := m.db.QueryRowContext(ctx,
		`SELECT stock_qty FROM products WHERE id = ?`, productID,
	).Scan(&stock)

	if errors.Is(err, sql.ErrNoRows) {
		return false, &domain.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return false, fmt.Errorf("query stock: %w", err)
	}
	return stock >= quantity, nil
}

// Reserve is the single authoritative stock mutation: one conditional
// decrement, never a read-then-write pair. Concurrent orders on the same
// product serialize here and stock cannot go negative.
func (m *MySQLAdapter) Reserve(ctx context.Context, productID string, quantity int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = stock_qty - ?, updated_at = NOW()
		WHERE id = ? AND stock_qty >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var available int
		err := m.db.QueryRowContext(ctx,
			`SELECT stock_qty FROM products WHERE id = ?`, productID,
		).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ProductNotFoundError{ProductID: productID}
		}
		if err != nil {
			return fmt.Errorf("query stock after rejection: %w", err)
		}
		return &domain.InsufficientStockError{
			ProductID: productID,
			Available: available,
			Requested: quantity,
		}
	}
	return nil
}

func (m *MySQLAdapter) Release(ctx context.Context, productID string, quantity int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = stock_qty + ?, updated_at = NOW()
		WHERE id = ?`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func (m *MySQLAdapter) GetRegionConfig(ctx context.Context, region string) (*domain.RegionPricingConfig, error) {
	var cfg domain.RegionPricingConfig
	err := m.db.QueryRowContext(ctx, `
		SELECT region, vat_percentage, created_at, updated_at
		FROM region_pricing_config WHERE UPPER(region) = UPPER(?)`, region,
	).Scan(&cfg.Region, &cfg.VATPercentage, &cfg.CreatedAt, &cfg.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pricing config: %w", err)
	}
	return &cfg, nil
}
