package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-market-api/internal/models"
)

// OrderRepository handles persistence of orders and their frozen items.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists the order and all of its items in a single transaction, so
// an order can never be observed without its snapshots.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const orderQuery = `INSERT INTO orders (id, user_id, total_price, invoice_id, status, order_date)
        VALUES (:id, :user_id, :total_price, :invoice_id, :status, :order_date)`
	if _, err := tx.NamedExecContext(ctx, orderQuery, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	const itemQuery = `INSERT INTO order_items (order_id, course_id, course_name, price)
        VALUES (:order_id, :course_id, :course_name, :price)`
	for _, item := range items {
		if _, err := tx.NamedExecContext(ctx, itemQuery, item); err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}
	return nil
}

// FindByIDForUser returns the order only when it belongs to the user.
func (r *OrderRepository) FindByIDForUser(ctx context.Context, id, userID string) (*models.Order, error) {
	const query = `SELECT id, user_id, total_price, invoice_id, status, order_date FROM orders WHERE id = $1 AND user_id = $2`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id, userID); err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByInvoiceID returns the order matching an invoice id. Invoice lookups
// are anonymous-accessible, so no user filter applies.
func (r *OrderRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Order, error) {
	const query = `SELECT id, user_id, total_price, invoice_id, status, order_date FROM orders WHERE invoice_id = $1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, invoiceID); err != nil {
		return nil, err
	}
	return &order, nil
}

// ItemsByOrder returns the frozen items of an order.
func (r *OrderRepository) ItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	const query = `SELECT order_id, course_id, course_name, price FROM order_items WHERE order_id = $1 ORDER BY course_name`
	var items []models.OrderItem
	if err := r.db.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// ListByUser returns all orders of a user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	const query = `SELECT id, user_id, total_price, invoice_id, status, order_date FROM orders WHERE user_id = $1 ORDER BY order_date DESC`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	return orders, nil
}

// Delete removes the order and its items for the owning user, reporting
// whether the order row existed. Items go first to satisfy the foreign key;
// the item delete is owner-scoped and the transaction is rolled back when the
// order row does not match, so a miss never strips items off a surviving
// order.
func (r *OrderRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const itemsQuery = `DELETE FROM order_items
        WHERE order_id IN (SELECT id FROM orders WHERE id = $1 AND user_id = $2)`
	if _, err := tx.ExecContext(ctx, itemsQuery, id, userID); err != nil {
		return false, fmt.Errorf("delete order items: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete order result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete tx: %w", err)
	}
	return true, nil
}
