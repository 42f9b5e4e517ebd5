package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/furniture-market/internal/domain/order"
	"github.com/google/uuid"
)

type PostgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// Create writes the order and its items in one transaction.
func (r *PostgresOrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, subtotal, shipping, total, buyer_city, shipping_method, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.UserID, o.Subtotal, o.Shipping, o.Total, o.BuyerCity, string(o.ShippingMethod), string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, quantity, price) VALUES ($1, $2, $3, $4, $5)`,
			o.ID, i, item.ProductID, item.Quantity, item.Price,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgresOrderRepository) Get(ctx context.Context, orderID string) (*order.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrOrderNotFound
	}

	var (
		o      order.Order
		method string
		status string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, subtotal, shipping, total, buyer_city, shipping_method, status, created_at
		 FROM orders WHERE id = $1`, orderID,
	).Scan(&o.ID, &o.UserID, &o.Subtotal, &o.Shipping, &o.Total, &o.BuyerCity, &method, &status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", orderID, err)
	}
	o.ShippingMethod = order.ShippingMethod(method)
	o.Status = order.Status(status)

	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items %s: %w", orderID, err)
	}
	defer rows.Close()

	o.Items = []order.OrderItem{}
	for rows.Next() {
		var item order.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items %s: %w", orderID, err)
	}
	return &o, nil
}
