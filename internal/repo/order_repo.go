package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/MorseWayne/storefront/internal/domain"
)

const orderSelect = `SELECT id, user_id, order_number, total_amount, status, shipping_address,
	payment_method, payment_status, notes, created_at, updated_at FROM orders`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var address []byte
	if err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.TotalAmount, &o.Status, &address,
		&o.PaymentMethod, &o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address of order %s: %w", o.OrderNumber, err)
	}
	return &o, nil
}

// ListOrders 用户的订单及明细，最近的在前
func (d *Driver) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if err := d.authorize(ctx, userID, "list orders"); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, orderSelect+` WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	orders := []domain.Order{}
	index := make(map[int64]int)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		index[o.ID] = len(orders)
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]any, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	itemRows, err := d.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, total_price, product_snapshot
		FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY id ASC`, ids...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it domain.OrderItem
		var snapshot []byte
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &snapshot); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if err := decodeJSON(snapshot, &it.ProductSnapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot of order item %d: %w", it.ID, err)
		}
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return orders, itemRows.Err()
}

// InsertOrder 在一个事务中写入订单头和明细
func (d *Driver) InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := d.authorize(ctx, order.UserID, "create order"); err != nil {
		return nil, err
	}
	address, err := jsonColumn(order.ShippingAddress)
	if err != nil {
		return nil, err
	}

	saved := *order
	saved.Items = make([]domain.OrderItem, 0, len(order.Items))
	err = d.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO orders (user_id, order_number, total_amount, status, shipping_address,
				payment_method, payment_status, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.UserID, order.OrderNumber, order.TotalAmount, string(order.Status), address,
			order.PaymentMethod, string(order.PaymentStatus), order.Notes, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if saved.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("order id: %w", err)
		}

		for _, it := range order.Items {
			snapshot, err := jsonColumn(it.ProductSnapshot)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price, product_snapshot)
				VALUES (?, ?, ?, ?, ?, ?)`,
				saved.ID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice, snapshot)
			if err != nil {
				return fmt.Errorf("insert order item for product %d: %w", it.ProductID, err)
			}
			it.OrderID = saved.ID
			if it.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("order item id: %w", err)
			}
			saved.Items = append(saved.Items, it)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
