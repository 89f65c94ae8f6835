package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/storefront/internal/domain"
)

const cartSelect = `SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at, ` +
	productColumns + `, ` + categoryJoinColumns + `
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	LEFT JOIN categories c ON c.id = p.category_id`

func scanCartItem(row rowScanner) (*domain.CartItem, error) {
	var item domain.CartItem
	var s productScan
	dest := []any{&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt}
	dest = append(dest, s.productDest()...)
	dest = append(dest, s.categoryDest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p, err := s.build()
	if err != nil {
		return nil, err
	}
	item.Product = p
	return &item, nil
}

func (d *Driver) getCartItem(ctx context.Context, q queryer, where string, args ...any) (*domain.CartItem, error) {
	item, err := scanCartItem(q.QueryRowContext(ctx, cartSelect+` WHERE `+where, args...))
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetCartItems 用户的购物车，附带商品快照，最近加入的在前
func (d *Driver) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	if err := d.authorize(ctx, userID, "get cart items"); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, cartSelect+` WHERE ci.user_id = ? ORDER BY ci.created_at DESC, ci.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpsertCartItem 以 (user_id, product_id) 为冲突键写入，已存在时覆盖数量
func (d *Driver) UpsertCartItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartItem, error) {
	if err := d.authorize(ctx, userID, "add to cart"); err != nil {
		return nil, err
	}
	var item *domain.CartItem
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, product_id, quantity) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
			userID, productID, quantity)
		if err != nil {
			if isMySQLError(err, errNoReferenced) {
				return domain.NewNotFound("product", productID)
			}
			return fmt.Errorf("upsert cart item: %w", err)
		}
		item, err = d.getCartItem(ctx, tx, `ci.user_id = ? AND ci.product_id = ?`, userID, productID)
		if err != nil {
			return fmt.Errorf("reload cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateCartItem 按 ID 修改数量，只作用于该用户自己的行
func (d *Driver) UpdateCartItem(ctx context.Context, userID string, itemID int64, quantity int) (*domain.CartItem, error) {
	if err := d.authorize(ctx, userID, "update cart item"); err != nil {
		return nil, err
	}
	res, err := d.db.ExecContext(ctx, `UPDATE cart_items SET quantity = ? WHERE id = ? AND user_id = ?`, quantity, itemID, userID)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	// 数量未变化时 RowsAffected 为 0，需要再查一次区分
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := d.db.QueryRowContext(ctx, `SELECT 1 FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("check cart item: %w", err)
		}
	}
	item, err := d.getCartItem(ctx, d.db, `ci.id = ? AND ci.user_id = ?`, itemID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reload cart item: %w", err)
	}
	return item, nil
}

// DeleteCartItem 删除单行；行不存在不视为错误
func (d *Driver) DeleteCartItem(ctx context.Context, userID string, itemID int64) error {
	if err := d.authorize(ctx, userID, "remove from cart"); err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

// ClearCart 删除该用户全部购物车行
func (d *Driver) ClearCart(ctx context.Context, userID string) error {
	if err := d.authorize(ctx, userID, "clear cart"); err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
