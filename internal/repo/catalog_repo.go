package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/storefront/internal/domain"
)

const productColumns = `p.id, p.name, p.description, p.price, p.original_price, p.sku, p.stock_quantity,
	p.category_id, p.images, p.specifications, p.is_active, p.created_at, p.updated_at`

const categoryJoinColumns = `c.id, c.name, c.description, c.image_url, c.created_at, c.updated_at`

const productSelect = `SELECT ` + productColumns + `, ` + categoryJoinColumns + `
	FROM products p LEFT JOIN categories c ON c.id = p.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// productScan 接收一行商品数据，分类列可能为空
type productScan struct {
	product       domain.Product
	originalPrice decimal.NullDecimal
	categoryID    sql.NullInt64
	images        []byte
	specs         []byte

	catID          sql.NullInt64
	catName        sql.NullString
	catDescription sql.NullString
	catImage       sql.NullString
	catCreated     sql.NullTime
	catUpdated     sql.NullTime
}

func (s *productScan) productDest() []any {
	p := &s.product
	return []any{&p.ID, &p.Name, &p.Description, &p.Price, &s.originalPrice, &p.SKU, &p.StockQuantity,
		&s.categoryID, &s.images, &s.specs, &p.IsActive, &p.CreatedAt, &p.UpdatedAt}
}

func (s *productScan) categoryDest() []any {
	return []any{&s.catID, &s.catName, &s.catDescription, &s.catImage, &s.catCreated, &s.catUpdated}
}

func (s *productScan) build() (*domain.Product, error) {
	p := s.product
	if s.originalPrice.Valid {
		op := s.originalPrice.Decimal
		p.OriginalPrice = &op
	}
	if s.categoryID.Valid {
		id := s.categoryID.Int64
		p.CategoryID = &id
	}
	if err := decodeJSON(s.images, &p.Images); err != nil {
		return nil, fmt.Errorf("decode images of product %d: %w", p.ID, err)
	}
	if err := decodeJSON(s.specs, &p.Specifications); err != nil {
		return nil, fmt.Errorf("decode specifications of product %d: %w", p.ID, err)
	}
	if s.catID.Valid {
		p.Category = &domain.Category{
			ID:          s.catID.Int64,
			Name:        s.catName.String,
			Description: s.catDescription.String,
			ImageURL:    s.catImage.String,
			CreatedAt:   s.catCreated.Time,
			UpdatedAt:   s.catUpdated.Time,
		}
	}
	return &p, nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var s productScan
	if err := row.Scan(append(s.productDest(), s.categoryDest()...)...); err != nil {
		return nil, err
	}
	return s.build()
}

func (d *Driver) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// ListProducts 上架商品，按创建时间倒序
func (d *Driver) ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error) {
	query := productSelect + ` WHERE p.is_active = 1`
	var args []any
	if categoryID != nil {
		query += ` AND p.category_id = ?`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`
	return d.queryProducts(ctx, query, args...)
}

// GetProduct 根据ID获取商品
func (d *Driver) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(d.db.QueryRowContext(ctx, productSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SearchProducts 名称或描述包含关键词；utf8mb4_unicode_ci 排序规则下 LIKE 不区分大小写
func (d *Driver) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	pattern := "%" + escapeLike(keyword) + "%"
	query := productSelect + ` WHERE p.is_active = 1 AND (p.name LIKE ? OR p.description LIKE ?)
		ORDER BY p.created_at DESC, p.id DESC`
	return d.queryProducts(ctx, query, pattern, pattern)
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories 按名称升序
func (d *Driver) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, description, image_url, created_at, updated_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// UpsertCategories 以 name 为冲突键写入
func (d *Driver) UpsertCategories(ctx context.Context, categories []domain.Category) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(categories))
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range categories {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO categories (name, description, image_url) VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE description = VALUES(description), image_url = VALUES(image_url)`,
				c.Name, c.Description, c.ImageURL)
			if err != nil {
				return fmt.Errorf("upsert category %s: %w", c.Name, err)
			}
			saved, err := scanCategory(tx.QueryRowContext(ctx,
				`SELECT id, name, description, image_url, created_at, updated_at FROM categories WHERE name = ?`, c.Name))
			if err != nil {
				return fmt.Errorf("reload category %s: %w", c.Name, err)
			}
			out = append(out, *saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertProducts 以 sku 为冲突键写入
func (d *Driver) UpsertProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(products))
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range products {
			images := p.Images
			if images == nil {
				images = []string{}
			}
			imagesJSON, err := jsonColumn(images)
			if err != nil {
				return err
			}
			var specsJSON any
			if len(p.Specifications) > 0 {
				if specsJSON, err = jsonColumn(p.Specifications); err != nil {
					return err
				}
			}
			var original decimal.NullDecimal
			if p.OriginalPrice != nil {
				original = decimal.NewNullDecimal(*p.OriginalPrice)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO products (name, description, price, original_price, sku, stock_quantity, category_id, images, specifications, is_active)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					name = VALUES(name), description = VALUES(description), price = VALUES(price),
					original_price = VALUES(original_price), stock_quantity = VALUES(stock_quantity),
					category_id = VALUES(category_id), images = VALUES(images),
					specifications = VALUES(specifications), is_active = VALUES(is_active)`,
				p.Name, p.Description, p.Price, original, p.SKU, p.StockQuantity, p.CategoryID, imagesJSON, specsJSON, p.IsActive)
			if err != nil {
				return fmt.Errorf("upsert product %s: %w", p.SKU, err)
			}
			saved, err := scanProduct(tx.QueryRowContext(ctx, productSelect+` WHERE p.sku = ?`, p.SKU))
			if err != nil {
				return fmt.Errorf("reload product %s: %w", p.SKU, err)
			}
			out = append(out, *saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
