package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, category_id, description, price, stock_count, brand, image_url, is_available, created_at, updated_at, version`

func scanProduct(row interface{ Scan(...any) error }, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.CategoryID,
		&p.Description,
		&p.Price,
		&p.StockCount,
		&p.Brand,
		&p.ImageURL,
		&p.IsAvailable,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
}

// ProductFilter narrows ListProducts. Zero values disable a filter.
type ProductFilter struct {
	Search     string
	CategoryID *int64
	Brand      string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Available  *bool
	SortBy     string
	Order      string
}

var productSortColumns = map[string]string{
	"name":       "name",
	"price":      "price",
	"created_at": "created_at",
}

func (f ProductFilter) conditions() queryBuilder {
	var b queryBuilder
	if f.Search != "" {
		b.add("(name ILIKE ? OR description ILIKE ?)", containsPattern(f.Search))
	}
	if f.CategoryID != nil {
		b.add("category_id = ?", *f.CategoryID)
	}
	if f.Brand != "" {
		b.add("brand ILIKE ?", f.Brand)
	}
	if f.MinPrice != nil {
		b.add("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		b.add("price <= ?", *f.MaxPrice)
	}
	if f.Available != nil {
		b.add("is_available = ?", *f.Available)
	}
	return b
}

func (f ProductFilter) orderBy() string {
	col, ok := productSortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
}

func CreateProduct(ctx context.Context, q database.Querier, p *models.Product) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (name, category_id, description, price, stock_count, brand, image_url, is_available, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	err := scanProduct(q.QueryRowContext(ctx, query,
		p.Name, p.CategoryID, p.Description, p.Price, p.StockCount, p.Brand, p.ImageURL, p.IsAvailable), product)
	if err != nil {
		if database.IsForeignKeyViolation(err, "") {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := scanProduct(q.QueryRowContext(ctx, query, id), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProductsByIDs returns the products that exist among ids, keyed by id.
// Missing ids are simply absent from the map.
func GetProductsByIDs(ctx context.Context, q database.Querier, ids []int64) (map[int64]models.Product, error) {
	products := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func ListProducts(ctx context.Context, q database.Querier, f ProductFilter, p PageParams) (*OffsetPage[models.Product], error) {
	p = p.Normalize()
	cond := f.conditions()

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+cond.where(), cond.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + cond.where() + f.orderBy() +
		` LIMIT ` + cond.next(p.Limit) + ` OFFSET ` + cond.next(p.Offset())

	rows, err := q.QueryContext(ctx, query, cond.args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, p), nil
}

// UpdateProduct applies the non-nil fields of upd and bumps the version.
// When upd.Version is set the row must still carry that version, otherwise
// ErrOptimisticLockFailed is returned.
func UpdateProduct(ctx context.Context, q database.Querier, id int64, upd models.ProductUpdate) (*models.Product, error) {
	var sets queryBuilder
	if upd.Name != nil {
		sets.add("name = ?", *upd.Name)
	}
	if upd.CategoryID != nil {
		sets.add("category_id = ?", *upd.CategoryID)
	}
	if upd.Description != nil {
		sets.add("description = ?", *upd.Description)
	}
	if upd.Price != nil {
		sets.add("price = ?", *upd.Price)
	}
	if upd.StockCount != nil {
		sets.add("stock_count = ?", *upd.StockCount)
	}
	if upd.Brand != nil {
		sets.add("brand = ?", *upd.Brand)
	}
	if upd.ImageURL != nil {
		sets.add("image_url = ?", *upd.ImageURL)
	}
	if upd.IsAvailable != nil {
		sets.add("is_available = ?", *upd.IsAvailable)
	}
	if sets.empty() {
		return GetProduct(ctx, q, id)
	}
	sets.addRaw("version = version + 1")
	sets.addRaw("updated_at = NOW()")

	query := `UPDATE products SET ` + sets.join(", ") + ` WHERE id = ` + sets.next(id)
	if upd.Version != nil {
		query += ` AND version = ` + sets.next(*upd.Version)
	}
	query += ` RETURNING ` + productColumns

	product := &models.Product{}
	err := scanProduct(q.QueryRowContext(ctx, query, sets.args...), product)
	if err == nil {
		return product, nil
	}
	if database.IsForeignKeyViolation(err, "") {
		return nil, database.ErrCategoryNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if upd.Version == nil {
		return nil, database.ErrProductNotFound
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check product exists: %w", err)
	}
	if !exists {
		return nil, database.ErrProductNotFound
	}
	return nil, database.ErrOptimisticLockFailed
}

func DeleteProduct(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}
