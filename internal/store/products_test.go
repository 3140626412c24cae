package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productRowColumns = []string{
	"id", "name", "category_id", "description", "price", "stock_count", "brand",
	"image_url", "is_available", "created_at", "updated_at", "version",
}

func TestUpdateProductAppliesOnlySetFields(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		`UPDATE products SET price = $1, stock_count = $2, version = version + 1, updated_at = NOW() WHERE id = $3 AND version = $4`)).
		WithArgs(decimal.RequireFromString("12.50"), 4, int64(1), 2).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(1, "Mouse", nil, "", "12.50", 4, "Acme", "", true, now, now, 3))

	product, err := UpdateProduct(context.Background(), db, 1, models.ProductUpdate{
		Price:      ptrTo(decimal.RequireFromString("12.50")),
		StockCount: ptrTo(4),
		Version:    ptrTo(2),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, product.Version)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("12.5")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProductVersionMismatch(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`UPDATE products SET`).
		WillReturnRows(sqlmock.NewRows(productRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := UpdateProduct(context.Background(), db, 1, models.ProductUpdate{
		StockCount: ptrTo(10),
		Version:    ptrTo(1),
	})

	assert.ErrorIs(t, err, database.ErrOptimisticLockFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProductMissing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`UPDATE products SET`).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	_, err := UpdateProduct(context.Background(), db, 1, models.ProductUpdate{Name: ptrTo("Keyboard")})

	assert.ErrorIs(t, err, database.ErrProductNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProductsFilters(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COUNT(*) FROM products WHERE (name ILIKE $1 OR description ILIKE $1) AND is_available = $2`)).
		WithArgs("%mouse%", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY price ASC, id ASC LIMIT $3 OFFSET $4`)).
		WithArgs("%mouse%", true, 10, 0).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	page, err := ListProducts(context.Background(), db,
		ProductFilter{Search: "mouse", Available: ptrTo(true), SortBy: "price", Order: "asc"},
		PageParams{})

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductsByIDsEmpty(t *testing.T) {
	db, mock := newMockDB(t)

	products, err := GetProductsByIDs(context.Background(), db, nil)

	require.NoError(t, err)
	assert.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductUnknownCategory(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO products`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "products_category_id_fkey"})

	_, err := CreateProduct(context.Background(), db, &models.Product{Name: "Mouse", CategoryID: ptrTo(int64(99))})

	assert.ErrorIs(t, err, database.ErrCategoryNotFound)
}
