package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
)

// EnsureCart inserts an empty cart for userID unless one exists and reports
// whether it inserted. The unique constraint on user_id makes concurrent calls
// converge on a single row.
func EnsureCart(ctx context.Context, q database.Querier, userID int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO carts (user_id, total, created_at, updated_at, version)
		 VALUES ($1, 0, NOW(), NOW(), 1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		if database.IsForeignKeyViolation(err, "") {
			return false, database.ErrUserNotFound
		}
		return false, fmt.Errorf("ensure cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

const cartColumns = `id, user_id, total, created_at, updated_at, version`

func scanCart(row interface{ Scan(...any) error }, c *models.Cart) error {
	return row.Scan(&c.ID, &c.UserID, &c.Total, &c.CreatedAt, &c.UpdatedAt, &c.Version)
}

// GetCart reads the cart header and items without locking.
func GetCart(ctx context.Context, q database.Querier, userID int64) (*models.Cart, error) {
	return getCart(ctx, q, userID, "")
}

// LockCart reads the cart and holds its row lock until tx ends. All writers
// of one user's cart queue up here.
func LockCart(ctx context.Context, tx *sql.Tx, userID int64) (*models.Cart, error) {
	return getCart(ctx, tx, userID, " FOR UPDATE")
}

func getCart(ctx context.Context, q database.Querier, userID int64, lock string) (*models.Cart, error) {
	cart := &models.Cart{}

	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1` + lock

	if err := scanCart(q.QueryRowContext(ctx, query, userID), cart); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	items, err := listCartItems(ctx, q, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

func listCartItems(ctx context.Context, q database.Querier, cartID int64) ([]models.CartItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT product_id, quantity, price
		 FROM cart_items
		 WHERE cart_id = $1
		 ORDER BY position`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// SaveCart rewrites the item list and total of a locked cart in tx, so
// readers see either the old items and total or the new ones.
func SaveCart(ctx context.Context, tx *sql.Tx, cart *models.Cart) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}

	for i, item := range cart.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, position, quantity, price, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())`,
			cart.ID, item.ProductID, i, item.Quantity, item.Price)
		if err != nil {
			if database.IsForeignKeyViolation(err, "") {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("create cart item: %w", err)
		}
	}

	err := tx.QueryRowContext(ctx,
		`UPDATE carts
		 SET total = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING version, updated_at`,
		cart.Total, cart.ID).Scan(&cart.Version, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrCartNotFound
		}
		return fmt.Errorf("update cart total: %w", err)
	}

	return nil
}
