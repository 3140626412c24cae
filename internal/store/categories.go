package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
)

const categoryColumns = `id, name, description, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }, c *models.Category) error {
	return row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
}

func CreateCategory(ctx context.Context, q database.Querier, name string, description *string) (*models.Category, error) {
	category := &models.Category{}

	query := `
		INSERT INTO categories (name, description, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + categoryColumns

	if err := scanCategory(q.QueryRowContext(ctx, query, name, description), category); err != nil {
		if database.IsUniqueViolation(err, "categories_name_key") {
			return nil, database.ErrDuplicateCategory
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func GetCategory(ctx context.Context, q database.Querier, id int64) (*models.Category, error) {
	category := &models.Category{}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	if err := scanCategory(q.QueryRowContext(ctx, query, id), category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, q database.Querier, p PageParams) (*OffsetPage[models.Category], error) {
	p = p.Normalize()

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		ORDER BY name, id
		LIMIT $1 OFFSET $2`, p.Limit, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(categories, total, p), nil
}

func UpdateCategory(ctx context.Context, q database.Querier, id int64, upd models.CategoryUpdate) (*models.Category, error) {
	var sets queryBuilder
	if upd.Name != nil {
		sets.add("name = ?", *upd.Name)
	}
	if upd.Description != nil {
		sets.add("description = ?", *upd.Description)
	}
	if sets.empty() {
		return GetCategory(ctx, q, id)
	}
	sets.addRaw("updated_at = NOW()")

	query := `UPDATE categories SET ` + sets.join(", ") +
		` WHERE id = ` + sets.next(id) +
		` RETURNING ` + categoryColumns

	category := &models.Category{}
	if err := scanCategory(q.QueryRowContext(ctx, query, sets.args...), category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		if database.IsUniqueViolation(err, "categories_name_key") {
			return nil, database.ErrDuplicateCategory
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	return category, nil
}

func DeleteCategory(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCategoryNotFound
	}

	return nil
}
