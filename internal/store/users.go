package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }, user *models.User) error {
	return row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
}

func CreateUser(ctx context.Context, q database.Querier, user *models.User) (*models.User, error) {
	created := &models.User{}

	query := `
		INSERT INTO users (username, email, password_hash, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + userColumns

	err := scanUser(q.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName), created)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, database.ErrDuplicateUser
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return created, nil
}

func GetUser(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	user := &models.User{}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := scanUser(q.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, q database.Querier, p PageParams) (*OffsetPage[models.User], error) {
	p = p.Normalize()

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, p.Limit, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := scanUser(rows, &user); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, p), nil
}

// UpdateUser applies the non-nil fields of upd. An empty update returns the
// current row unchanged.
func UpdateUser(ctx context.Context, q database.Querier, id int64, upd models.UserUpdate) (*models.User, error) {
	var sets queryBuilder
	if upd.Email != nil {
		sets.add("email = ?", *upd.Email)
	}
	if upd.FirstName != nil {
		sets.add("first_name = ?", *upd.FirstName)
	}
	if upd.LastName != nil {
		sets.add("last_name = ?", *upd.LastName)
	}
	if sets.empty() {
		return GetUser(ctx, q, id)
	}
	sets.addRaw("updated_at = NOW()")

	query := `UPDATE users SET ` + sets.join(", ") +
		` WHERE id = ` + sets.next(id) +
		` RETURNING ` + userColumns

	user := &models.User{}
	if err := scanUser(q.QueryRowContext(ctx, query, sets.args...), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, database.ErrDuplicateUser
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// SetPasswordHash replaces the stored hash wholesale.
func SetPasswordHash(ctx context.Context, q database.Querier, id int64, hash string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		hash, id)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}
