package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
)

// ReviewFilter is the conjunctive filter of a review search. Nil or empty
// fields do not constrain the result.
type ReviewFilter struct {
	ProductID        *int64
	UserID           *int64
	SearchText       string
	MinRating        *int
	MaxRating        *int
	VerifiedPurchase *bool
	SortBy           string
}

var reviewOrderings = map[string]string{
	models.ReviewSortNewest:     "r.created_at DESC",
	models.ReviewSortOldest:     "r.created_at ASC",
	models.ReviewSortRatingHigh: "r.rating DESC",
	models.ReviewSortRatingLow:  "r.rating ASC",
	models.ReviewSortHelpful:    "r.helpful_votes DESC",
}

// ValidReviewSort reports whether s names a known ordering. Empty is valid.
func ValidReviewSort(s string) bool {
	if s == "" {
		return true
	}
	_, ok := reviewOrderings[s]
	return ok
}

// reviewOrderBy breaks ties by id so paging is deterministic.
func reviewOrderBy(sortBy string) string {
	ordering, ok := reviewOrderings[sortBy]
	if !ok {
		ordering = reviewOrderings[models.ReviewSortNewest]
	}
	return " ORDER BY " + ordering + ", r.id ASC"
}

func (f ReviewFilter) conditions() queryBuilder {
	var b queryBuilder
	if f.ProductID != nil {
		b.add("r.product_id = ?", *f.ProductID)
	}
	if f.UserID != nil {
		b.add("r.user_id = ?", *f.UserID)
	}
	if f.SearchText != "" {
		b.add("(r.title ILIKE ? OR r.content ILIKE ?)", containsPattern(f.SearchText))
	}
	if f.MinRating != nil {
		b.add("r.rating >= ?", *f.MinRating)
	}
	if f.MaxRating != nil {
		b.add("r.rating <= ?", *f.MaxRating)
	}
	if f.VerifiedPurchase != nil {
		b.add("r.verified_purchase = ?", *f.VerifiedPurchase)
	}
	return b
}

const reviewSelect = `
	SELECT r.id, r.product_id, r.user_id, r.rating, r.title, r.content, r.pros, r.cons,
	       r.verified_purchase, r.helpful_votes, r.created_at, r.updated_at,
	       COALESCE(u.username, ''), COALESCE(p.name, '')
	FROM %s r
	LEFT JOIN users u ON u.id = r.user_id
	LEFT JOIN products p ON p.id = r.product_id`

func reviewQuery(source string) string {
	return fmt.Sprintf(reviewSelect, source)
}

func scanReview(row interface{ Scan(...any) error }, r *models.Review) error {
	err := row.Scan(
		&r.ID,
		&r.ProductID,
		&r.UserID,
		&r.Rating,
		&r.Title,
		&r.Content,
		pq.Array(&r.Pros),
		pq.Array(&r.Cons),
		&r.VerifiedPurchase,
		&r.HelpfulVotes,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Username,
		&r.ProductName,
	)
	if err != nil {
		return err
	}
	if r.Pros == nil {
		r.Pros = []string{}
	}
	if r.Cons == nil {
		r.Cons = []string{}
	}
	return nil
}

func scanReviews(rows *sql.Rows) ([]models.Review, error) {
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := scanReview(rows, &r); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}

func translateReviewError(err error, op string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return database.ErrReviewNotFound
	case database.IsUniqueViolation(err, "reviews_product_user_key"):
		return database.ErrDuplicateReview
	case database.IsForeignKeyViolation(err, "reviews_user_id_fkey"):
		return database.ErrUserNotFound
	case database.IsForeignKeyViolation(err, "reviews_product_id_fkey"):
		return database.ErrProductNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func CreateReview(ctx context.Context, q database.Querier, r *models.Review) (*models.Review, error) {
	query := `
		WITH inserted AS (
			INSERT INTO reviews (product_id, user_id, rating, title, content, pros, cons, verified_purchase, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			RETURNING *
		)` + reviewQuery("inserted")

	pros, cons := r.Pros, r.Cons
	if pros == nil {
		pros = []string{}
	}
	if cons == nil {
		cons = []string{}
	}

	created := &models.Review{}
	err := scanReview(q.QueryRowContext(ctx, query,
		r.ProductID, r.UserID, r.Rating, r.Title, r.Content,
		pq.Array(pros), pq.Array(cons), r.VerifiedPurchase), created)
	if err != nil {
		return nil, translateReviewError(err, "create review")
	}

	return created, nil
}

func GetReview(ctx context.Context, q database.Querier, id int64) (*models.Review, error) {
	review := &models.Review{}

	if err := scanReview(q.QueryRowContext(ctx, reviewQuery("reviews")+` WHERE r.id = $1`, id), review); err != nil {
		return nil, translateReviewError(err, "get review")
	}

	return review, nil
}

// UpdateReview applies the non-nil fields of upd.
func UpdateReview(ctx context.Context, q database.Querier, id int64, upd models.ReviewUpdate) (*models.Review, error) {
	var sets queryBuilder
	if upd.Rating != nil {
		sets.add("rating = ?", *upd.Rating)
	}
	if upd.Title != nil {
		sets.add("title = ?", *upd.Title)
	}
	if upd.Content != nil {
		sets.add("content = ?", *upd.Content)
	}
	if upd.Pros != nil {
		sets.add("pros = ?", pq.Array(upd.Pros))
	}
	if upd.Cons != nil {
		sets.add("cons = ?", pq.Array(upd.Cons))
	}
	if sets.empty() {
		return GetReview(ctx, q, id)
	}
	sets.addRaw("updated_at = NOW()")

	query := `
		WITH updated AS (
			UPDATE reviews SET ` + sets.join(", ") + `
			WHERE id = ` + sets.next(id) + `
			RETURNING *
		)` + reviewQuery("updated")

	review := &models.Review{}
	if err := scanReview(q.QueryRowContext(ctx, query, sets.args...), review); err != nil {
		return nil, translateReviewError(err, "update review")
	}

	return review, nil
}

func DeleteReview(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrReviewNotFound
	}

	return nil
}

// SearchReviews returns one page of reviews matching f and the number of
// matches ignoring pagination.
func SearchReviews(ctx context.Context, q database.Querier, f ReviewFilter, p PageParams) ([]models.Review, int64, error) {
	p = p.Normalize()
	cond := f.conditions()

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews r`+cond.where(), cond.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	if p.Offset() >= total {
		return []models.Review{}, total, nil
	}

	query := reviewQuery("reviews") + cond.where() + reviewOrderBy(f.SortBy) +
		` LIMIT ` + cond.next(p.Limit) + ` OFFSET ` + cond.next(p.Offset())

	rows, err := q.QueryContext(ctx, query, cond.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search reviews: %w", err)
	}

	reviews, err := scanReviews(rows)
	if err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

// ListReviewsByUser pages through a user's reviews newest first using a
// keyset cursor over (created_at, id).
func ListReviewsByUser(ctx context.Context, q database.Querier, userID int64, cursor string, limit int) (*CursorPage[models.Review], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := reviewQuery("reviews") + `
		WHERE r.user_id = $1
		  AND (r.created_at, r.id) < ($2, $3)
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $4`

	rows, err := q.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	reviews, err := scanReviews(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(reviews) > limit
	if hasMore {
		reviews = reviews[:limit]
	}

	var nextCursor string
	if hasMore && len(reviews) > 0 {
		last := reviews[len(reviews)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage[models.Review]{
		Items:      reviews,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// IncrementHelpfulVotes adds exactly one vote and returns the new count.
// found is false when no review has that id.
func IncrementHelpfulVotes(ctx context.Context, q database.Querier, id int64) (votes int, found bool, err error) {
	err = q.QueryRowContext(ctx,
		`UPDATE reviews SET helpful_votes = helpful_votes + 1 WHERE id = $1 RETURNING helpful_votes`,
		id).Scan(&votes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("vote helpful: %w", err)
	}
	return votes, true, nil
}

// RatingSummary returns the mean rating and review count for a product.
// The mean is 0 when there are no reviews.
func RatingSummary(ctx context.Context, q database.Querier, productID int64) (float64, int64, error) {
	var (
		avg   float64
		total int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM reviews WHERE product_id = $1`,
		productID).Scan(&avg, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("rating summary: %w", err)
	}
	return avg, total, nil
}

// RatingDistribution counts reviews per rating. Every rating from 1 to 5 is
// present in the result.
func RatingDistribution(ctx context.Context, q database.Querier, productID int64) (map[int]int64, error) {
	dist := map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}

	rows, err := q.QueryContext(ctx,
		`SELECT rating, COUNT(*) FROM reviews WHERE product_id = $1 GROUP BY rating`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("rating distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rating int
			count  int64
		)
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("scan rating count: %w", err)
		}
		dist[rating] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return dist, nil
}
