package store

import (
	"context"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewRowColumns = []string{
	"id", "product_id", "user_id", "rating", "title", "content", "pros", "cons",
	"verified_purchase", "helpful_votes", "created_at", "updated_at", "username", "name",
}

func TestReviewFilterConditions(t *testing.T) {
	f := ReviewFilter{
		ProductID:        ptrTo(int64(7)),
		SearchText:       "gaming",
		MinRating:        ptrTo(4),
		VerifiedPurchase: ptrTo(true),
	}

	cond := f.conditions()

	assert.Equal(t,
		" WHERE r.product_id = $1 AND (r.title ILIKE $2 OR r.content ILIKE $2) AND r.rating >= $3 AND r.verified_purchase = $4",
		cond.where())
	assert.Equal(t, []any{int64(7), "%gaming%", 4, true}, cond.args)
}

func TestReviewOrderBy(t *testing.T) {
	tests := []struct {
		sortBy string
		want   string
	}{
		{"", " ORDER BY r.created_at DESC, r.id ASC"},
		{models.ReviewSortNewest, " ORDER BY r.created_at DESC, r.id ASC"},
		{models.ReviewSortOldest, " ORDER BY r.created_at ASC, r.id ASC"},
		{models.ReviewSortRatingHigh, " ORDER BY r.rating DESC, r.id ASC"},
		{models.ReviewSortRatingLow, " ORDER BY r.rating ASC, r.id ASC"},
		{models.ReviewSortHelpful, " ORDER BY r.helpful_votes DESC, r.id ASC"},
		{"rating; DROP TABLE reviews", " ORDER BY r.created_at DESC, r.id ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.sortBy, func(t *testing.T) {
			assert.Equal(t, tt.want, reviewOrderBy(tt.sortBy))
		})
	}
}

func TestValidReviewSort(t *testing.T) {
	assert.True(t, ValidReviewSort(""))
	assert.True(t, ValidReviewSort(models.ReviewSortHelpful))
	assert.False(t, ValidReviewSort("price"))
}

func TestSearchReviews(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reviews r WHERE r.rating >= $1`)).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	mock.ExpectQuery(`ORDER BY r.rating DESC, r.id ASC LIMIT \$2 OFFSET \$3`).
		WithArgs(4, 2, 2).
		WillReturnRows(sqlmock.NewRows(reviewRowColumns).
			AddRow(3, 1, 9, 4, "Solid", "Works well enough", "{fast,quiet}", "{}", true, 2, now, now, "ann", "Mouse"))

	reviews, total, err := SearchReviews(context.Background(), db,
		ReviewFilter{MinRating: ptrTo(4), SortBy: models.ReviewSortRatingHigh},
		PageParams{Page: 2, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, reviews, 1)
	assert.Equal(t, "ann", reviews[0].Username)
	assert.Equal(t, "Mouse", reviews[0].ProductName)
	assert.Equal(t, []string{"fast", "quiet"}, reviews[0].Pros)
	assert.Equal(t, []string{}, reviews[0].Cons)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchReviewsPageBeyondLast(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reviews r`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	reviews, total, err := SearchReviews(context.Background(), db, ReviewFilter{}, PageParams{Page: 5, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, reviews)
	assert.NotNil(t, reviews)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchReviewsHugePageIsEmpty(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reviews r`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	reviews, total, err := SearchReviews(context.Background(), db, ReviewFilter{},
		PageParams{Page: math.MaxInt, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, reviews)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReviewDuplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO reviews`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "reviews_product_user_key"})

	review, err := CreateReview(context.Background(), db, &models.Review{ProductID: 1, UserID: 2, Rating: 5, Title: "Great"})

	assert.Nil(t, review)
	assert.ErrorIs(t, err, database.ErrDuplicateReview)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReviewUnknownProduct(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO reviews`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "reviews_product_id_fkey"})

	_, err := CreateReview(context.Background(), db, &models.Review{ProductID: 99, UserID: 2, Rating: 5, Title: "Great"})

	assert.ErrorIs(t, err, database.ErrProductNotFound)
}

func TestIncrementHelpfulVotes(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE reviews SET helpful_votes = helpful_votes + 1 WHERE id = $1 RETURNING helpful_votes`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"helpful_votes"}).AddRow(8))
	mock.ExpectQuery(`UPDATE reviews SET helpful_votes`).
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"helpful_votes"}))

	votes, found, err := IncrementHelpfulVotes(context.Background(), db, 5)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 8, votes)

	votes, found, err = IncrementHelpfulVotes(context.Background(), db, 6)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, votes)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingDistributionHasAllKeys(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`GROUP BY rating`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"rating", "count"}).AddRow(5, 3).AddRow(3, 1))

	dist, err := RatingDistribution(context.Background(), db, 1)

	require.NoError(t, err)
	assert.Equal(t, map[int]int64{1: 0, 2: 0, 3: 1, 4: 0, 5: 3}, dist)
}

func TestRatingSummaryEmpty(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`AVG\(rating\)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(0.0, 0))

	avg, total, err := RatingSummary(context.Background(), db, 1)

	require.NoError(t, err)
	assert.Zero(t, avg)
	assert.Zero(t, total)
}

func TestListReviewsByUserHasMore(t *testing.T) {
	db, mock := newMockDB(t)
	t1 := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(-time.Hour)
	t3 := t2.Add(-time.Hour)

	mock.ExpectQuery(`\(r.created_at, r.id\) < \(\$2, \$3\)`).
		WithArgs(int64(9), sqlmock.AnyArg(), sqlmock.AnyArg(), 3).
		WillReturnRows(sqlmock.NewRows(reviewRowColumns).
			AddRow(30, 1, 9, 5, "a", "", "{}", "{}", false, 0, t1, t1, "bob", "p1").
			AddRow(20, 2, 9, 4, "b", "", "{}", "{}", false, 0, t2, t2, "bob", "p2").
			AddRow(10, 3, 9, 3, "c", "", "{}", "{}", false, 0, t3, t3, "bob", "p3"))

	page, err := ListReviewsByUser(context.Background(), db, 9, "", 2)

	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)

	next, err := DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, int64(20), next.ID)
	assert.True(t, t2.Equal(next.CreatedAt))
}
