package review

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/domain"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/store"
	"github.com/safar/catalog-store/internal/telemetry"
	"github.com/shopspring/decimal"
)

// Service is the review store and search engine.
type Service struct {
	db       *sql.DB
	validate *validator.Validate
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewService(db *sql.DB, metrics *telemetry.Metrics, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		validate: domain.NewValidator(),
		metrics:  metrics,
		logger:   logger,
	}
}

// SearchParams describes a review search. All filters are optional and combine with AND.
type SearchParams struct {
	ProductID        *int64 `json:"product_id" validate:"omitempty,gt=0"`
	UserID           *int64 `json:"user_id" validate:"omitempty,gt=0"`
	SearchText       string `json:"search_text" validate:"max=200"`
	MinRating        *int   `json:"min_rating" validate:"omitempty,min=1,max=5"`
	MaxRating        *int   `json:"max_rating" validate:"omitempty,min=1,max=5"`
	VerifiedPurchase *bool  `json:"verified_purchase"`
	SortBy           string `json:"sort_by" validate:"omitempty,oneof=date-new date-old rating-high rating-low helpful"`
	Page             int    `json:"page" validate:"gte=0"`
	Limit            int    `json:"limit" validate:"gte=0,lte=100"`
}

type SearchResult struct {
	Reviews      []models.Review `json:"reviews"`
	TotalReviews int64           `json:"total_reviews"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	Limit        int             `json:"limit"`
}

type CreateInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Title     string `json:"title" validate:"required,min=3,max=100"`
	Content   string `json:"content" validate:"omitempty,min=10,max=2000"`
	// Comment is accepted from older clients and used when Content is empty.
	Comment          string   `json:"comment" validate:"omitempty,min=10,max=2000"`
	Pros             []string `json:"pros" validate:"max=10,dive,max=200"`
	Cons             []string `json:"cons" validate:"max=10,dive,max=200"`
	VerifiedPurchase bool     `json:"verified_purchase"`
}

type Stats struct {
	AverageRating string        `json:"average_rating"`
	TotalReviews  int64         `json:"total_reviews"`
	Distribution  map[int]int64 `json:"distribution"`
}

func (s *Service) check(op string, v any) error {
	if err := s.validate.Struct(v); err != nil {
		return domain.FromValidator(op, err)
	}
	return nil
}

func translate(op string, err error) error {
	switch {
	case errors.Is(err, database.ErrDuplicateReview):
		return domain.WrapError(err, domain.ECONFLICT, op, "you have already reviewed this product")
	case errors.Is(err, database.ErrReviewNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrUserNotFound):
		return domain.WrapError(err, domain.ENOTFOUND, op, err.Error())
	}
	return domain.Internal(err, op, "review operation failed")
}

// Search returns one page of matching reviews with pagination metadata. A
// page past the end is empty, not an error.
func (s *Service) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	const op = "review.Search"
	if err := s.check(op, params); err != nil {
		return nil, err
	}
	if params.MinRating != nil && params.MaxRating != nil && *params.MinRating > *params.MaxRating {
		return nil, domain.NewValidationError(op, "min_rating", "must not exceed max_rating")
	}

	page := store.PageParams{Page: params.Page, Limit: params.Limit}.Normalize()
	sortBy := params.SortBy
	if sortBy == "" {
		sortBy = models.ReviewSortNewest
	}

	reviews, total, err := store.SearchReviews(ctx, s.db, store.ReviewFilter{
		ProductID:        params.ProductID,
		UserID:           params.UserID,
		SearchText:       params.SearchText,
		MinRating:        params.MinRating,
		MaxRating:        params.MaxRating,
		VerifiedPurchase: params.VerifiedPurchase,
		SortBy:           sortBy,
	}, page)
	if err != nil {
		return nil, translate(op, err)
	}

	s.metrics.ReviewSearch(sortBy)

	return &SearchResult{
		Reviews:      reviews,
		TotalReviews: total,
		Page:         page.Page,
		TotalPages:   store.TotalPages(total, page.Limit),
		Limit:        page.Limit,
	}, nil
}

// ListByProduct is Search restricted to one product.
func (s *Service) ListByProduct(ctx context.Context, productID int64, sortBy string, page, limit int) (*SearchResult, error) {
	return s.Search(ctx, SearchParams{
		ProductID: &productID,
		SortBy:    sortBy,
		Page:      page,
		Limit:     limit,
	})
}

// ListByUser pages through a user's reviews newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage[models.Review], error) {
	const op = "review.ListByUser"
	if limit < 1 || limit > store.MaxPageSize {
		limit = store.DefaultPageSize
	}
	if _, err := store.DecodeCursor(cursor); err != nil {
		return nil, domain.NewValidationError(op, "cursor", "is malformed")
	}

	page, err := store.ListReviewsByUser(ctx, s.db, userID, cursor, limit)
	if err != nil {
		return nil, translate(op, err)
	}
	return page, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Review, error) {
	const op = "review.Create"
	if err := s.check(op, in); err != nil {
		return nil, err
	}

	content := in.Content
	if content == "" {
		content = in.Comment
	}

	if _, err := store.GetProduct(ctx, s.db, in.ProductID); err != nil {
		return nil, translate(op, err)
	}

	r, err := store.CreateReview(ctx, s.db, &models.Review{
		ProductID:        in.ProductID,
		UserID:           in.UserID,
		Rating:           in.Rating,
		Title:            in.Title,
		Content:          content,
		Pros:             in.Pros,
		Cons:             in.Cons,
		VerifiedPurchase: in.VerifiedPurchase,
	})
	if err != nil {
		return nil, translate(op, err)
	}

	s.metrics.ReviewCreated()
	return r, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Review, error) {
	r, err := store.GetReview(ctx, s.db, id)
	if err != nil {
		return nil, translate("review.Get", err)
	}
	return r, nil
}

// Update changes a review on behalf of its author.
func (s *Service) Update(ctx context.Context, id, userID int64, upd models.ReviewUpdate) (*models.Review, error) {
	const op = "review.Update"
	if err := s.check(op, upd); err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, op, id, userID); err != nil {
		return nil, err
	}

	r, err := store.UpdateReview(ctx, s.db, id, upd)
	if err != nil {
		return nil, translate(op, err)
	}
	return r, nil
}

// Delete removes a review on behalf of its author.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	const op = "review.Delete"
	if err := s.authorize(ctx, op, id, userID); err != nil {
		return err
	}

	if err := store.DeleteReview(ctx, s.db, id); err != nil {
		return translate(op, err)
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, op string, id, userID int64) error {
	r, err := store.GetReview(ctx, s.db, id)
	if err != nil {
		return translate(op, err)
	}
	if r.UserID != userID {
		return domain.Forbidden(op, "only the author can modify this review")
	}
	return nil
}

// AverageRating returns the mean rating formatted to one decimal place and
// the number of reviews. A product without reviews reports "0.0" and 0.
func (s *Service) AverageRating(ctx context.Context, productID int64) (string, int64, error) {
	avg, total, err := store.RatingSummary(ctx, s.db, productID)
	if err != nil {
		return "", 0, translate("review.AverageRating", err)
	}
	// StringFixed rounds halves away from zero, so 4.25 reports "4.3".
	return decimal.NewFromFloat(avg).StringFixed(1), total, nil
}

// Distribution counts reviews per rating, with all five ratings present.
func (s *Service) Distribution(ctx context.Context, productID int64) (map[int]int64, error) {
	dist, err := store.RatingDistribution(ctx, s.db, productID)
	if err != nil {
		return nil, translate("review.Distribution", err)
	}
	return dist, nil
}

func (s *Service) Stats(ctx context.Context, productID int64) (*Stats, error) {
	avg, total, err := s.AverageRating(ctx, productID)
	if err != nil {
		return nil, err
	}
	dist, err := s.Distribution(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &Stats{AverageRating: avg, TotalReviews: total, Distribution: dist}, nil
}

// VoteHelpful adds one helpful vote. An unknown id reports found=false
// rather than an error.
func (s *Service) VoteHelpful(ctx context.Context, id int64) (votes int, found bool, err error) {
	votes, found, err = store.IncrementHelpfulVotes(ctx, s.db, id)
	if err != nil {
		return 0, false, translate("review.VoteHelpful", err)
	}
	if found {
		s.metrics.HelpfulVote()
	} else {
		s.logger.Debug("helpful vote for unknown review", slog.Int64("review_id", id))
	}
	return votes, found, nil
}
