package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/catalog-store/internal/domain"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/review"
)

// userHeader carries the caller's user id until real authentication exists.
const userHeader = "X-User-ID"

func (h *Handler) RegisterReviewRoutes(r chi.Router) {
	r.Route("/reviews", func(r chi.Router) {
		r.Get("/search", h.searchReviews)
		r.Post("/", h.createReview)
		r.Get("/{id}", h.getReview)
		r.Put("/{id}", h.updateReview)
		r.Delete("/{id}", h.deleteReview)
		r.Post("/{id}/vote", h.voteReview)
	})
	r.Get("/products/{id}/reviews", h.listProductReviews)
	r.Get("/products/{id}/reviews/stats", h.productReviewStats)
	r.Get("/users/{id}/reviews", h.listUserReviews)
}

func callerID(r *http.Request) (int64, error) {
	raw := r.Header.Get(userHeader)
	if raw == "" {
		return 0, domain.Forbidden("api.callerID", "missing "+userHeader+" header")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("api.callerID", userHeader, "must be a positive integer")
	}
	return id, nil
}

func (h *Handler) searchReviews(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	params := review.SearchParams{
		ProductID:        q.OptionalInt64("product_id"),
		UserID:           q.OptionalInt64("user_id"),
		SearchText:       q.String("search_text"),
		MinRating:        q.OptionalInt("min_rating"),
		MaxRating:        q.OptionalInt("max_rating"),
		VerifiedPurchase: q.OptionalBool("verified_purchase"),
		SortBy:           q.String("sort_by"),
		Page:             q.Int("page"),
		Limit:            q.Int("limit"),
	}
	if err := q.Err(); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.reviews.Search(r.Context(), params)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	var in review.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	created, err := h.reviews.Create(r.Context(), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) getReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	rv, err := h.reviews.Get(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rv)
}

func (h *Handler) updateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	userID, err := callerID(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	var upd models.ReviewUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	rv, err := h.reviews.Update(r.Context(), id, userID, upd)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rv)
}

func (h *Handler) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	userID, err := callerID(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	if err := h.reviews.Delete(r.Context(), id, userID); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) voteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	votes, found, err := h.reviews.VoteHelpful(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if !found {
		h.respondWithError(w, r, domain.NotFound("api.voteReview", "review", strconv.FormatInt(id, 10)))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"helpful_votes": votes})
}

func (h *Handler) listProductReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	q := newQueryParams(r)
	sortBy, page, limit := q.String("sort_by"), q.Int("page"), q.Int("limit")
	if err := q.Err(); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.reviews.ListByProduct(r.Context(), id, sortBy, page, limit)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) productReviewStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	stats, err := h.reviews.Stats(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) listUserReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	q := newQueryParams(r)
	cursor, limit := q.String("cursor"), q.Int("limit")
	if err := q.Err(); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	page, err := h.reviews.ListByUser(r.Context(), id, cursor, limit)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}
