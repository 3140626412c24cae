package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safar/catalog-store/internal/cart"
	"github.com/safar/catalog-store/internal/catalog"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/review"
	"github.com/safar/catalog-store/internal/store"
	"github.com/safar/catalog-store/internal/telemetry"
)

type CartService interface {
	GetCartWithItems(ctx context.Context, userID int64) (*cart.View, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*cart.View, error)
	UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*cart.View, error)
	RemoveItem(ctx context.Context, userID, productID int64) (*cart.View, error)
	ClearCart(ctx context.Context, userID int64) (*cart.View, error)
}

type ReviewService interface {
	Search(ctx context.Context, params review.SearchParams) (*review.SearchResult, error)
	ListByProduct(ctx context.Context, productID int64, sortBy string, page, limit int) (*review.SearchResult, error)
	ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage[models.Review], error)
	Create(ctx context.Context, in review.CreateInput) (*models.Review, error)
	Get(ctx context.Context, id int64) (*models.Review, error)
	Update(ctx context.Context, id, userID int64, upd models.ReviewUpdate) (*models.Review, error)
	Delete(ctx context.Context, id, userID int64) error
	Stats(ctx context.Context, productID int64) (*review.Stats, error)
	VoteHelpful(ctx context.Context, id int64) (int, bool, error)
}

type CatalogService interface {
	CreateProduct(ctx context.Context, in catalog.CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter, p store.PageParams) (*store.OffsetPage[models.Product], error)
	UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, in catalog.CreateCategoryInput) (*models.Category, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context, p store.PageParams) (*store.OffsetPage[models.Category], error)
	UpdateCategory(ctx context.Context, id int64, upd models.CategoryUpdate) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	RegisterUser(ctx context.Context, in catalog.RegisterUserInput) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, p store.PageParams) (*store.OffsetPage[models.User], error)
	UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, id int64, in catalog.ChangePasswordInput) error
}

// Pinger reports backing store health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	carts   CartService
	reviews ReviewService
	catalog CatalogService
	db      Pinger
	logger  *slog.Logger
}

func NewHandler(carts CartService, reviews ReviewService, catalog CatalogService, db Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		carts:   carts,
		reviews: reviews,
		catalog: catalog,
		db:      db,
		logger:  logger,
	}
}

// Router builds the full HTTP surface. reg and gatherer may be nil to skip
// metrics.
func (h *Handler) Router(reg prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	if reg != nil {
		r.Use(telemetry.NewHTTPMetrics(reg).Middleware)
	}

	r.Get("/healthz", h.health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		h.RegisterCartRoutes(r)
		h.RegisterReviewRoutes(r)
		h.RegisterCatalogRoutes(r)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check failed", slog.Any("error", err))
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info("http request",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)))
	})
}
