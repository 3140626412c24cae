package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/safar/catalog-store/internal/cart"
	"github.com/safar/catalog-store/internal/catalog"
	"github.com/safar/catalog-store/internal/logger"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/review"
	"github.com/safar/catalog-store/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) view(args mock.Arguments) (*cart.View, error) {
	v, _ := args.Get(0).(*cart.View)
	return v, args.Error(1)
}

func (m *MockCartService) GetCartWithItems(ctx context.Context, userID int64) (*cart.View, error) {
	return m.view(m.Called(ctx, userID))
}

func (m *MockCartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*cart.View, error) {
	return m.view(m.Called(ctx, userID, productID, quantity))
}

func (m *MockCartService) UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*cart.View, error) {
	return m.view(m.Called(ctx, userID, productID, quantity))
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, productID int64) (*cart.View, error) {
	return m.view(m.Called(ctx, userID, productID))
}

func (m *MockCartService) ClearCart(ctx context.Context, userID int64) (*cart.View, error) {
	return m.view(m.Called(ctx, userID))
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Search(ctx context.Context, params review.SearchParams) (*review.SearchResult, error) {
	args := m.Called(ctx, params)
	res, _ := args.Get(0).(*review.SearchResult)
	return res, args.Error(1)
}

func (m *MockReviewService) ListByProduct(ctx context.Context, productID int64, sortBy string, page, limit int) (*review.SearchResult, error) {
	args := m.Called(ctx, productID, sortBy, page, limit)
	res, _ := args.Get(0).(*review.SearchResult)
	return res, args.Error(1)
}

func (m *MockReviewService) ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage[models.Review], error) {
	args := m.Called(ctx, userID, cursor, limit)
	res, _ := args.Get(0).(*store.CursorPage[models.Review])
	return res, args.Error(1)
}

func (m *MockReviewService) Create(ctx context.Context, in review.CreateInput) (*models.Review, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*models.Review)
	return res, args.Error(1)
}

func (m *MockReviewService) Get(ctx context.Context, id int64) (*models.Review, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Review)
	return res, args.Error(1)
}

func (m *MockReviewService) Update(ctx context.Context, id, userID int64, upd models.ReviewUpdate) (*models.Review, error) {
	args := m.Called(ctx, id, userID, upd)
	res, _ := args.Get(0).(*models.Review)
	return res, args.Error(1)
}

func (m *MockReviewService) Delete(ctx context.Context, id, userID int64) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *MockReviewService) Stats(ctx context.Context, productID int64) (*review.Stats, error) {
	args := m.Called(ctx, productID)
	res, _ := args.Get(0).(*review.Stats)
	return res, args.Error(1)
}

func (m *MockReviewService) VoteHelpful(ctx context.Context, id int64) (int, bool, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Bool(1), args.Error(2)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) CreateProduct(ctx context.Context, in catalog.CreateProductInput) (*models.Product, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*models.Product)
	return res, args.Error(1)
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Product)
	return res, args.Error(1)
}

func (m *MockCatalogService) ListProducts(ctx context.Context, f store.ProductFilter, p store.PageParams) (*store.OffsetPage[models.Product], error) {
	args := m.Called(ctx, f, p)
	res, _ := args.Get(0).(*store.OffsetPage[models.Product])
	return res, args.Error(1)
}

func (m *MockCatalogService) UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) (*models.Product, error) {
	args := m.Called(ctx, id, upd)
	res, _ := args.Get(0).(*models.Product)
	return res, args.Error(1)
}

func (m *MockCatalogService) DeleteProduct(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalogService) CreateCategory(ctx context.Context, in catalog.CreateCategoryInput) (*models.Category, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*models.Category)
	return res, args.Error(1)
}

func (m *MockCatalogService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Category)
	return res, args.Error(1)
}

func (m *MockCatalogService) ListCategories(ctx context.Context, p store.PageParams) (*store.OffsetPage[models.Category], error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*store.OffsetPage[models.Category])
	return res, args.Error(1)
}

func (m *MockCatalogService) UpdateCategory(ctx context.Context, id int64, upd models.CategoryUpdate) (*models.Category, error) {
	args := m.Called(ctx, id, upd)
	res, _ := args.Get(0).(*models.Category)
	return res, args.Error(1)
}

func (m *MockCatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalogService) RegisterUser(ctx context.Context, in catalog.RegisterUserInput) (*models.User, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*models.User)
	return res, args.Error(1)
}

func (m *MockCatalogService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.User)
	return res, args.Error(1)
}

func (m *MockCatalogService) ListUsers(ctx context.Context, p store.PageParams) (*store.OffsetPage[models.User], error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*store.OffsetPage[models.User])
	return res, args.Error(1)
}

func (m *MockCatalogService) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	args := m.Called(ctx, id, upd)
	res, _ := args.Get(0).(*models.User)
	return res, args.Error(1)
}

func (m *MockCatalogService) ChangePassword(ctx context.Context, id int64, in catalog.ChangePasswordInput) error {
	return m.Called(ctx, id, in).Error(0)
}

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(ctx context.Context) error {
	return p.err
}

type testServer struct {
	*httptest.Server
	carts   *MockCartService
	reviews *MockReviewService
	catalog *MockCatalogService
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		carts:   new(MockCartService),
		reviews: new(MockReviewService),
		catalog: new(MockCatalogService),
	}
	h := NewHandler(ts.carts, ts.reviews, ts.catalog, stubPinger{}, logger.Discard())
	reg := prometheus.NewRegistry()
	ts.Server = httptest.NewServer(h.Router(reg, reg))
	t.Cleanup(ts.Server.Close)
	return ts
}
