package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/domain"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Service is the product directory and the plain CRUD over products,
// categories and users.
type Service struct {
	db       *sql.DB
	validate *validator.Validate
}

func NewService(db *sql.DB) *Service {
	return &Service{
		db:       db,
		validate: domain.NewValidator(),
	}
}

type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,min=2,max=255"`
	CategoryID  *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	StockCount  int             `json:"stock_count" validate:"gte=0"`
	Brand       string          `json:"brand" validate:"omitempty,min=2,max=100"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	IsAvailable *bool           `json:"is_available"`
}

type CreateCategoryInput struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description"`
}

type RegisterUserInput struct {
	Username  string  `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email     string  `json:"email" validate:"required,email,max=100"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,max=50"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

func (s *Service) check(op string, v any) error {
	if err := s.validate.Struct(v); err != nil {
		return domain.FromValidator(op, err)
	}
	return nil
}

func translate(op string, err error) error {
	switch {
	case errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrCategoryNotFound),
		errors.Is(err, database.ErrUserNotFound):
		return domain.WrapError(err, domain.ENOTFOUND, op, err.Error())
	case errors.Is(err, database.ErrDuplicateCategory),
		errors.Is(err, database.ErrDuplicateUser):
		return domain.WrapError(err, domain.ECONFLICT, op, err.Error())
	case errors.Is(err, database.ErrOptimisticLockFailed):
		return domain.WrapError(err, domain.ECONFLICT, op, "product was modified concurrently, reload and retry")
	}
	return domain.Internal(err, op, "catalog operation failed")
}

// Products

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	const op = "catalog.CreateProduct"
	if err := s.check(op, in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, domain.NewValidationError(op, "price", "must not be negative")
	}

	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}

	p, err := store.CreateProduct(ctx, s.db, &models.Product{
		Name:        in.Name,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		Price:       in.Price,
		StockCount:  in.StockCount,
		Brand:       in.Brand,
		ImageURL:    in.ImageURL,
		IsAvailable: available,
	})
	if err != nil {
		return nil, translate(op, err)
	}
	return p, nil
}

// GetProduct and GetProducts make Service the cart engine's product directory.
func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := store.GetProduct(ctx, s.db, id)
	if err != nil {
		return nil, translate("catalog.GetProduct", err)
	}
	return p, nil
}

func (s *Service) GetProducts(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	products, err := store.GetProductsByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, translate("catalog.GetProducts", err)
	}
	return products, nil
}

func (s *Service) ListProducts(ctx context.Context, f store.ProductFilter, p store.PageParams) (*store.OffsetPage[models.Product], error) {
	const op = "catalog.ListProducts"
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, domain.NewValidationError(op, "min_price", "must not exceed max_price")
	}

	page, err := store.ListProducts(ctx, s.db, f, p)
	if err != nil {
		return nil, translate(op, err)
	}
	return page, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) (*models.Product, error) {
	const op = "catalog.UpdateProduct"
	if err := s.check(op, upd); err != nil {
		return nil, err
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return nil, domain.NewValidationError(op, "price", "must not be negative")
	}

	p, err := store.UpdateProduct(ctx, s.db, id, upd)
	if err != nil {
		return nil, translate(op, err)
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := store.DeleteProduct(ctx, s.db, id); err != nil {
		return translate("catalog.DeleteProduct", err)
	}
	return nil
}

// Categories

func (s *Service) CreateCategory(ctx context.Context, in CreateCategoryInput) (*models.Category, error) {
	const op = "catalog.CreateCategory"
	if err := s.check(op, in); err != nil {
		return nil, err
	}

	c, err := store.CreateCategory(ctx, s.db, in.Name, in.Description)
	if err != nil {
		return nil, translate(op, err)
	}
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	c, err := store.GetCategory(ctx, s.db, id)
	if err != nil {
		return nil, translate("catalog.GetCategory", err)
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, p store.PageParams) (*store.OffsetPage[models.Category], error) {
	page, err := store.ListCategories(ctx, s.db, p)
	if err != nil {
		return nil, translate("catalog.ListCategories", err)
	}
	return page, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, upd models.CategoryUpdate) (*models.Category, error) {
	const op = "catalog.UpdateCategory"
	if err := s.check(op, upd); err != nil {
		return nil, err
	}

	c, err := store.UpdateCategory(ctx, s.db, id, upd)
	if err != nil {
		return nil, translate(op, err)
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if err := store.DeleteCategory(ctx, s.db, id); err != nil {
		return translate("catalog.DeleteCategory", err)
	}
	return nil
}

// Users

func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (*models.User, error) {
	const op = "catalog.RegisterUser"
	if err := s.check(op, in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.Internal(err, op, "hash password")
	}

	u, err := store.CreateUser(ctx, s.db, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	})
	if err != nil {
		return nil, translate(op, err)
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := store.GetUser(ctx, s.db, id)
	if err != nil {
		return nil, translate("catalog.GetUser", err)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, p store.PageParams) (*store.OffsetPage[models.User], error) {
	page, err := store.ListUsers(ctx, s.db, p)
	if err != nil {
		return nil, translate("catalog.ListUsers", err)
	}
	return page, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	const op = "catalog.UpdateUser"
	if err := s.check(op, upd); err != nil {
		return nil, err
	}

	u, err := store.UpdateUser(ctx, s.db, id, upd)
	if err != nil {
		return nil, translate(op, err)
	}
	return u, nil
}

// ChangePassword verifies the current password and replaces the stored hash.
func (s *Service) ChangePassword(ctx context.Context, id int64, in ChangePasswordInput) error {
	const op = "catalog.ChangePassword"
	if err := s.check(op, in); err != nil {
		return err
	}

	u, err := store.GetUser(ctx, s.db, id)
	if err != nil {
		return translate(op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.CurrentPassword)); err != nil {
		return domain.Forbidden(op, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.Internal(err, op, "hash password")
	}

	if err := store.SetPasswordHash(ctx, s.db, id, string(hash)); err != nil {
		return translate(op, err)
	}
	return nil
}
