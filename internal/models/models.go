package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    *string   `json:"first_name,omitempty"`
	LastName     *string   `json:"last_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserUpdate lists the profile fields a caller may change. Nil means unchanged.
type UserUpdate struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=100"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=50"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CategoryUpdate struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description,omitempty"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	StockCount  int             `json:"stock_count"`
	Brand       string          `json:"brand"`
	ImageURL    string          `json:"image_url"`
	IsAvailable bool            `json:"is_available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// ProductUpdate lists the product fields a caller may change. Version, when
// set, must match the stored row or the update fails with an optimistic lock
// error.
type ProductUpdate struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	CategoryID  *int64           `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	StockCount  *int             `json:"stock_count,omitempty" validate:"omitempty,gte=0"`
	Brand       *string          `json:"brand,omitempty" validate:"omitempty,min=2,max=100"`
	ImageURL    *string          `json:"image_url,omitempty"`
	IsAvailable *bool            `json:"is_available,omitempty"`
	Version     *int             `json:"version,omitempty"`
}

type Review struct {
	ID               int64     `json:"id"`
	ProductID        int64     `json:"product_id"`
	UserID           int64     `json:"user_id"`
	Rating           int       `json:"rating"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	Pros             []string  `json:"pros"`
	Cons             []string  `json:"cons"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	HelpfulVotes     int       `json:"helpful_votes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Display fields joined from users and products.
	Username    string `json:"username,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}

type ReviewUpdate struct {
	Rating  *int     `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Title   *string  `json:"title,omitempty" validate:"omitempty,min=3,max=100"`
	Content *string  `json:"content,omitempty" validate:"omitempty,min=10,max=2000"`
	Pros    []string `json:"pros,omitempty"`
	Cons    []string `json:"cons,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ReviewUpdate) Empty() bool {
	return u.Rating == nil && u.Title == nil && u.Content == nil && u.Pros == nil && u.Cons == nil
}

const (
	ReviewSortNewest     = "date-new"
	ReviewSortOldest     = "date-old"
	ReviewSortRatingHigh = "rating-high"
	ReviewSortRatingLow  = "rating-low"
	ReviewSortHelpful    = "helpful"
)
