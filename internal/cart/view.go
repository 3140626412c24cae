package cart

import (
	"time"

	"github.com/safar/catalog-store/internal/models"
	"github.com/shopspring/decimal"
)

// ItemView is a cart line joined with the product's current data.
type ItemView struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	ImageURL     string          `json:"image_url"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	StockCount   int             `json:"stock_count"`
	IsAvailable  bool            `json:"is_available"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// View is a cart with resolved product data and summary fields. Total is the
// persisted sum over snapshot prices; Subtotal is the same sum over current
// product prices.
type View struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Items         []ItemView      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	ItemCount     int             `json:"item_count"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewView joins cart lines with products. A line whose product no longer
// exists is reported unavailable and adds nothing to Subtotal.
func NewView(cart *models.Cart, products map[int64]models.Product) *View {
	v := &View{
		ID:            cart.ID,
		UserID:        cart.UserID,
		Items:         make([]ItemView, 0, len(cart.Items)),
		Total:         cart.Total,
		ItemCount:     len(cart.Items),
		TotalQuantity: cart.TotalQuantity(),
		Subtotal:      decimal.Zero,
		CreatedAt:     cart.CreatedAt,
		UpdatedAt:     cart.UpdatedAt,
	}

	for _, item := range cart.Items {
		iv := ItemView{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			Price:        item.Price,
			CurrentPrice: decimal.Zero,
			LineTotal:    item.LineTotal(),
		}
		if p, ok := products[item.ProductID]; ok {
			iv.Name = p.Name
			iv.ImageURL = p.ImageURL
			iv.CurrentPrice = p.Price
			iv.StockCount = p.StockCount
			iv.IsAvailable = p.IsAvailable
			v.Subtotal = v.Subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		v.Items = append(v.Items, iv)
	}

	return v
}

func emptyView(userID int64) *View {
	return NewView(models.NewCart(userID), nil)
}
