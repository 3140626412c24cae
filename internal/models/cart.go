package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the per-user cart aggregate. Total is derived from Items and is
// only ever written by Recalculate.
type Cart struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
}

// CartItem is a line item. Price is the product price captured when the line
// was first added.
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func NewCart(userID int64) *Cart {
	return &Cart{
		UserID: userID,
		Items:  []CartItem{},
		Total:  decimal.Zero,
	}
}

// LineTotal is price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Recalculate sets Total to the sum of every line total.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	c.Total = total
}

// ItemIndex returns the position of the line for productID, or -1.
func (c *Cart) ItemIndex(productID int64) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// RemoveItem drops the line for productID and reports whether one existed.
func (c *Cart) RemoveItem(productID int64) bool {
	idx := c.ItemIndex(productID)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return true
}

// TotalQuantity sums quantities over all lines.
func (c *Cart) TotalQuantity() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Clone returns a deep copy, so callers can mutate without aliasing Items.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}
