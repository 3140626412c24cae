package cart

import (
	"context"

	"github.com/safar/catalog-store/internal/models"
)

// Mutation edits a loaded cart in place and reports whether anything changed.
// Stores may call it more than once when a write conflicts, so it must only
// depend on the cart it is given.
type Mutation func(cart *models.Cart) (changed bool, err error)

// Store persists cart aggregates. Update applies fn to the current cart and
// writes items and total as one unit when fn reports a change. With create
// set, a missing cart is created (and persisted even if fn changes nothing);
// otherwise a missing cart yields database.ErrCartNotFound.
type Store interface {
	Load(ctx context.Context, userID int64) (*models.Cart, error)
	Update(ctx context.Context, userID int64, create bool, fn Mutation) (*models.Cart, error)
}

// ProductDirectory resolves products for price, stock and display data.
type ProductDirectory interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}
