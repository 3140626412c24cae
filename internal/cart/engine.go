package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/domain"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/telemetry"
)

// Engine implements the cart operations. Every mutation runs through mutate,
// which recomputes the total before the store persists the cart.
type Engine struct {
	store    Store
	products ProductDirectory
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewEngine(store Store, products ProductDirectory, metrics *telemetry.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		products: products,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetOrCreateCart returns the user's cart, creating an empty one on first access.
func (e *Engine) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	const op = "cart.GetOrCreateCart"
	if err := validateID(op, "user_id", userID); err != nil {
		return nil, err
	}

	cart, err := e.store.Load(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, database.ErrCartNotFound) {
		return nil, e.fail(op, err)
	}

	cart, err = e.store.Update(ctx, userID, true, func(*models.Cart) (bool, error) {
		return false, nil
	})
	if err != nil {
		return nil, e.fail(op, err)
	}
	return cart, nil
}

// GetCartWithItems returns the cart joined with current product data.
func (e *Engine) GetCartWithItems(ctx context.Context, userID int64) (*View, error) {
	const op = "cart.GetCartWithItems"

	cart, err := e.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, op, cart)
}

// AddItem adds quantity units of a product, incrementing an existing line or
// appending a new one priced at the product's current price.
func (e *Engine) AddItem(ctx context.Context, userID, productID int64, quantity int) (*View, error) {
	const op = "cart.AddItem"
	if err := validateID(op, "user_id", userID); err != nil {
		return nil, err
	}
	if err := validateID(op, "product_id", productID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, domain.NewValidationError(op, "quantity", "must be at least 1")
	}

	product, err := e.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, e.fail(op, err)
	}
	if !product.IsAvailable {
		return nil, domain.WrapError(database.ErrProductUnavailable, domain.ECONFLICT, op,
			fmt.Sprintf("product %d is not available", productID))
	}

	cart, err := e.mutate(ctx, op, userID, true, func(c *models.Cart) (bool, error) {
		idx := c.ItemIndex(productID)
		existing := 0
		if idx >= 0 {
			existing = c.Items[idx].Quantity
		}
		// Compared without adding so a huge request cannot overflow.
		if quantity > product.StockCount-existing {
			return false, insufficientStock(op, product, existing, quantity)
		}

		if idx >= 0 {
			c.Items[idx].Quantity += quantity
		} else {
			c.Items = append(c.Items, models.CartItem{
				ProductID: productID,
				Quantity:  quantity,
				Price:     product.Price,
			})
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.ItemsAdded(quantity)
	return e.view(ctx, op, cart)
}

// UpdateItemQuantity overwrites a line's quantity. A quantity of zero or less
// removes the line.
func (e *Engine) UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*View, error) {
	const op = "cart.UpdateItemQuantity"
	if err := validateID(op, "user_id", userID); err != nil {
		return nil, err
	}
	if err := validateID(op, "product_id", productID); err != nil {
		return nil, err
	}

	var product *models.Product
	if quantity > 0 {
		p, err := e.products.GetProduct(ctx, productID)
		if err != nil && !errors.Is(err, database.ErrProductNotFound) {
			return nil, e.fail(op, err)
		}
		product = p
	}

	cart, err := e.mutate(ctx, op, userID, false, func(c *models.Cart) (bool, error) {
		idx := c.ItemIndex(productID)
		if idx < 0 {
			return false, domain.WrapError(database.ErrItemNotFound, domain.ENOTFOUND, op,
				fmt.Sprintf("product %d is not in the cart", productID))
		}

		if quantity <= 0 {
			c.RemoveItem(productID)
			return true, nil
		}

		if product == nil {
			return false, domain.WrapError(database.ErrProductNotFound, domain.ENOTFOUND, op,
				fmt.Sprintf("product %d not found", productID))
		}
		if quantity > c.Items[idx].Quantity && !product.IsAvailable {
			return false, domain.WrapError(database.ErrProductUnavailable, domain.ECONFLICT, op,
				fmt.Sprintf("product %d is not available", productID))
		}
		if quantity > product.StockCount {
			return false, insufficientStock(op, product, 0, quantity)
		}
		if c.Items[idx].Quantity == quantity {
			return false, nil
		}
		c.Items[idx].Quantity = quantity
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return e.view(ctx, op, cart)
}

// RemoveItem drops a line. Removing a product that is not in the cart, or
// from a user without a cart, succeeds without changing anything.
func (e *Engine) RemoveItem(ctx context.Context, userID, productID int64) (*View, error) {
	const op = "cart.RemoveItem"
	if err := validateID(op, "user_id", userID); err != nil {
		return nil, err
	}
	if err := validateID(op, "product_id", productID); err != nil {
		return nil, err
	}

	cart, err := e.mutate(ctx, op, userID, false, func(c *models.Cart) (bool, error) {
		return c.RemoveItem(productID), nil
	})
	if errors.Is(err, database.ErrCartNotFound) {
		return emptyView(userID), nil
	}
	if err != nil {
		return nil, err
	}

	return e.view(ctx, op, cart)
}

// ClearCart empties the cart and zeroes its total, keeping the cart record.
// Clearing an empty or missing cart is a no-op.
func (e *Engine) ClearCart(ctx context.Context, userID int64) (*View, error) {
	const op = "cart.ClearCart"
	if err := validateID(op, "user_id", userID); err != nil {
		return nil, err
	}

	cleared := false
	cart, err := e.mutate(ctx, op, userID, false, func(c *models.Cart) (bool, error) {
		cleared = len(c.Items) > 0
		c.Items = c.Items[:0]
		return cleared, nil
	})
	if errors.Is(err, database.ErrCartNotFound) {
		return emptyView(userID), nil
	}
	if err != nil {
		return nil, err
	}

	if cleared {
		e.metrics.CartCleared()
	}
	return NewView(cart, nil), nil
}

// mutate is the single write path: fn edits the cart, then the total is
// recomputed from the resulting items before the store persists both.
func (e *Engine) mutate(ctx context.Context, op string, userID int64, create bool, fn Mutation) (*models.Cart, error) {
	cart, err := e.store.Update(ctx, userID, create, func(c *models.Cart) (bool, error) {
		changed, err := fn(c)
		if err != nil || !changed {
			return changed, err
		}
		c.Recalculate()
		return true, nil
	})
	if err != nil {
		err = e.fail(op, err)
		e.metrics.CartMutation(op, outcome(err))
		return nil, err
	}

	e.metrics.CartMutation(op, telemetry.OutcomeOK)
	e.metrics.ObserveCartValue(cart.Total)
	return cart, nil
}

func (e *Engine) view(ctx context.Context, op string, cart *models.Cart) (*View, error) {
	if len(cart.Items) == 0 {
		return NewView(cart, nil), nil
	}

	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := e.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, e.fail(op, err)
	}
	return NewView(cart, products), nil
}

// fail maps storage sentinels to domain errors, keeping the sentinel in the
// chain for errors.Is. Domain errors raised by mutations pass through.
func (e *Engine) fail(op string, err error) error {
	var de *domain.Error
	if (errors.As(err, &de) && de.Code != domain.EINTERNAL) || domain.IsValidationError(err) {
		return err
	}

	switch {
	case errors.Is(err, database.ErrTransientConflict):
		e.logger.Warn("cart write conflict retries exhausted", slog.String("op", op), slog.Any("error", err))
		return domain.Transient(err, op, "the cart is being modified concurrently, please retry")
	case errors.Is(err, database.ErrCartNotFound):
		return domain.WrapError(err, domain.ENOTFOUND, op, "cart not found")
	case errors.Is(err, database.ErrItemNotFound):
		return domain.WrapError(err, domain.ENOTFOUND, op, "item not found in cart")
	case errors.Is(err, database.ErrProductNotFound):
		return domain.WrapError(err, domain.ENOTFOUND, op, "product not found")
	case errors.Is(err, database.ErrUserNotFound):
		return domain.WrapError(err, domain.ENOTFOUND, op, "user not found")
	case errors.Is(err, database.ErrInsufficientStock):
		return domain.WrapError(err, domain.ECONFLICT, op, "insufficient stock")
	case errors.Is(err, database.ErrProductUnavailable):
		return domain.WrapError(err, domain.ECONFLICT, op, "product unavailable")
	}

	return domain.Internal(err, op, "cart operation failed")
}

func insufficientStock(op string, p *models.Product, existing, requested int) error {
	msg := fmt.Sprintf("requested %d of product %d but only %d in stock", requested, p.ID, p.StockCount)
	if existing > 0 {
		msg = fmt.Sprintf("%s (%d already in cart)", msg, existing)
	}
	return domain.WrapError(database.ErrInsufficientStock, domain.ECONFLICT, op, msg)
}

func validateID(op, field string, id int64) error {
	if id < 1 {
		return domain.NewValidationError(op, field, "must be a positive integer")
	}
	return nil
}

func outcome(err error) string {
	switch domain.ErrorCode(err) {
	case domain.EINTERNAL, domain.ETRANSIENT:
		return telemetry.OutcomeError
	}
	return telemetry.OutcomeRejected
}
