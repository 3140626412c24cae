package integration

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/safar/catalog-store/internal/cart"
	"github.com/safar/catalog-store/internal/catalog"
	"github.com/safar/catalog-store/internal/config"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/domain"
	"github.com/safar/catalog-store/internal/logger"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresEngine(db *sql.DB, cfg config.CartConfig) *cart.Engine {
	return cart.NewEngine(cart.NewPostgresStore(db, cfg, nil), catalog.NewService(db), nil, logger.Discard())
}

func defaultCartConfig() config.CartConfig {
	return config.CartConfig{
		Backend:     config.CartBackendPostgres,
		MaxRetries:  5,
		LockTimeout: 2 * time.Second,
	}
}

func TestPostgresCartScenario(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, db, "alice")
	laptop := createProduct(t, db, "Laptop", "999.99", 10)
	mouse := createProduct(t, db, "Mouse", "25.00", 100)
	engine := newPostgresEngine(db, defaultCartConfig())

	_, err := engine.AddItem(ctx, user.ID, laptop.ID, 2)
	require.NoError(t, err)
	view, err := engine.AddItem(ctx, user.ID, mouse.ID, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2024.98").Equal(view.Total), view.Total.String())

	view, err = engine.UpdateItemQuantity(ctx, user.ID, laptop.ID, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1024.99").Equal(view.Total), view.Total.String())

	view, err = engine.RemoveItem(ctx, user.ID, mouse.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("999.99").Equal(view.Total), view.Total.String())

	persisted, err := store.GetCart(ctx, db, user.ID)
	require.NoError(t, err)
	assert.True(t, persisted.Total.Equal(view.Total))
	require.Len(t, persisted.Items, 1)

	view, err = engine.ClearCart(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())
}

func TestPostgresCartUnknownUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	product := createProduct(t, db, "Laptop", "999.99", 10)
	engine := newPostgresEngine(db, defaultCartConfig())

	_, err := engine.AddItem(context.Background(), 9999, product.ID, 1)
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestPostgresConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, db, "bob")
	product := createProduct(t, db, "Cable", "9.99", 1000)
	engine := newPostgresEngine(db, defaultCartConfig())

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.AddItem(ctx, user.ID, product.ID, 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("add item: %v", err)
	}

	persisted, err := store.GetCart(ctx, db, user.ID)
	require.NoError(t, err)
	require.Len(t, persisted.Items, 1)
	assert.Equal(t, workers, persisted.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("199.80").Equal(persisted.Total), persisted.Total.String())
}

func TestPostgresConcurrentAddsRespectStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, db, "carol")
	product := createProduct(t, db, "Limited", "50.00", 5)
	engine := newPostgresEngine(db, defaultCartConfig())

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.AddItem(ctx, user.ID, product.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err), err.Error())
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)

	persisted, err := store.GetCart(ctx, db, user.ID)
	require.NoError(t, err)
	require.Len(t, persisted.Items, 1)
	assert.Equal(t, 5, persisted.Items[0].Quantity)
}

func TestPostgresOneCartPerUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, db, "dave")
	engine := newPostgresEngine(db, defaultCartConfig())

	const workers = 10
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := engine.GetOrCreateCart(ctx, user.ID)
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM carts WHERE user_id = $1`, user.ID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPostgresCartKeepsSnapshotPrice(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, db, "erin")
	product := createProduct(t, db, "Monitor", "200.00", 10)
	engine := newPostgresEngine(db, defaultCartConfig())

	_, err := engine.AddItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)

	newPrice := decimal.RequireFromString("150.00")
	_, err = store.UpdateProduct(ctx, db, product.ID, models.ProductUpdate{Price: &newPrice})
	require.NoError(t, err)

	view, err := engine.GetCartWithItems(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("400.00").Equal(view.Total), view.Total.String())
	assert.True(t, decimal.RequireFromString("300.00").Equal(view.Subtotal), view.Subtotal.String())
	require.Len(t, view.Items, 1)
	assert.True(t, newPrice.Equal(view.Items[0].CurrentPrice))
}

func TestPostgresCartLockTimeout(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createUser(t, db, "frank")
	product := createProduct(t, db, "Desk", "300.00", 10)

	_, err := store.EnsureCart(ctx, db, user.ID)
	require.NoError(t, err)

	holder, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = holder.Rollback() }()

	_, err = store.LockCart(ctx, holder, user.ID)
	require.NoError(t, err)

	engine := newPostgresEngine(db, config.CartConfig{
		Backend:     config.CartBackendPostgres,
		MaxRetries:  1,
		LockTimeout: 100 * time.Millisecond,
	})

	_, err = engine.AddItem(ctx, user.ID, product.ID, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrTransientConflict)
	assert.Equal(t, domain.ETRANSIENT, domain.ErrorCode(err))
}
