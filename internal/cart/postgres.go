package cart

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/catalog-store/internal/config"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/store"
	"github.com/safar/catalog-store/internal/telemetry"
)

// PostgresStore keeps carts in the carts and cart_items tables. Each Update
// is one transaction holding the cart row lock, retried on lock timeouts,
// deadlocks and serialization failures.
type PostgresStore struct {
	db          *sql.DB
	txOpts      database.TxOptions
	lockTimeout time.Duration
	metrics     *telemetry.Metrics
}

func NewPostgresStore(db *sql.DB, cfg config.CartConfig, metrics *telemetry.Metrics) *PostgresStore {
	opts := database.DefaultTxOptions()
	opts.MaxRetries = cfg.MaxRetries

	return &PostgresStore{
		db:          db,
		txOpts:      opts,
		lockTimeout: cfg.LockTimeout,
		metrics:     metrics,
	}
}

func (s *PostgresStore) Load(ctx context.Context, userID int64) (*models.Cart, error) {
	return store.GetCart(ctx, s.db, userID)
}

func (s *PostgresStore) Update(ctx context.Context, userID int64, create bool, fn Mutation) (*models.Cart, error) {
	var (
		result  *models.Cart
		created bool
	)

	err := database.WithRetry(ctx, s.db, s.txOpts, func(tx *sql.Tx) error {
		if err := database.SetLockTimeout(ctx, tx, s.lockTimeout); err != nil {
			return err
		}

		created = false
		if create {
			var err error
			if created, err = store.EnsureCart(ctx, tx, userID); err != nil {
				return err
			}
		}

		cart, err := store.LockCart(ctx, tx, userID)
		if err != nil {
			return err
		}

		changed, err := fn(cart)
		if err != nil {
			return err
		}

		if changed {
			if err := store.SaveCart(ctx, tx, cart); err != nil {
				return err
			}
		}

		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.metrics.CartCreated()
	}
	return result, nil
}
