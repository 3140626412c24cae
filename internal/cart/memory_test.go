package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMissingCart(t *testing.T) {
	s := NewMemoryStore(nil)

	_, err := s.Load(context.Background(), 1)
	assert.ErrorIs(t, err, database.ErrCartNotFound)

	_, err = s.Update(context.Background(), 1, false, func(*models.Cart) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, database.ErrCartNotFound)
}

func TestMemoryStoreFailedMutationLeavesNoCart(t *testing.T) {
	s := NewMemoryStore(nil)

	_, err := s.Update(context.Background(), 1, true, func(*models.Cart) (bool, error) {
		return false, errors.New("rejected")
	})
	require.Error(t, err)

	_, err = s.Load(context.Background(), 1)
	assert.ErrorIs(t, err, database.ErrCartNotFound)
}

func TestMemoryStoreDiscardsUnchangedEdits(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	created, err := s.Update(ctx, 1, true, func(*models.Cart) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)

	_, err = s.Update(ctx, 1, false, func(c *models.Cart) (bool, error) {
		c.Items = append(c.Items, models.CartItem{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(1)})
		return false, nil
	})
	require.NoError(t, err)

	loaded, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)
	assert.Equal(t, 1, loaded.Version)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	c, err := s.Update(ctx, 1, true, func(c *models.Cart) (bool, error) {
		c.Items = append(c.Items, models.CartItem{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(1)})
		return true, nil
	})
	require.NoError(t, err)

	c.Items[0].Quantity = 99

	loaded, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Items[0].Quantity)
	assert.Equal(t, 1, loaded.Version)
}
