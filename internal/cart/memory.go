package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/telemetry"
)

// MemoryStore keeps carts in process memory. Writers of one user's cart are
// serialized by a per-user mutex; different users never contend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]*memoryEntry
	nextID  atomic.Int64
	metrics *telemetry.Metrics
}

type memoryEntry struct {
	mu   sync.Mutex
	cart *models.Cart
}

func NewMemoryStore(metrics *telemetry.Metrics) *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64]*memoryEntry),
		metrics: metrics,
	}
}

func (s *MemoryStore) entry(userID int64, create bool) *memoryEntry {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok || !create {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[userID]; !ok {
		e = &memoryEntry{}
		s.entries[userID] = e
	}
	return e
}

func (s *MemoryStore) Load(ctx context.Context, userID int64) (*models.Cart, error) {
	e := s.entry(userID, false)
	if e == nil {
		return nil, database.ErrCartNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cart == nil {
		return nil, database.ErrCartNotFound
	}
	return e.cart.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, userID int64, create bool, fn Mutation) (*models.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := s.entry(userID, create)
	if e == nil {
		return nil, database.ErrCartNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := false
	var working *models.Cart
	if e.cart == nil {
		if !create {
			return nil, database.ErrCartNotFound
		}
		now := time.Now()
		working = models.NewCart(userID)
		working.ID = s.nextID.Add(1)
		working.CreatedAt = now
		working.UpdatedAt = now
		fresh = true
	} else {
		working = e.cart.Clone()
	}

	changed, err := fn(working)
	if err != nil {
		return nil, err
	}

	if changed {
		working.Version++
		working.UpdatedAt = time.Now()
	}
	if fresh {
		if working.Version == 0 {
			working.Version = 1
		}
		s.metrics.CartCreated()
	}
	if changed || fresh {
		e.cart = working
	}

	return e.cart.Clone(), nil
}
