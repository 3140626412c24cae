package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/telemetry"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CartsCollection = "carts"

	maxMongoBackoff = 500 * time.Millisecond
)

type cartDocument struct {
	UserID    int64                `bson:"_id"`
	Items     []cartItemDocument   `bson:"items"`
	Total     primitive.Decimal128 `bson:"total"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
	Version   int                  `bson:"version"`
}

type cartItemDocument struct {
	ProductID int64                `bson:"product_id"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
}

// MongoStore keeps one document per user with the items embedded. Writes are
// compare-and-swap on the version field; a lost race reloads and reapplies
// the mutation up to maxRetries times.
type MongoStore struct {
	coll       *mongo.Collection
	maxRetries int
	metrics    *telemetry.Metrics
}

func NewMongoStore(db *mongo.Database, maxRetries int, metrics *telemetry.Metrics) *MongoStore {
	return &MongoStore{
		coll:       db.Collection(CartsCollection),
		maxRetries: maxRetries,
		metrics:    metrics,
	}
}

func (s *MongoStore) Load(ctx context.Context, userID int64) (*models.Cart, error) {
	var doc cartDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("find cart: %w", err)
	}
	return fromDocument(doc)
}

func (s *MongoStore) Update(ctx context.Context, userID int64, create bool, fn Mutation) (*models.Cart, error) {
	backoff := 10 * time.Millisecond

	for attempt := 0; ; attempt++ {
		cart, done, err := s.tryUpdate(ctx, userID, create, fn)
		if err != nil || done {
			return cart, err
		}

		if attempt >= s.maxRetries {
			return nil, fmt.Errorf("update cart for user %d after %d retries: %w", userID, s.maxRetries, database.ErrTransientConflict)
		}
		s.metrics.StoreRetry("mongo")

		jitter := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if backoff < maxMongoBackoff {
			backoff *= 2
		}
	}
}

// tryUpdate makes one load-mutate-write attempt. done is false when another
// writer got there first and the attempt should be repeated.
func (s *MongoStore) tryUpdate(ctx context.Context, userID int64, create bool, fn Mutation) (*models.Cart, bool, error) {
	cart, err := s.Load(ctx, userID)
	fresh := false
	switch {
	case errors.Is(err, database.ErrCartNotFound) && create:
		now := time.Now().UTC().Truncate(time.Millisecond)
		cart = models.NewCart(userID)
		cart.ID = userID
		cart.CreatedAt = now
		cart.UpdatedAt = now
		fresh = true
	case err != nil:
		return nil, true, err
	}

	changed, err := fn(cart)
	if err != nil {
		return nil, true, err
	}
	if !changed && !fresh {
		return cart, true, nil
	}

	prevVersion := cart.Version
	cart.Version++
	cart.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	doc, err := toDocument(cart)
	if err != nil {
		return nil, true, err
	}

	if fresh {
		if _, err := s.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, false, nil
			}
			return nil, true, fmt.Errorf("insert cart: %w", err)
		}
		s.metrics.CartCreated()
		return cart, true, nil
	}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": userID, "version": prevVersion}, doc)
	if err != nil {
		return nil, true, fmt.Errorf("replace cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, false, nil
	}
	return cart, true, nil
}

func toDocument(c *models.Cart) (cartDocument, error) {
	total, err := toDecimal128(c.Total)
	if err != nil {
		return cartDocument{}, err
	}

	items := make([]cartItemDocument, 0, len(c.Items))
	for _, item := range c.Items {
		price, err := toDecimal128(item.Price)
		if err != nil {
			return cartDocument{}, err
		}
		items = append(items, cartItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}

	return cartDocument{
		UserID:    c.UserID,
		Items:     items,
		Total:     total,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Version:   c.Version,
	}, nil
}

func fromDocument(doc cartDocument) (*models.Cart, error) {
	total, err := fromDecimal128(doc.Total)
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{
		ID:        doc.UserID,
		UserID:    doc.UserID,
		Items:     make([]models.CartItem, 0, len(doc.Items)),
		Total:     total,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Version:   doc.Version,
	}
	for _, item := range doc.Items {
		price, err := fromDecimal128(item.Price)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}
	return cart, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %s: %w", v, err)
	}
	return d, nil
}
