package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"farmgate/logging"
	"farmgate/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const notFoundMarker = "notfound"

// CachedProducts is a read-through Redis cache in front of a ProductStore.
// Single products are cached; every write, stock change included, drops the
// cached copy. Redis failures fall back to the underlying store.
type CachedProducts struct {
	ProductStore
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedProducts(real ProductStore, conn *redis.Client, ttl time.Duration) *CachedProducts {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProducts{ProductStore: real, redis: conn, ttl: ttl}
}

// Uncached returns the store behind the cache.
func (c *CachedProducts) Uncached() ProductStore { return c.ProductStore }

func productKey(id string) string { return "product:" + id }

func (c *CachedProducts) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	log := logging.FromContext(ctx)
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, ErrNotFound
		}
		var p models.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		log.Warn("cached product unreadable, using store", zap.String("product", id))
	case errors.Is(err, redis.Nil):
	default:
		log.Warn("redis get failed, using store", zap.String("product", id), zap.Error(err))
	}

	p, err := c.ProductStore.GetProduct(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if err := c.redis.Set(ctx, key, notFoundMarker, time.Minute).Err(); err != nil {
			log.Warn("cache notfound failed", zap.Error(err))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warn("cache product failed", zap.String("product", id), zap.Error(err))
		}
	}
	return p, nil
}

func (c *CachedProducts) invalidate(ctx context.Context, id string) {
	if err := c.redis.Del(ctx, productKey(id)).Err(); err != nil {
		logging.FromContext(ctx).Warn("cache invalidate failed", zap.String("product", id), zap.Error(err))
	}
}

func (c *CachedProducts) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := c.ProductStore.CreateProduct(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, p.ID)
	return nil
}

func (c *CachedProducts) UpdateProduct(ctx context.Context, p *models.Product) error {
	defer c.invalidate(ctx, p.ID)
	return c.ProductStore.UpdateProduct(ctx, p)
}

func (c *CachedProducts) DeleteProduct(ctx context.Context, id string) error {
	defer c.invalidate(ctx, id)
	return c.ProductStore.DeleteProduct(ctx, id)
}

func (c *CachedProducts) DecrementStock(ctx context.Context, productID string, amount int) error {
	err := c.ProductStore.DecrementStock(ctx, productID, amount)
	if err == nil {
		c.invalidate(ctx, productID)
	}
	return err
}

func (c *CachedProducts) IncrementStock(ctx context.Context, productID string, amount int) error {
	err := c.ProductStore.IncrementStock(ctx, productID, amount)
	if err == nil {
		c.invalidate(ctx, productID)
	}
	return err
}
