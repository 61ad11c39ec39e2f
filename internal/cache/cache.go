// Package cache is a small Redis read-through cache for single-product
// fetches. It is advisory: every method degrades to a miss on error and
// mutation paths must call Invalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sipstore/internal/domain/products"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const productTTL = 5 * time.Minute

type ProductCache struct {
	client *redis.Client
}

func New(addr, password string, db int) *ProductCache {
	return &ProductCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func productKey(id uuid.UUID) string {
	return "product:" + id.String()
}

// cachedProduct restores the category fields the API representation omits.
type cachedProduct struct {
	products.Product
	CategoryID   uuid.UUID `json:"categoryId"`
	CategoryName string    `json:"categoryName"`
}

func (c *ProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *ProductCache) Close() error {
	return c.client.Close()
}

// GetProduct returns the cached product, or nil on a miss.
func (c *ProductCache) GetProduct(ctx context.Context, id uuid.UUID) (*products.Product, error) {
	data, err := c.client.Get(ctx, productKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var entry cachedProduct
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		// A stale or corrupt entry is treated as a miss.
		_ = c.client.Del(ctx, productKey(id)).Err()
		return nil, nil
	}
	p := entry.Product
	p.CategoryID = entry.CategoryID
	p.CategoryName = entry.CategoryName
	return &p, nil
}

func (c *ProductCache) SetProduct(ctx context.Context, p *products.Product) error {
	data, err := json.Marshal(cachedProduct{
		Product:      *p,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
	})
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, productKey(p.ID), data, productTTL).Err()
}

func (c *ProductCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, productKey(id)).Err()
}
