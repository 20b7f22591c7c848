package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront-stock/internal/redisx"
)

// Cache is a read-through Redis cache in front of another Lookup. Only product
// metadata is cached; cached entries report Stock as 0. Redis failures degrade
// to the backing lookup.
type Cache struct {
	Next  Lookup
	Redis *redis.Client
	TTL   time.Duration
	Log   zerolog.Logger
}

type cachedProduct struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

func (c *Cache) GetProduct(ctx context.Context, id string) (*Product, error) {
	key := fmt.Sprintf(redisx.KeyProduct, id)
	if s, err := c.Redis.Get(ctx, key).Result(); err == nil {
		if p, ok := decodeCached(s); ok {
			return p, nil
		}
	} else if err != redis.Nil {
		c.Log.Warn().Err(err).Str("product_id", id).Msg("catalog cache read failed")
	}

	p, err := c.Next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	b, _ := json.Marshal(cachedProduct{ID: p.ID, Slug: p.Slug, Name: p.Name, Price: p.Price.String()})
	if err := c.Redis.Set(ctx, key, b, c.TTL).Err(); err != nil {
		c.Log.Warn().Err(err).Str("product_id", id).Msg("catalog cache write failed")
	}
	return p, nil
}

// Evict drops cached entries, e.g. after an order changed the product.
func (c *Cache) Evict(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, fmt.Sprintf(redisx.KeyProduct, id))
	}
	return c.Redis.Del(ctx, keys...).Err()
}

func decodeCached(s string) (*Product, bool) {
	var cp cachedProduct
	if err := json.Unmarshal([]byte(s), &cp); err != nil || cp.ID == "" {
		return nil, false
	}
	p := &Product{ID: cp.ID, Slug: cp.Slug, Name: cp.Name}
	if err := p.Price.UnmarshalText([]byte(cp.Price)); err != nil {
		return nil, false
	}
	return p, true
}
