package cache

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-faster/errors"
	gocache "github.com/eko/gocache/v3/cache"
	"github.com/eko/gocache/v3/store"
)

var ErrorNotFound = errors.New("key not found")

// ICache is a context-aware cache keyed by string.
type ICache[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, expiration time.Duration) error
	SetMany(ctx context.Context, items map[string]T, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

type InMemoryCache[T any] struct {
	cache     *gocache.Cache[T]
	ristretto *ristretto.Cache
}

func (c *InMemoryCache[T]) Set(ctx context.Context, key string, value T, expiration time.Duration) error {
	return c.cache.Set(ctx, key, value, store.WithCost(1), store.WithExpiration(expiration))
}

func (c *InMemoryCache[T]) SetMany(ctx context.Context, items map[string]T, expiration time.Duration) error {
	for key, value := range items {
		err := c.Set(ctx, key, value, expiration)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *InMemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	value, err := c.cache.Get(ctx, key)
	if err != nil {
		var resultObject T
		if strings.Contains(err.Error(), "value not found") {
			return resultObject, ErrorNotFound
		}
		return resultObject, err
	}
	return value, nil
}

func (c *InMemoryCache[T]) Delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}

// Wait blocks until pending writes are visible to Get. Ristretto applies
// Set asynchronously.
func (c *InMemoryCache[T]) Wait() {
	c.ristretto.Wait()
}

func NewCache[T any](maxItems int64) (*InMemoryCache[T], error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * maxItems,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	ristrettoStore := store.NewRistretto(ristrettoCache)
	return &InMemoryCache[T]{cache: gocache.New[T](ristrettoStore), ristretto: ristrettoCache}, nil
}
