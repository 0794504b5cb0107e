package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/feedwizard/internal/core"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Reader is the read side of the store used by the HTTP surface.
type Reader interface {
	Get(ctx context.Context, id string) (core.ProductRecord, error)
	ListRejected(ctx context.Context, runID string, limit int) ([]core.RejectedRecord, error)
	CountProducts(ctx context.Context) (int64, error)
}

// CachedReader serves product lookups from an LRU cache. Products are
// insert-only, so a cached record never goes stale; misses are not cached.
type CachedReader struct {
	Reader
	products *lru.Cache[string, core.ProductRecord]
}

// NewCachedReader wraps r with a cache of size products.
func NewCachedReader(r Reader, size int) (*CachedReader, error) {
	cache, err := lru.New[string, core.ProductRecord](size)
	if err != nil {
		return nil, fmt.Errorf("create product cache: %w", err)
	}
	return &CachedReader{Reader: r, products: cache}, nil
}

// Get returns the product with id.
func (c *CachedReader) Get(ctx context.Context, id string) (core.ProductRecord, error) {
	if rec, ok := c.products.Get(id); ok {
		return rec, nil
	}
	rec, err := c.Reader.Get(ctx, id)
	if err != nil {
		return core.ProductRecord{}, err
	}
	c.products.Add(id, rec)
	return rec, nil
}

// Len returns the number of cached products.
func (c *CachedReader) Len() int {
	return c.products.Len()
}
