package resolver

import (
	"context"
	"net/netip"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 60 * time.Second
)

// Cache wraps a Resolver with an expiring LRU of positive results. Failed
// and empty lookups are never cached, so a transient resolver failure does
// not stick.
type Cache struct {
	inner Resolver
	lru   *expirable.LRU[string, []netip.Addr]
}

// NewCache creates a caching decorator around inner. size <= 0 and ttl <= 0
// select the defaults (4096 entries, 60s).
func NewCache(inner Resolver, size int, ttl time.Duration) Resolver {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		inner: inner,
		lru:   expirable.NewLRU[string, []netip.Addr](size, nil, ttl),
	}
}

// Resolve returns the cached candidate list for host, falling through to
// the inner resolver on a miss.
func (c *Cache) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addrs, ok := c.lru.Get(host); ok {
		return addrs, nil
	}
	addrs, err := c.inner.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) > 0 {
		c.lru.Add(host, addrs)
	}
	return addrs, nil
}
