package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// DefaultCacheMaxAge is how long cached results are served. External quota
// is scarce, so entries are kept for a month.
const DefaultCacheMaxAge = 30 * 24 * time.Hour

// CacheProvider resolves entries from previously cached results.
type CacheProvider struct {
	cache  PartCache
	maxAge time.Duration
}

// NewCacheProvider creates a CacheProvider. A non-positive maxAge selects
// DefaultCacheMaxAge.
func NewCacheProvider(cache PartCache, maxAge time.Duration) *CacheProvider {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &CacheProvider{cache: cache, maxAge: maxAge}
}

// Name implements Provider.
func (p *CacheProvider) Name() string { return "cache" }

// Fetch implements Provider. Store errors count as misses.
func (p *CacheProvider) Fetch(ctx context.Context, b *Batch, _ model.ProviderStatus) (int, error) {
	hits := 0
	for _, i := range b.Unresolved() {
		q := b.Query(i)
		part, err := p.cache.GetCachedPart(ctx, q.MPN, q.Manufacturer, p.maxAge)
		if err != nil {
			zap.L().Warn("provider: cache read failed",
				zap.String("mpn", q.MPN),
				zap.String("manufacturer", q.Manufacturer),
				zap.Error(err),
			)
			continue
		}
		if part == nil {
			continue
		}
		if b.Resolve(i, *part) {
			hits++
		}
	}
	return hits, nil
}
