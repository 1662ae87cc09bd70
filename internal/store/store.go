// Package store persists resolved parts in a TTL cache and records served
// part requests.
package store

import (
	"context"
	"time"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// RequestStats aggregates the request log over a time window.
type RequestStats struct {
	Requests   int64 `json:"requests"`
	Parts      int64 `json:"parts"`
	CacheHits  int64 `json:"cache_hits"`
	WithResult int64 `json:"with_result"`
}

// Store defines the persistence interface for part lookups.
type Store interface {
	// Parts cache
	GetCachedPart(ctx context.Context, mpn, manufacturer string, maxAge time.Duration) (*model.PartResult, error)
	SetCachedPart(ctx context.Context, provider string, part model.PartResult) error

	// Request log
	AddPartsRequest(ctx context.Context, count, cacheHits, withResult int) error
	PartsRequestStats(ctx context.Context, since time.Time) (*RequestStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for cache timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// cacheColumns is the column order of the parts cache upsert.
var cacheColumns = []string{"mpn", "manufacturer", "provider", "datetime", "payload"}

// cacheConflictKeys is the unique key of the parts cache.
var cacheConflictKeys = []string{"mpn", "manufacturer", "provider"}
