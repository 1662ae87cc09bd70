// Package resolver answers part queries through the provider chain and
// records request accounting.
package resolver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
	"github.com/LibrePCB/librepcb-api-server/internal/provider"
	"github.com/LibrePCB/librepcb-api-server/internal/status"
)

// RequestLog records per-request accounting.
type RequestLog interface {
	AddPartsRequest(ctx context.Context, count, cacheHits, withResult int) error
}

// Response is the outcome of one resolve call.
type Response struct {
	// Parts holds one result per accepted query, in query order.
	Parts     []model.PartResult
	CacheHits int
	// Status holds side-channel signals raised by providers, if any.
	Status model.ProviderStatus
}

// Resolver runs batches of queries through a provider chain. It holds no
// per-request state and is safe for concurrent use.
type Resolver struct {
	chain    provider.Provider
	log      RequestLog
	sink     status.Sink
	maxParts int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStatusSink sets where provider status signals are merged.
func WithStatusSink(s status.Sink) Option {
	return func(r *Resolver) {
		r.sink = s
	}
}

// WithMaxParts lowers the per-request part limit. Values outside
// 1..model.MaxParts are ignored.
func WithMaxParts(n int) Option {
	return func(r *Resolver) {
		if n >= 1 && n <= model.MaxParts {
			r.maxParts = n
		}
	}
}

// New creates a Resolver. log may be nil to skip request accounting.
func New(chain provider.Provider, log RequestLog, opts ...Option) *Resolver {
	r := &Resolver{
		chain:    chain,
		log:      log,
		sink:     status.Discard{},
		maxParts: model.MaxParts,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// MaxParts returns the number of queries accepted per call.
func (r *Resolver) MaxParts() int { return r.maxParts }

// Resolve answers queries. Queries beyond MaxParts are dropped. Provider,
// status and accounting failures are logged and never returned; the error
// is reserved for a canceled context.
func (r *Resolver) Resolve(ctx context.Context, queries []model.PartQuery) (*Response, error) {
	if len(queries) > r.maxParts {
		queries = queries[:r.maxParts]
	}

	start := time.Now()
	log := zap.L().With(
		zap.String("batch_id", uuid.NewString()),
		zap.Int("parts", len(queries)),
	)

	b := provider.NewBatch(queries)
	st := model.ProviderStatus{}
	hits, err := r.chain.Fetch(ctx, b, st)
	if err != nil {
		log.Warn("resolver: chain failed", zap.Error(err))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if len(st) > 0 {
		if err := r.sink.Merge(st); err != nil {
			log.Error("resolver: write status failed", zap.Error(err))
		}
	}

	found := b.Found()
	if r.log != nil && len(queries) > 0 {
		if err := r.log.AddPartsRequest(ctx, len(queries), hits, found); err != nil {
			log.Warn("resolver: record request failed", zap.Error(err))
		}
	}

	log.Info("resolver: batch resolved",
		zap.Int("cache_hits", hits),
		zap.Int("found", found),
		zap.Duration("elapsed", time.Since(start)),
	)

	resp := &Response{Parts: b.Results(), CacheHits: hits}
	if len(st) > 0 {
		resp.Status = st
	}
	return resp, nil
}

// ResolveAll answers an arbitrarily long list by splitting it into batches
// of MaxParts and resolving up to concurrency batches at once. Results keep
// the input order; statuses from all batches are merged.
func (r *Resolver) ResolveAll(ctx context.Context, queries []model.PartQuery, concurrency int) (*Response, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var chunks [][]model.PartQuery
	for start := 0; start < len(queries); start += r.maxParts {
		chunks = append(chunks, queries[start:min(start+r.maxParts, len(queries))])
	}
	responses := make([]*Response, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			resp, err := r.Resolve(gCtx, chunk)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Response{Parts: make([]model.PartResult, 0, len(queries))}
	for _, resp := range responses {
		out.Parts = append(out.Parts, resp.Parts...)
		out.CacheHits += resp.CacheHits
		if len(resp.Status) > 0 {
			if out.Status == nil {
				out.Status = model.ProviderStatus{}
			}
			out.Status.Merge(resp.Status)
		}
	}
	return out, nil
}
