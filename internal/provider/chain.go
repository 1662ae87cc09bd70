package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
	"github.com/LibrePCB/librepcb-api-server/internal/resilience"
)

// Chain runs providers in order. Each provider only sees entries left
// unresolved by the ones before it.
type Chain struct {
	providers []Provider
}

// NewChain creates a Chain trying ps in order.
func NewChain(ps ...Provider) *Chain {
	return &Chain{providers: ps}
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// Providers returns the names of the chained providers in order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Fetch runs every provider until the batch is fully resolved and returns
// the total cache hits. A failing provider is logged and skipped; Fetch
// itself never fails.
func (c *Chain) Fetch(ctx context.Context, b *Batch, status model.ProviderStatus) (int, error) {
	hits := 0
	for _, p := range c.providers {
		if len(b.Unresolved()) == 0 {
			break
		}
		n, err := p.Fetch(ctx, b, status)
		hits += n
		if err != nil {
			zap.L().Warn("provider: fetch failed, trying next",
				zap.String("provider", p.Name()),
				zap.Int("unresolved", len(b.Unresolved())),
				zap.String("failure", resilience.Classify(err)),
				zap.Error(err),
			)
		}
	}
	return hits, nil
}
