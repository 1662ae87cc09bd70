package provider

import (
	"context"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// DummyProvider returns canned data for local testing without network access.
// Every odd batch entry is reported as an active part; even entries are left
// unresolved.
type DummyProvider struct{}

// Name implements Provider.
func (DummyProvider) Name() string { return "dummy" }

// Fetch implements Provider.
func (DummyProvider) Fetch(_ context.Context, b *Batch, _ model.ProviderStatus) (int, error) {
	for _, i := range b.Unresolved() {
		if i%2 == 0 {
			continue
		}
		b.Resolve(i, model.PartResult{
			Results: 1,
			Status:  model.StatusActive,
			Prices:  []model.Price{{Quantity: 1, Price: 13.37}},
		})
	}
	return 0, nil
}
