package provider

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
	"github.com/LibrePCB/librepcb-api-server/pkg/partstack"
)

// --- PartCache Mock ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetCachedPart(ctx context.Context, mpn, manufacturer string, maxAge time.Duration) (*model.PartResult, error) {
	args := m.Called(ctx, mpn, manufacturer, maxAge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PartResult), args.Error(1)
}

func (m *mockCache) SetCachedPart(ctx context.Context, provider string, part model.PartResult) error {
	args := m.Called(ctx, provider, part)
	return args.Error(0)
}

// --- Partstack Client Mock ---

type mockPartstackClient struct {
	mock.Mock
}

func (m *mockPartstackClient) FindStocks(ctx context.Context, lookups []partstack.Lookup) (*partstack.Response, error) {
	args := m.Called(ctx, lookups)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partstack.Response), args.Error(1)
}

// --- Provider Stub ---

// stubProvider resolves the listed indices with a found result.
type stubProvider struct {
	name    string
	resolve map[int]model.PartResult
	hits    int
	err     error
	calls   int
	seen    [][]int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(_ context.Context, b *Batch, _ model.ProviderStatus) (int, error) {
	s.calls++
	s.seen = append(s.seen, b.Unresolved())
	for i, r := range s.resolve {
		b.Resolve(i, r)
	}
	return s.hits, s.err
}

func queries(pairs ...string) []model.PartQuery {
	var qs []model.PartQuery
	for i := 0; i+1 < len(pairs); i += 2 {
		qs = append(qs, model.PartQuery{MPN: pairs[i], Manufacturer: pairs[i+1]})
	}
	return qs
}
