package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
	"github.com/LibrePCB/librepcb-api-server/internal/store"
)

type mockStats struct {
	mu    sync.Mutex
	stats *store.RequestStats
	err   error
	since time.Time
}

func (m *mockStats) PartsRequestStats(_ context.Context, since time.Time) (*store.RequestStats, error) {
	m.mu.Lock()
	m.since = since
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.stats == nil {
		return &store.RequestStats{}, nil
	}
	return m.stats, nil
}

type mockStatus struct {
	status model.ProviderStatus
	err    error
}

func (m *mockStatus) Read() (model.ProviderStatus, error) {
	return m.status, m.err
}

func (m *mockStats) sinceValue() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.since
}
