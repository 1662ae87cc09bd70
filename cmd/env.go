package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/config"
	"github.com/LibrePCB/librepcb-api-server/internal/provider"
	"github.com/LibrePCB/librepcb-api-server/internal/resolver"
	"github.com/LibrePCB/librepcb-api-server/internal/status"
	"github.com/LibrePCB/librepcb-api-server/internal/store"
	"github.com/LibrePCB/librepcb-api-server/pkg/partstack"
)

// partsEnv holds the long-lived dependencies of the resolve commands.
type partsEnv struct {
	Store    store.Store
	Resolver *resolver.Resolver
	// Status is nil when no status file is configured.
	Status   *status.File
}

// Close releases the store.
func (e *partsEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch c.Driver {
	case "sqlite":
		s, err = store.NewSQLite(c.DatabaseURL)
	case "postgres":
		s, err = store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{MaxConns: c.MaxConns, MinConns: c.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return s, nil
}

// buildRegistry registers every provider the configuration can select.
func buildRegistry(c *config.Config, s store.Store) *provider.Registry {
	client := partstack.NewClient(c.Partstack.QueryURL, c.Partstack.Token,
		partstack.WithTimeout(time.Duration(c.Partstack.TimeoutSecs*float64(time.Second))),
		partstack.WithRateLimit(c.Partstack.RateLimit),
	)
	return provider.NewRegistry(
		provider.NewCacheProvider(s, time.Duration(c.Parts.CacheMaxAgeDays)*24*time.Hour),
		provider.NewPartstackProvider(client, s),
		provider.DummyProvider{},
	)
}

func initParts(ctx context.Context, c *config.Config) (*partsEnv, error) {
	s, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}

	chain, err := buildRegistry(c, s).Chain(c.Parts.Providers)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	zap.L().Info("provider chain ready", zap.Strings("providers", chain.Providers()))

	var (
		sink status.Sink = status.Discard{}
		file *status.File
	)
	if c.Parts.StatusFile != "" {
		file = status.NewFile(c.Parts.StatusFile)
		sink = file
	}

	return &partsEnv{
		Store:  s,
		Status: file,
		Resolver: resolver.New(chain, s,
			resolver.WithStatusSink(sink),
			resolver.WithMaxParts(c.Parts.MaxCount),
		),
	}, nil
}
