// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/termsource/internal/boost"
	"github.com/pdiddy/termsource/internal/cache"
	"github.com/pdiddy/termsource/internal/lookup"
	"github.com/pdiddy/termsource/internal/metrics"
	"github.com/pdiddy/termsource/internal/provider"
	"github.com/pdiddy/termsource/internal/rank"
	"github.com/pdiddy/termsource/internal/selector"
	"github.com/pdiddy/termsource/pkg/types"
)

// app holds the pipeline built from the loaded configuration.
type app struct {
	cfg      types.Config
	cache    *cache.Cache
	coord    *lookup.Coordinator
	pipeline *lookup.Pipeline
	registry *prometheus.Registry
}

func newApp(cfg types.Config) (*app, error) {
	store, err := openStore(cfg.Cache)
	if err != nil {
		return nil, err
	}
	c := cache.New(store, cfg.Cache.Grace, cache.WithLogger(logger))

	registry, err := provider.NewRegistry(cfg.Providers, provider.Options{
		Client:    &http.Client{Timeout: cfg.HTTP.Timeout},
		Sanitizer: provider.NewSanitizer(cfg.Sanitize),
		UserAgent: cfg.HTTP.UserAgent,
		Secrets:   loadedSecrets,
		Logger:    logger,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	booster, err := boost.New(cfg.Boost)
	if err != nil {
		c.Close()
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	coord, err := lookup.New(lookup.Config{
		Registry: registry,
		Profiles: cfg.Providers,
		Cache:    c,
		Booster:  booster,
		Ranker:   rank.New(cfg.Providers, cfg.Rank, logger),
		Logger:   logger,
		Metrics:  metrics.New(promRegistry),
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		cache:    c,
		coord:    coord,
		pipeline: &lookup.Pipeline{Coordinator: coord, Selector: selector.New(cfg.Selector)},
		registry: promRegistry,
	}, nil
}

// Close waits for background refreshes and closes the cache.
func (a *app) Close() error {
	a.coord.Wait()
	return a.cache.Close()
}

// openCache opens only the cache, for commands that do not query providers.
func openCache(cfg types.CacheConfig) (*cache.Cache, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return cache.New(store, cfg.Grace, cache.WithLogger(logger)), nil
}

func openStore(cfg types.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case types.CacheMemory, "":
		return cache.NewMemoryStore(), nil
	case types.CacheSQLite:
		return cache.NewSQLiteStore(cfg.SQLitePath)
	case types.CacheRedis:
		return cache.NewRedisStore(cfg.RedisURL, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
