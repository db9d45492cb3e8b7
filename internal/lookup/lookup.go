// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lookup runs a term against several providers at once and turns
// their answers into one ranked list.
//
// Each provider is called in its own goroutine behind the cache. A
// provider that fails or overruns its timeout contributes nothing and is
// reported in Output.ProviderErrors; the lookup itself still succeeds.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/termsource/internal/boost"
	"github.com/pdiddy/termsource/internal/cache"
	"github.com/pdiddy/termsource/internal/metrics"
	"github.com/pdiddy/termsource/internal/provider"
	"github.com/pdiddy/termsource/internal/rank"
	"github.com/pdiddy/termsource/pkg/types"
)

// ErrNoProviders is returned when a request resolves to no usable provider.
var ErrNoProviders = errors.New("no providers to query")

const (
	defaultTimeout = 5 * time.Second
	// DefaultFetchLimit is how many results are requested from a provider
	// when filling the cache. Smaller MaxResults are cut after the read.
	DefaultFetchLimit = 10
)

// Output is the result of one lookup.
type Output struct {
	LookupID string               `json:"lookup_id"`
	Results  []types.RankedResult `json:"results"`
	// ProviderErrors lists one message per failed provider, sorted.
	ProviderErrors []string `json:"provider_errors,omitempty"`
	// Degraded is set when every dispatched provider failed.
	Degraded bool `json:"degraded"`
}

// Config wires a Coordinator. Cache and Metrics may be nil.
type Config struct {
	Registry *provider.Registry
	Profiles map[string]types.ProviderProfile
	Cache    *cache.Cache
	Booster  *boost.Booster
	Ranker   *rank.Ranker
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	// FetchLimit defaults to DefaultFetchLimit.
	FetchLimit int
}

// Coordinator fans a request out to providers and ranks the results.
type Coordinator struct {
	registry *provider.Registry
	profiles map[string]types.ProviderProfile
	cache    *cache.Cache
	booster  *boost.Booster
	ranker   *rank.Ranker
	logger   *slog.Logger
	metrics  *metrics.Recorder

	fetchLimit int

	// misses collapses concurrent synchronous fetches of one cache key.
	misses singleflight.Group
	// background tracks shared fetches and stale refreshes, both of
	// which may outlive the lookup that started them.
	background sync.WaitGroup
}

// New returns a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("lookup: registry is required")
	}
	if cfg.Booster == nil || cfg.Ranker == nil {
		return nil, fmt.Errorf("lookup: booster and ranker are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = DefaultFetchLimit
	}
	return &Coordinator{
		registry: cfg.Registry,
		profiles: cfg.Profiles,
		cache:    cfg.Cache,
		booster:  cfg.Booster,
		ranker:   cfg.Ranker,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,

		fetchLimit: cfg.FetchLimit,
	}, nil
}

// unit is one provider dispatched for a lookup.
type unit struct {
	adapter provider.Adapter
	profile types.ProviderProfile
	timeout time.Duration
}

type unitResult struct {
	name    string
	results []types.RawResult
	err     error
}

// Lookup queries the requested providers concurrently and returns the
// boosted, ranked and deduplicated results. It fails only for an invalid
// request or when no provider can be dispatched.
func (c *Coordinator) Lookup(ctx context.Context, req types.LookupRequest) (Output, error) {
	if err := req.Validate(); err != nil {
		return Output{}, err
	}
	req = clone(req)

	out := Output{LookupID: uuid.NewString()}
	logger := c.logger.With(slog.String("lookup_id", out.LookupID))
	start := time.Now()

	units := c.resolve(req, logger)
	if len(units) == 0 {
		return Output{}, ErrNoProviders
	}

	deadline := time.Duration(0)
	for _, u := range units {
		deadline = max(deadline, u.timeout)
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Buffered so a unit finishing after the deadline never blocks.
	ch := make(chan unitResult, len(units))
	var wg sync.WaitGroup
	for _, u := range units {
		wg.Add(1)
		go func(u unit) {
			defer wg.Done()
			results, err := c.run(ctx, req, u, logger)
			ch <- unitResult{name: u.adapter.Name(), results: results, err: err}
		}(u)
	}

	pending := make(map[string]bool, len(units))
	for _, u := range units {
		pending[u.adapter.Name()] = true
	}

	var raw []types.RawResult
	failed := 0
	fail := func(name string, err error) {
		failed++
		pe := provider.Classify(name, err)
		out.ProviderErrors = append(out.ProviderErrors, pe.Error())
		logger.Warn("provider_failed",
			slog.String("provider", name),
			slog.String("kind", string(pe.Kind)),
			slog.String("error", pe.Error()))
	}

collect:
	for len(pending) > 0 {
		select {
		case ur := <-ch:
			delete(pending, ur.name)
			if ur.err != nil {
				fail(ur.name, ur.err)
				continue
			}
			raw = append(raw, ur.results...)
		case <-ctx.Done():
			break collect
		}
	}
	for name := range pending {
		fail(name, ctx.Err())
	}
	// Units observe ctx and return promptly once it is cancelled.
	cancel()
	wg.Wait()

	sort.Strings(out.ProviderErrors)
	out.Degraded = failed == len(units)
	out.Results = c.ranker.Rank(c.booster.Boost(raw, req.ContextTags))

	c.metrics.RecordLookup(out.Degraded, time.Since(start))
	logger.Info("lookup_done",
		slog.String("term", req.Term),
		slog.Int("providers", len(units)),
		slog.Int("failed", failed),
		slog.Int("results", len(out.Results)),
		slog.Bool("degraded", out.Degraded))
	return out, nil
}

// Providers returns the names of the registered adapters.
func (c *Coordinator) Providers() []string {
	return c.registry.Names()
}

// Wait blocks until every shared fetch and background refresh has finished.
func (c *Coordinator) Wait() {
	c.background.Wait()
}

// resolve picks the adapters for req. Unknown names are logged and skipped.
func (c *Coordinator) resolve(req types.LookupRequest, logger *slog.Logger) []unit {
	names := req.Providers
	if len(names) == 0 {
		names = c.registry.Names()
	}

	seen := make(map[string]bool, len(names))
	var units []unit
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		a, ok := c.registry.Get(name)
		p, hasProfile := c.profiles[name]
		if !ok || !hasProfile {
			logger.Warn("lookup_unknown_provider", slog.String("provider", name))
			continue
		}
		timeout := p.Timeout
		if req.Timeout > 0 {
			timeout = req.Timeout
		}
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		units = append(units, unit{adapter: a, profile: p, timeout: timeout})
	}
	return units
}

// run answers one unit from the cache when possible and otherwise calls
// the adapter under the unit's timeout.
func (c *Coordinator) run(ctx context.Context, req types.LookupRequest, u unit, logger *slog.Logger) ([]types.RawResult, error) {
	name := u.adapter.Name()
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	freq, cacheable := c.canonical(req, u)
	limit := c.limit(req)
	if cacheable && c.cache != nil {
		results, state, err := c.cache.Get(ctx, req.Term, name)
		if err != nil {
			logger.Warn("cache_read_failed", slog.String("provider", name), slog.String("error", err.Error()))
		}
		c.metrics.RecordCache(name, state.String())
		switch state {
		case cache.Fresh:
			return truncate(results, limit), nil
		case cache.Stale:
			c.refresh(ctx, freq, u, logger)
			return truncate(results, limit), nil
		}
	}

	results, err := c.shared(ctx, freq, u, cacheable, logger)
	if err != nil {
		return nil, err
	}
	return truncate(results, limit), nil
}

// canonical returns the request sent to the adapter and whether its answer
// may be cached. Cached answers are always fetched in the profile language
// at the fetch limit so they serve any later MaxResults up to that limit.
// Another language, or a larger limit, is fetched as asked and not stored.
func (c *Coordinator) canonical(req types.LookupRequest, u unit) (types.LookupRequest, bool) {
	if req.Language != "" && req.Language != u.profile.Language {
		return req, false
	}
	if req.MaxResults > c.fetchLimit {
		return req, false
	}
	req.Language = ""
	req.MaxResults = c.fetchLimit
	return req, true
}

func (c *Coordinator) limit(req types.LookupRequest) int {
	if req.MaxResults > 0 {
		return req.MaxResults
	}
	return c.fetchLimit
}

// shared runs at most one adapter call per key however many lookups ask
// for it. The call is detached from every caller and bounded by the unit
// timeout, so one cancelled lookup cannot fail the others; each caller
// stops waiting when its own ctx ends.
func (c *Coordinator) shared(ctx context.Context, req types.LookupRequest, u unit, store bool, logger *slog.Logger) ([]types.RawResult, error) {
	name := u.adapter.Name()
	key := cache.NewKey(req.Term, name)
	flight := key.Provider + "\x00" + key.Term
	if !store {
		flight += fmt.Sprintf("\x00%s\x00%d", req.Language, req.MaxResults)
	}
	detached := context.WithoutCancel(ctx)

	ch := make(chan singleflight.Result, 1)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		v, err, dup := c.misses.Do(flight, func() (any, error) {
			fctx, cancel := context.WithTimeout(detached, u.timeout)
			defer cancel()
			return c.fetch(fctx, req, u, store, logger)
		})
		ch <- singleflight.Result{Val: v, Err: err, Shared: dup}
	}()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]types.RawResult), nil
	case <-ctx.Done():
		return nil, provider.Classify(name, ctx.Err())
	}
}

// fetch calls the adapter and, when store is set, caches a successful
// answer, empty or not.
func (c *Coordinator) fetch(ctx context.Context, req types.LookupRequest, u unit, store bool, logger *slog.Logger) ([]types.RawResult, error) {
	name := u.adapter.Name()
	start := time.Now()
	results, err := u.adapter.Fetch(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		pe := provider.Classify(name, err)
		c.metrics.RecordProviderCall(name, string(pe.Kind), elapsed)
		return nil, pe
	}
	c.metrics.RecordProviderCall(name, "ok", elapsed)
	logger.Debug("provider_fetched",
		slog.String("provider", name),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", elapsed))

	if store && c.cache != nil {
		if err := c.cache.Put(context.WithoutCancel(ctx), req.Term, name, results, u.profile.CacheTTL); err != nil {
			logger.Warn("cache_write_failed", slog.String("provider", name), slog.String("error", err.Error()))
		}
	}
	return results, nil
}

// refresh re-fetches a stale entry in the background. At most one
// refresh per key runs at a time; it is not tied to the request context.
func (c *Coordinator) refresh(ctx context.Context, req types.LookupRequest, u unit, logger *slog.Logger) {
	name := u.adapter.Name()
	key := cache.NewKey(req.Term, name)
	if !c.cache.TryBeginRefresh(key) {
		return
	}

	timeout := u.profile.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	detached := context.WithoutCancel(ctx)

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer c.cache.EndRefresh(key)

		rctx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()
		if _, err := c.fetch(rctx, req, u, true, logger); err != nil {
			c.metrics.RecordCache(name, "refresh_failed")
			logger.Warn("cache_refresh_failed", slog.String("provider", name), slog.String("error", err.Error()))
			return
		}
		c.metrics.RecordCache(name, "refresh_ok")
	}()
}

// truncate keeps the first n results in the provider's own order.
func truncate(results []types.RawResult, n int) []types.RawResult {
	if n > 0 && len(results) > n {
		return results[:n:n]
	}
	return results
}

func clone(req types.LookupRequest) types.LookupRequest {
	req.ContextTags = slices.Clone(req.ContextTags)
	req.Providers = slices.Clone(req.Providers)
	return req
}
