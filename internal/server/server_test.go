// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/termsource/internal/boost"
	"github.com/pdiddy/termsource/internal/cache"
	"github.com/pdiddy/termsource/internal/lookup"
	"github.com/pdiddy/termsource/internal/metrics"
	"github.com/pdiddy/termsource/internal/provider"
	"github.com/pdiddy/termsource/internal/rank"
	"github.com/pdiddy/termsource/internal/selector"
	"github.com/pdiddy/termsource/pkg/types"
)

type stubAdapter struct {
	name    string
	results []types.RawResult
	err     error
}

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) Fetch(context.Context, types.LookupRequest) ([]types.RawResult, error) {
	return s.results, s.err
}

type testEnv struct {
	server *Server
	cache  *cache.Cache
	coord  *lookup.Coordinator
}

func newTestEnv(t *testing.T, adapters ...provider.Adapter) *testEnv {
	t.Helper()
	cfg := types.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b, err := boost.New(cfg.Boost)
	require.NoError(t, err)
	c := cache.New(cache.NewMemoryStore(), cfg.Cache.Grace)
	reg := prometheus.NewRegistry()

	coord, err := lookup.New(lookup.Config{
		Registry: provider.NewRegistryFrom(adapters...),
		Profiles: cfg.Providers,
		Cache:    c,
		Booster:  b,
		Ranker:   rank.New(cfg.Providers, cfg.Rank, logger),
		Logger:   logger,
		Metrics:  metrics.New(reg),
	})
	require.NoError(t, err)
	t.Cleanup(coord.Wait)

	s := New(Config{
		Pipeline: &lookup.Pipeline{Coordinator: coord, Selector: selector.New(cfg.Selector)},
		Cache:    c,
		Profiles: cfg.Providers,
		Gatherer: reg,
		Logger:   logger,
	})
	return &testEnv{server: s, cache: c, coord: coord}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func wikiResult() types.RawResult {
	return types.RawResult{
		Term:          "vonnis",
		Provider:      "wikipedia",
		URL:           "https://nl.wikipedia.org/wiki/Vonnis",
		Title:         "Vonnis",
		Snippet:       "Een vonnis is een uitspraak van de rechter.",
		RawConfidence: 0.8,
		FetchedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:        types.StatusOK,
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestLookupEndpoint(t *testing.T) {
	env := newTestEnv(t,
		stubAdapter{name: "wikipedia", results: []types.RawResult{wikiResult()}},
		stubAdapter{name: "brave", err: &provider.Error{Provider: "brave", Kind: provider.KindRateLimited}},
	)

	rec := env.do(t, http.MethodPost, "/v1/lookup", `{"term":"vonnis","context_tags":["strafrecht"],"timeout_ms":500}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got lookup.Sources
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.LookupID)
	assert.False(t, got.Degraded)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, 1, got.Sources[0].CitationIndex)
	assert.Equal(t, "wikipedia", got.Sources[0].Provider)
	assert.InDelta(t, 0.85, got.Sources[0].ProviderWeight, 1e-12)
	require.Len(t, got.ProviderErrors, 1)
	assert.Contains(t, got.ProviderErrors[0], "rate_limited")
}

func TestLookupEndpointAllFailed(t *testing.T) {
	env := newTestEnv(t, stubAdapter{name: "wikipedia", err: &provider.Error{Provider: "wikipedia", Kind: provider.KindUnavailable}})

	rec := env.do(t, http.MethodPost, "/v1/lookup", `{"term":"vonnis"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["degraded"])
	assert.Equal(t, []any{}, got["sources"])
}

func TestLookupEndpointRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, stubAdapter{name: "wikipedia"})

	tests := []struct {
		name string
		body string
	}{
		{"empty term", `{"term":"  "}`},
		{"negative timeout", `{"term":"vonnis","timeout_ms":-1}`},
		{"negative budget", `{"term":"vonnis","token_budget":-5}`},
		{"unknown providers only", `{"term":"vonnis","providers":["nope"]}`},
		{"malformed json", `{"term":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/lookup", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProvidersEndpoint(t *testing.T) {
	env := newTestEnv(t, stubAdapter{name: "wikipedia"})
	rec := env.do(t, http.MethodGet, "/v1/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []ProviderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 5)
	assert.Equal(t, "brave", views[0].Name)
	assert.False(t, views[0].Registered)

	byName := map[string]ProviderView{}
	for _, v := range views {
		byName[v.Name] = v
	}
	assert.True(t, byName["wikipedia"].Registered)
	assert.Equal(t, "8s", byName["overheid"].Timeout)
	assert.Equal(t, "24h0m0s", byName["overheid"].CacheTTL)
	assert.True(t, byName["rechtspraak"].IsLegalSource)
}

func TestInvalidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.cache.Put(ctx, "vonnis", "wikipedia", []types.RawResult{wikiResult()}, time.Hour))
	require.NoError(t, env.cache.Put(ctx, "vonnis", "overheid", nil, time.Hour))

	rec := env.do(t, http.MethodDelete, "/v1/cache/Vonnis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"term":"vonnis","removed":2}`, rec.Body.String())

	_, state, err := env.cache.Get(ctx, "vonnis", "wikipedia")
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, state)
}

func TestPurgeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.cache.Put(ctx, "beroep", "wikipedia", nil, time.Hour))

	rec := env.do(t, http.MethodDelete, "/v1/cache", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, state, err := env.cache.Get(ctx, "beroep", "wikipedia")
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, state)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, stubAdapter{name: "wikipedia", results: []types.RawResult{wikiResult()}})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/v1/lookup", `{"term":"vonnis"}`).Code)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `termsource_provider_calls_total{outcome="ok",provider="wikipedia"} 1`)
	assert.Contains(t, body, `termsource_lookups_total{degraded="false"} 1`)
}

func TestRunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
