// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/termsource/pkg/types"
)

func loadYAML(t *testing.T, content string) (types.Config, error) {
	t.Helper()
	v := viper.New()
	require.NoError(t, SetDefaults(v))
	if content != "" {
		path := filepath.Join(t.TempDir(), "termsource.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadYAML(t, "")
	require.NoError(t, err)
	if diff := cmp.Diff(types.DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	cfg, err := loadYAML(t, `
log_level: debug
providers:
  brave:
    enabled: false
  overheid:
    timeout: 3s
cache:
  backend: sqlite
  sqlite_path: /tmp/cache.db
selector:
  top_k: 5
`)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Providers["brave"].Enabled)
	assert.Equal(t, 0.7, cfg.Providers["brave"].Weight, "unset fields keep their defaults")
	assert.Equal(t, 3*time.Second, cfg.Providers["overheid"].Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Providers["overheid"].CacheTTL)
	assert.True(t, cfg.Providers["overheid"].IsLegalSource)
	assert.Equal(t, types.CacheSQLite, cfg.Cache.Backend)
	assert.Equal(t, 5, cfg.Selector.TopK)
	assert.Equal(t, 1000, cfg.Selector.TokenBudget)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TERMSOURCE_LOG_LEVEL", "warn")
	t.Setenv("TERMSOURCE_RANK_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("TERMSOURCE_PROVIDERS_WIKIPEDIA_WEIGHT", "0.5")

	cfg, err := loadYAML(t, "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 0.8, cfg.Rank.SimilarityThreshold)
	assert.Equal(t, 0.5, cfg.Providers["wikipedia"].Weight)
}

func TestLoadAddsProviderNameFromKey(t *testing.T) {
	cfg, err := loadYAML(t, `
providers:
  wikipedia:
    name: ""
`)
	require.NoError(t, err)
	assert.Equal(t, "wikipedia", cfg.Providers["wikipedia"].Name)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Config)
		errMsg string
	}{
		{"zero weight", func(c *types.Config) { setWeight(c, "wikipedia", 0) }, "weight 0 outside (0,1]"},
		{"weight above one", func(c *types.Config) { setWeight(c, "overheid", 1.2) }, "weight 1.2 outside (0,1]"},
		{"zero provider timeout", func(c *types.Config) {
			p := c.Providers["brave"]
			p.Timeout = 0
			c.Providers["brave"] = p
		}, "timeout must be positive"},
		{"all disabled", func(c *types.Config) {
			for k, p := range c.Providers {
				p.Enabled = false
				c.Providers[k] = p
			}
		}, "no provider is enabled"},
		{"gate out of range", func(c *types.Config) { c.Boost.QualityGate = 1.5 }, "quality_gate"},
		{"factor below one", func(c *types.Config) { c.Boost.MaxFactor = 0.9 }, "max_factor"},
		{"bad citation pattern", func(c *types.Config) { c.Boost.CitationPattern = "(" }, "citation_pattern"},
		{"zero similarity", func(c *types.Config) { c.Rank.SimilarityThreshold = 0 }, "similarity_threshold"},
		{"zero budget", func(c *types.Config) { c.Selector.TokenBudget = 0 }, "token_budget"},
		{"zero top k", func(c *types.Config) { c.Selector.TopK = 0 }, "top_k"},
		{"unknown backend", func(c *types.Config) { c.Cache.Backend = "etcd" }, `cache.backend "etcd"`},
		{"redis without url", func(c *types.Config) { c.Cache.Backend = types.CacheRedis }, "redis_url"},
		{"bad log level", func(c *types.Config) { c.LogLevel = "chatty" }, "log_level"},
		{"name mismatch", func(c *types.Config) {
			p := c.Providers["brave"]
			p.Name = "google"
			c.Providers["brave"] = p
		}, "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Selector.TopK = 0
	cfg.Rank.SimilarityThreshold = 2
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_k")
	assert.Contains(t, err.Error(), "similarity_threshold")
}

func TestLoadFailsOnInvalidFile(t *testing.T) {
	_, err := loadYAML(t, `
providers:
  wikipedia:
    weight: 3
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wikipedia")
}

func TestMarshalWritesDurationsAsStrings(t *testing.T) {
	data, err := Marshal(types.DefaultConfig().Providers["overheid"])
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout: 8s")
	assert.Contains(t, string(data), "cache_ttl: 24h0m0s")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", slog.String("provider", "brave"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, `"msg":"shown"`) && strings.Contains(out, `"provider":"brave"`))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func setWeight(c *types.Config, name string, w float64) {
	p := c.Providers[name]
	p.Weight = w
	c.Providers[name] = p
}
